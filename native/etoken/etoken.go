package etoken

import (
	"bytes"
	"errors"
	"log/slog"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"riskpool/core/events"
	"riskpool/core/types"
	"riskpool/native/common"
)

var (
	errNilAsset  = errors.New("etoken: asset not configured")
	errNilLedger = errors.New("etoken: ledger not configured")

	// Authorization failures. Surfaced immediately, never retried.
	ErrOnlyReserve  = errors.New("etoken: caller is not the reserve orchestrator")
	ErrOnlyBorrower = errors.New("etoken: caller is not a registered borrower")
	ErrOnlyCooler   = errors.New("etoken: caller is not the assigned cooler")

	// Invariant-violation failures. The attempted operation is rejected
	// whole; no partial application.
	ErrInvalidAmount         = errors.New("etoken: amount must be positive")
	ErrInsufficientBalance   = errors.New("etoken: insufficient balance")
	ErrInsufficientAllowance = errors.New("etoken: insufficient allowance")
	ErrNotEnoughLiquidity    = errors.New("etoken: not enough liquid funds")
	ErrNotEnoughSCRFunds     = errors.New("etoken: lock exceeds funds available for SCR")
	ErrRepayExceedsDebt      = errors.New("etoken: repay amount exceeds outstanding debt")
	ErrInvariantBreach       = errors.New("etoken: ledger invariant breached")

	// State / business-level rejections callers may retry later.
	ErrWithdrawalsRequireCooldown = errors.New("etoken: direct withdrawals disabled, use the cooler queue")
	ErrNotWhitelisted             = errors.New("etoken: rejected by whitelist")
	ErrLockExists                 = errors.New("etoken: lock id already in use")
	ErrUnknownLock                = errors.New("etoken: unknown lock id")
	ErrLockMismatch               = errors.New("etoken: lock amount or rate mismatch")
	ErrBorrowerExists             = errors.New("etoken: borrower already registered")
	ErrBorrowerRemoved            = errors.New("etoken: borrower was previously removed")
	ErrUnknownBorrower            = errors.New("etoken: unknown borrower")
	ErrVaultAssetMismatch         = errors.New("etoken: yield vault asset mismatch")
	ErrNoYieldVault               = errors.New("etoken: yield vault not configured")
	ErrPermitExpired              = errors.New("etoken: permit deadline passed")
	ErrInvalidPermit              = errors.New("etoken: permit signature invalid")
)

const moduleName = "etoken"

type allowanceKey struct {
	owner   types.Address
	spender types.Address
}

// Ledger is the scaled-balance pool token. Every balance is stored as a
// scaled principal; the observable balance is principal multiplied by the
// global scale, which compounds continuously at the SCR-weighted interest
// rate and absorbs discrete earnings from rate adjustments, vault P&L and
// defaulted debt.
//
// The ledger is single-writer: the host serializes state-changing calls, and
// each call advances the scale before acting so no operation ever reads a
// stale pre-accrual value.
type Ledger struct {
	name    string
	self    types.Address
	reserve types.Address
	asset   Asset

	scale      *big.Int
	lastUpdate int64

	scaledBalances    map[types.Address]*big.Int
	scaledTotalSupply *big.Int
	allowances        map[allowanceKey]*big.Int
	permitNonces      map[types.Address]uint64

	// SCR ledger
	locks             map[LockID]*scrLock
	totalSCR          *big.Int
	scrRateSum        *big.Int // Σ lock.amount * lock.rate, asset units × wad
	tokenInterestRate *big.Int // cached weighted rate currently compounding

	// Loan ledger
	loans   map[types.Address]*Loan
	removed map[types.Address]bool
	params  Params

	// Yield vault bridge
	vault           YieldVault
	vaultShares     *big.Int
	vaultCheckpoint *big.Int

	whitelist  Whitelist
	cooler     CoolerView
	coolerAddr types.Address

	emitter events.Emitter
	pauses  common.PauseView
	logger  *slog.Logger
	nowFn   func() int64
}

// New constructs a ledger for the given underlying asset. The self address is
// the account holding the ledger's cash in the asset; reserve is the only
// caller allowed to move LP funds and administer borrowers.
func New(name string, self, reserve types.Address, asset Asset, params Params) *Ledger {
	l := &Ledger{
		name:              name,
		self:              self,
		reserve:           reserve,
		asset:             asset,
		scale:             Wad(),
		scaledBalances:    make(map[types.Address]*big.Int),
		scaledTotalSupply: big.NewInt(0),
		allowances:        make(map[allowanceKey]*big.Int),
		permitNonces:      make(map[types.Address]uint64),
		locks:             make(map[LockID]*scrLock),
		totalSCR:          big.NewInt(0),
		scrRateSum:        big.NewInt(0),
		tokenInterestRate: big.NewInt(0),
		loans:             make(map[types.Address]*Loan),
		removed:           make(map[types.Address]bool),
		params:            params.Clone(),
		vaultShares:       big.NewInt(0),
		vaultCheckpoint:   big.NewInt(0),
		emitter:           events.NoopEmitter{},
		nowFn:             func() int64 { return time.Now().Unix() },
	}
	l.lastUpdate = l.nowFn()
	return l
}

// Name returns the ledger's display name.
func (l *Ledger) Name() string { return l.name }

// Address returns the account the ledger holds its cash under.
func (l *Ledger) Address() types.Address { return l.self }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetPauses wires the administrative pause switches.
func (l *Ledger) SetPauses(p common.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// SetLogger attaches a structured logger used for earnings and default
// reporting. Nil disables logging.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if l == nil {
		return
	}
	l.logger = logger
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if l == nil {
		return
	}
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// SetWhitelist configures the optional deposit/withdraw/transfer gate.
func (l *Ledger) SetWhitelist(w Whitelist) {
	if l == nil {
		return
	}
	l.whitelist = w
}

// SetCooler assigns the cooler queue. When the cooler reports a non-zero
// cooldown period for this ledger, direct withdrawals are rejected and the
// cooler address becomes an authorized withdrawer.
func (l *Ledger) SetCooler(view CoolerView, addr types.Address) {
	if l == nil {
		return
	}
	l.cooler = view
	l.coolerAddr = addr
}

func (l *Ledger) emit(evt events.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(evt)
}

func (l *Ledger) now() int64 {
	if l == nil || l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

// advance brings the stored scale current. Every mutating entry point calls
// it before touching balances so time accrual is applied exactly once and
// never observed stale.
func (l *Ledger) advance() {
	now := l.now()
	if now <= l.lastUpdate {
		return
	}
	l.scale = projectScale(l.scale, l.tokenInterestRate, now-l.lastUpdate)
	l.lastUpdate = now
}

// GetCurrentScale returns the scale. With updated=true the stored value is
// returned as-is (callers inside a mutating operation have already advanced
// it); with updated=false the projection to the current instant is computed
// without mutating state. Both paths share projectScale, so a projection
// always equals what a subsequent mutating call would persist.
func (l *Ledger) GetCurrentScale(updated bool) *big.Int {
	if l == nil {
		return Wad()
	}
	if updated {
		return cloneBig(l.scale)
	}
	return projectScale(l.scale, l.tokenInterestRate, l.now()-l.lastUpdate)
}

// ScaledBalanceOf returns the raw scaled principal for an account.
func (l *Ledger) ScaledBalanceOf(owner types.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return cloneBig(l.scaledBalances[owner])
}

// ScaledTotalSupply returns the sum of all scaled principals.
func (l *Ledger) ScaledTotalSupply() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return cloneBig(l.scaledTotalSupply)
}

// BalanceOf returns the current balance of an account, including interest
// accrued up to this instant.
func (l *Ledger) BalanceOf(owner types.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return wadMul(l.scaledBalances[owner], l.GetCurrentScale(false))
}

// TotalSupply returns the pool-wide supply including interest accrued up to
// this instant.
func (l *Ledger) TotalSupply() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return wadMul(l.scaledTotalSupply, l.GetCurrentScale(false))
}

// totalSupplyStored computes supply against the stored scale. Only valid
// right after advance().
func (l *Ledger) totalSupplyStored() *big.Int {
	return wadMul(l.scaledTotalSupply, l.scale)
}

// TotalSCR returns the capital currently locked by borrowers.
func (l *Ledger) TotalSCR() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return cloneBig(l.totalSCR)
}

// TokenInterestRate returns the SCR-weighted annual rate currently feeding
// the scale clock.
func (l *Ledger) TokenInterestRate() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return cloneBig(l.tokenInterestRate)
}

// UtilizationRate returns totalSCR/totalSupply in wad. Values above 1e18 are
// representable: utilization beyond 100% is modeled, not blocked.
func (l *Ledger) UtilizationRate() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return wadDiv(l.totalSCR, l.TotalSupply())
}

// TotalWithdrawable returns max(0, totalSupply - totalSCR), the supply not
// backing any live risk.
func (l *Ledger) TotalWithdrawable() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Sub(l.TotalSupply(), l.totalSCR)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// FundsAvailable returns the funds the ledger actually holds: cash plus the
// current value of its yield vault position.
func (l *Ledger) FundsAvailable() *big.Int {
	if l == nil || l.asset == nil {
		return big.NewInt(0)
	}
	out := cloneBig(l.asset.BalanceOf(l.self))
	return out.Add(out, l.investedInYV())
}

// pendingEscrow returns the liquidity the assigned cooler has already
// earmarked for scheduled withdrawals. Earmarked funds are reserved: they
// are excluded from loanable and lockable headroom so a queued request
// cannot be starved by a later loan or lock.
func (l *Ledger) pendingEscrow() *big.Int {
	if l.cooler == nil {
		return big.NewInt(0)
	}
	return cloneBig(l.cooler.PendingWithdrawals(l.self))
}

// updateTokenInterestRate recomputes the weighted rate after any operation
// that changed total supply or the SCR book. Must run after advance().
func (l *Ledger) updateTokenInterestRate() {
	supply := l.totalSupplyStored()
	if supply.Sign() == 0 || l.scrRateSum.Sign() == 0 {
		l.tokenInterestRate = big.NewInt(0)
		return
	}
	l.tokenInterestRate = new(big.Int).Quo(l.scrRateSum, supply)
}

// discreteEarnings folds a signed earnings delta into the scale. Positive
// deltas come from rate adjustments, vault gains and redistributions;
// negative deltas from vault losses and defaulted debt. Earnings against an
// empty pool or a delta that would drive the scale non-positive breach the
// ledger's core invariant and are refused.
func (l *Ledger) discreteEarnings(delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return nil
	}
	if l.scaledTotalSupply.Sign() == 0 {
		return ErrInvariantBreach
	}
	newScale := new(big.Int).Add(l.scale, wadDiv(delta, l.scaledTotalSupply))
	if newScale.Sign() <= 0 {
		return ErrInvariantBreach
	}
	l.scale = newScale
	if l.logger != nil {
		l.logger.Info("earnings applied", "etoken", l.name, "delta", delta.String(), "scale", newScale.String())
	}
	l.emit(&EarningsRecorded{EToken: l.self, Delta: cloneBig(delta), Scale: cloneBig(newScale)})
	return nil
}

// Deposit mints amount/scale scaled units to receiver against a transfer of
// the underlying asset from the reserve. Reserve-only.
func (l *Ledger) Deposit(caller, receiver types.Address, amount *big.Int) (*big.Int, error) {
	if l == nil || l.asset == nil {
		return nil, errNilAsset
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return nil, err
	}
	if caller != l.reserve {
		return nil, ErrOnlyReserve
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if l.whitelist != nil && !l.whitelist.AcceptsDeposit(receiver, amount) {
		return nil, ErrNotWhitelisted
	}

	l.advance()

	scaled := wadDiv(amount, l.scale)
	if scaled.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	if err := l.asset.Transfer(caller, l.self, amount); err != nil {
		return nil, err
	}
	l.creditScaled(receiver, scaled)
	l.updateTokenInterestRate()

	l.emit(&Deposit{EToken: l.self, Provider: receiver, Amount: cloneBig(amount)})
	return wadMul(scaled, l.scale), nil
}

// Withdraw burns amount/scale scaled units from owner and pays the
// underlying to receiver, pulling from the yield vault when cash is short.
// MaxAmount withdraws the owner's entire balance, capped at the
// withdrawable supply. Reserve-only; when a cooler with a non-zero cooldown
// is assigned, direct reserve withdrawals are rejected and only the cooler
// may redeem.
func (l *Ledger) Withdraw(caller, owner, receiver types.Address, amount *big.Int) (*big.Int, error) {
	if l == nil || l.asset == nil {
		return nil, errNilAsset
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return nil, err
	}
	fromCooler := !l.coolerAddr.IsZero() && caller == l.coolerAddr
	if caller != l.reserve && !fromCooler {
		return nil, ErrOnlyReserve
	}
	if !fromCooler && l.cooler != nil && l.cooler.CooldownPeriod(l.self) > 0 {
		return nil, ErrWithdrawalsRequireCooldown
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	l.advance()

	ownerScaled := cloneBig(l.scaledBalances[owner])
	balance := wadMul(ownerScaled, l.scale)

	var scaled *big.Int
	if isMaxAmount(amount) {
		amount = balance
		scaled = cloneBig(ownerScaled)
		withdrawable := l.withdrawableStored()
		if amount.Cmp(withdrawable) > 0 {
			amount = withdrawable
			scaled = wadDivUp(amount, l.scale)
			if scaled.Cmp(ownerScaled) > 0 {
				scaled = cloneBig(ownerScaled)
			}
		}
		if amount.Sign() == 0 {
			return big.NewInt(0), nil
		}
	} else {
		if amount.Cmp(balance) > 0 {
			return nil, ErrInsufficientBalance
		}
		if amount.Cmp(l.withdrawableStored()) > 0 {
			return nil, ErrNotEnoughLiquidity
		}
		scaled = wadDivUp(amount, l.scale)
		if scaled.Cmp(ownerScaled) > 0 {
			scaled = cloneBig(ownerScaled)
		}
	}
	if l.whitelist != nil && !l.whitelist.AcceptsWithdrawal(owner, amount) {
		return nil, ErrNotWhitelisted
	}

	if err := l.ensureCash(amount); err != nil {
		return nil, err
	}
	if err := l.asset.Transfer(l.self, receiver, amount); err != nil {
		return nil, err
	}
	l.debitScaled(owner, scaled)
	l.updateTokenInterestRate()

	l.emit(&Withdrawal{EToken: l.self, Provider: owner, Receiver: receiver, Amount: cloneBig(amount)})
	return cloneBig(amount), nil
}

func (l *Ledger) withdrawableStored() *big.Int {
	out := new(big.Int).Sub(l.totalSupplyStored(), l.totalSCR)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// Transfer moves balance between accounts at the current scale. The scale is
// advanced first but never changed by the transfer itself.
func (l *Ledger) Transfer(caller, to types.Address, amount *big.Int) error {
	return l.transferFrom(caller, caller, to, amount)
}

// TransferFrom moves balance on behalf of from, consuming spender allowance.
func (l *Ledger) TransferFrom(spender, from, to types.Address, amount *big.Int) error {
	if l == nil {
		return errNilLedger
	}
	if spender != from {
		if err := l.spendAllowance(from, spender, amount); err != nil {
			return err
		}
	}
	return l.transferFrom(spender, from, to, amount)
}

func (l *Ledger) transferFrom(caller, from, to types.Address, amount *big.Int) error {
	if l == nil {
		return errNilLedger
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if l.whitelist != nil && !l.whitelist.AcceptsTransfer(from, to, amount) {
		return ErrNotWhitelisted
	}

	l.advance()

	fromScaled := l.scaledBalances[from]
	balance := wadMul(fromScaled, l.scale)
	if amount.Cmp(balance) > 0 {
		return ErrInsufficientBalance
	}
	scaled := wadDiv(amount, l.scale)
	if amount.Cmp(balance) == 0 {
		// Full-balance moves carry the exact principal so no dust is
		// stranded on the sender.
		scaled = cloneBig(fromScaled)
	}
	l.debitScaled(from, scaled)
	l.creditScaled(to, scaled)

	l.emit(&Transfer{EToken: l.self, From: from, To: to, Amount: cloneBig(amount)})
	return nil
}

// Approve sets spender's allowance over owner's balance. MaxAmount grants an
// unlimited allowance that is never decremented.
func (l *Ledger) Approve(owner, spender types.Address, amount *big.Int) {
	if l == nil {
		return
	}
	l.allowances[allowanceKey{owner: owner, spender: spender}] = cloneBig(amount)
}

// Allowance returns the remaining allowance from owner to spender.
func (l *Ledger) Allowance(owner, spender types.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return cloneBig(l.allowances[allowanceKey{owner: owner, spender: spender}])
}

func (l *Ledger) spendAllowance(owner, spender types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	key := allowanceKey{owner: owner, spender: spender}
	allowed := l.allowances[key]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if isMaxAmount(allowed) {
		return nil
	}
	l.allowances[key] = new(big.Int).Sub(allowed, amount)
	return nil
}

// PermitNonce returns the next permit nonce expected for owner.
func (l *Ledger) PermitNonce(owner types.Address) uint64 {
	if l == nil {
		return 0
	}
	return l.permitNonces[owner]
}

// PermitDigest computes the digest owner must sign to approve spender for
// value until deadline using the given nonce.
func (l *Ledger) PermitDigest(owner, spender types.Address, value *big.Int, nonce uint64, deadline int64) []byte {
	return permitDigest(l.self, owner, spender, value, nonce, deadline)
}

var permitTypeHash = ethcrypto.Keccak256([]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"))

func permitDigest(ledger, owner, spender types.Address, value *big.Int, nonce uint64, deadline int64) []byte {
	var valueBytes, nonceBytes, deadlineBytes [32]byte
	if value != nil && value.BitLen() <= 256 && value.Sign() >= 0 {
		value.FillBytes(valueBytes[:])
	}
	new(big.Int).SetUint64(nonce).FillBytes(nonceBytes[:])
	new(big.Int).SetInt64(deadline).FillBytes(deadlineBytes[:])
	return ethcrypto.Keccak256(
		permitTypeHash,
		ledger[:],
		owner[:],
		spender[:],
		valueBytes[:],
		nonceBytes[:],
		deadlineBytes[:],
	)
}

// Permit sets an allowance authorized by an offline secp256k1 signature over
// the permit digest instead of a prior Approve call. The signature is the
// 65-byte [R || S || V] form.
func (l *Ledger) Permit(owner, spender types.Address, value *big.Int, deadline int64, sig []byte) error {
	if l == nil {
		return errNilLedger
	}
	if deadline < l.now() {
		return ErrPermitExpired
	}
	if value == nil || value.Sign() < 0 || value.BitLen() > 256 {
		return ErrInvalidAmount
	}
	if len(sig) != 65 {
		return ErrInvalidPermit
	}
	nonce := l.permitNonces[owner]
	digest := permitDigest(l.self, owner, spender, value, nonce, deadline)
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return ErrInvalidPermit
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	if !bytes.Equal(recovered[:], owner[:]) {
		return ErrInvalidPermit
	}
	l.permitNonces[owner] = nonce + 1
	l.allowances[allowanceKey{owner: owner, spender: spender}] = cloneBig(value)
	return nil
}

// Redistribute burns amount of balance from the caller's escrow account and
// folds the same amount back into the scale, spreading it across all
// holders. Only the assigned cooler may invoke it; it is how capped-request
// surplus returns to the general pool instead of accruing to the queue.
func (l *Ledger) Redistribute(caller, from types.Address, amount *big.Int) error {
	if l == nil {
		return errNilLedger
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if l.coolerAddr.IsZero() || caller != l.coolerAddr {
		return ErrOnlyCooler
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.advance()

	fromScaled := cloneBig(l.scaledBalances[from])
	scaled := wadDivUp(amount, l.scale)
	if scaled.Cmp(fromScaled) > 0 {
		scaled = cloneBig(fromScaled)
		amount = wadMul(scaled, l.scale)
		if amount.Sign() == 0 {
			return nil
		}
	}
	l.debitScaled(from, scaled)
	if err := l.discreteEarnings(amount); err != nil {
		return err
	}
	l.updateTokenInterestRate()
	return nil
}

func (l *Ledger) creditScaled(owner types.Address, scaled *big.Int) {
	if scaled.Sign() == 0 {
		return
	}
	current := l.scaledBalances[owner]
	if current == nil {
		current = big.NewInt(0)
	}
	l.scaledBalances[owner] = new(big.Int).Add(current, scaled)
	l.scaledTotalSupply = new(big.Int).Add(l.scaledTotalSupply, scaled)
}

func (l *Ledger) debitScaled(owner types.Address, scaled *big.Int) {
	if scaled.Sign() == 0 {
		return
	}
	current := l.scaledBalances[owner]
	if current == nil {
		current = big.NewInt(0)
	}
	next := new(big.Int).Sub(current, scaled)
	if next.Sign() <= 0 {
		delete(l.scaledBalances, owner)
	} else {
		l.scaledBalances[owner] = next
	}
	l.scaledTotalSupply = new(big.Int).Sub(l.scaledTotalSupply, scaled)
	if l.scaledTotalSupply.Sign() < 0 {
		l.scaledTotalSupply = big.NewInt(0)
	}
}
