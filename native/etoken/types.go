package etoken

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"riskpool/core/types"
)

// LockID identifies a single SCR lock. Identifiers are caller-supplied;
// LockIDFor derives a deterministic one from the borrower and an external
// reference (typically a policy id).
type LockID [32]byte

// LockIDFor derives a deterministic lock identifier from the borrower
// address and an external reference such as a policy id.
func LockIDFor(borrower types.Address, externalID []byte) LockID {
	var id LockID
	copy(id[:], ethcrypto.Keccak256(borrower[:], externalID))
	return id
}

// scrLock tracks one unit of locked solvency capital and the annual rate the
// borrower committed to pay on it.
type scrLock struct {
	amount *big.Int
	rate   *big.Int
}

// Loan is the accrual state for one borrower's internal debt. Principal is
// the compounded outstanding amount as of LastAccrual.
type Loan struct {
	Principal   *big.Int
	Rate        *big.Int
	LastAccrual int64
}

// Clone returns a deep copy of the loan record.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	return &Loan{
		Principal:   cloneBig(l.Principal),
		Rate:        cloneBig(l.Rate),
		LastAccrual: l.LastAccrual,
	}
}

// Asset is the underlying fungible token the pool is denominated in. The
// implementation lives with the host; the ledger only moves balances between
// accounts it already controls.
type Asset interface {
	// Address identifies the asset so vault compatibility can be checked.
	Address() types.Address
	BalanceOf(owner types.Address) *big.Int
	Transfer(from, to types.Address, amount *big.Int) error
}

// YieldVault is the ERC-4626-style external vault the ledger can park idle
// liquidity in. Share price may move between checkpoints; RecordEarnings
// folds the difference into the scale.
type YieldVault interface {
	Asset() types.Address
	ConvertToShares(assets *big.Int) *big.Int
	ConvertToAssets(shares *big.Int) *big.Int
	Deposit(assets *big.Int, receiver types.Address) (*big.Int, error)
	Withdraw(assets *big.Int, receiver, owner types.Address) (*big.Int, error)
}

// Whitelist optionally gates deposits, withdrawals and transfers. A nil
// whitelist accepts everything.
type Whitelist interface {
	AcceptsDeposit(provider types.Address, amount *big.Int) bool
	AcceptsWithdrawal(provider types.Address, amount *big.Int) bool
	AcceptsTransfer(from, to types.Address, amount *big.Int) bool
}

// CoolerView is the slice of the cooler queue the ledger consults when
// deciding whether direct withdrawals are allowed and how much liquidity
// the queue has already earmarked for scheduled requests.
type CoolerView interface {
	CooldownPeriod(etk types.Address) int64
	PendingWithdrawals(etk types.Address) *big.Int
}

// Params groups the governance-controlled knobs of a ledger.
type Params struct {
	// LiquidityRequirement is the wad fraction of total supply that must
	// stay liquid; it bounds internal loans.
	LiquidityRequirement *big.Int
	// InternalLoanInterestRate is the annual wad rate newly added
	// borrowers accrue on internal loans.
	InternalLoanInterestRate *big.Int
	// MaxUtilization optionally caps totalSCR/totalSupply in wad. Zero or
	// nil disables the cap; utilization above 100% stays representable.
	MaxUtilization *big.Int
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	return Params{
		LiquidityRequirement:     cloneBig(p.LiquidityRequirement),
		InternalLoanInterestRate: cloneBig(p.InternalLoanInterestRate),
		MaxUtilization:           cloneBig(p.MaxUtilization),
	}
}
