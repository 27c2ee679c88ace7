package cooler

import (
	"errors"
	"math/big"
	"time"

	"riskpool/core/events"
	"riskpool/core/types"
	"riskpool/native/common"
	"riskpool/native/etoken"
)

var (
	errNilLedger = errors.New("cooler: etoken ledger not wired")

	ErrInvalidEToken                   = errors.New("cooler: etoken has no active cooler link")
	ErrCannotDoZeroWithdrawals         = errors.New("cooler: cannot schedule a zero withdrawal")
	ErrWithdrawalRequestEarlierThanMin = errors.New("cooler: requested time earlier than the allowed minimum")
	ErrInvalidWithdrawalRequest        = errors.New("cooler: unknown or already executed request")
	ErrWithdrawalNotReady              = errors.New("cooler: request not past its unlock time")
	ErrOnlyRequestOwner                = errors.New("cooler: caller may not move this request")
)

const moduleName = "cooler"

// ETokenLedger is the slice of the scaled-balance ledger the queue operates
// on: balance reads, scale reads, escrow transfers and the redemption path.
type ETokenLedger interface {
	BalanceOf(owner types.Address) *big.Int
	GetCurrentScale(updated bool) *big.Int
	TransferFrom(spender, from, to types.Address, amount *big.Int) error
	Permit(owner, spender types.Address, value *big.Int, deadline int64, sig []byte) error
	Withdraw(caller, owner, receiver types.Address, amount *big.Int) (*big.Int, error)
	Redistribute(caller, from types.Address, amount *big.Int) error
}

// Engine is the deferred-withdrawal queue. It escrows EToken balance per
// request and settles each request at a value determined by ledger state at
// execution time, with full downside and bounded upside.
type Engine struct {
	self types.Address

	ledgers   map[types.Address]ETokenLedger
	cooldowns map[types.Address]int64
	requests  map[uint64]*Request
	nextID    uint64

	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// NewEngine constructs a cooler queue holding escrow under the self address.
func NewEngine(self types.Address) *Engine {
	return &Engine{
		self:      self,
		ledgers:   make(map[types.Address]ETokenLedger),
		cooldowns: make(map[types.Address]int64),
		requests:  make(map[uint64]*Request),
		nextID:    1,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// Address returns the account the queue escrows balances under.
func (e *Engine) Address() types.Address { return e.self }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the administrative pause switches.
func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// RegisterEToken links a ledger so withdrawals can be scheduled against it.
func (e *Engine) RegisterEToken(etk types.Address, ledger ETokenLedger) {
	if e == nil || ledger == nil {
		return
	}
	e.ledgers[etk] = ledger
}

// SetCooldownPeriod configures the per-ledger cooldown in seconds. Zero
// disables the cooldown requirement (direct withdrawals become possible
// again on the ledger side).
func (e *Engine) SetCooldownPeriod(etk types.Address, seconds int64) {
	if e == nil || seconds < 0 {
		return
	}
	e.cooldowns[etk] = seconds
}

// CooldownPeriod returns the configured cooldown for a ledger. Implements
// the view the EToken ledger consults before allowing direct withdrawals.
func (e *Engine) CooldownPeriod(etk types.Address) int64 {
	if e == nil {
		return 0
	}
	return e.cooldowns[etk]
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// GetRequest returns a copy of the stored request, or nil when unknown.
func (e *Engine) GetRequest(id uint64) *Request {
	if e == nil {
		return nil
	}
	return e.requests[id].Clone()
}

// ScheduleWithdrawal escrows amount of the caller's balance on the given
// ledger and mints a request settling no earlier than
// max(minWhen, now+cooldown). MaxAmount resolves to the caller's full
// current balance. A non-zero minWhen earlier than the allowed minimum is
// rejected so callers are never silently delayed.
func (e *Engine) ScheduleWithdrawal(caller, etk types.Address, minWhen int64, amount *big.Int) (uint64, error) {
	return e.schedule(caller, etk, minWhen, amount, nil, 0)
}

// ScheduleWithdrawalWithPermit is ScheduleWithdrawal with the escrow
// transfer authorized by an offline-signed permit instead of a pre-existing
// allowance.
func (e *Engine) ScheduleWithdrawalWithPermit(caller, etk types.Address, minWhen int64, amount *big.Int, deadline int64, sig []byte) (uint64, error) {
	return e.schedule(caller, etk, minWhen, amount, sig, deadline)
}

func (e *Engine) schedule(caller, etk types.Address, minWhen int64, amount *big.Int, permitSig []byte, permitDeadline int64) (uint64, error) {
	if e == nil {
		return 0, errNilLedger
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	ledger, ok := e.ledgers[etk]
	if !ok {
		return 0, ErrInvalidEToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrCannotDoZeroWithdrawals
	}

	if permitSig != nil {
		if err := ledger.Permit(caller, e.self, amount, permitDeadline, permitSig); err != nil {
			return 0, err
		}
	}

	if amount.Cmp(etoken.MaxAmount) == 0 {
		amount = ledger.BalanceOf(caller)
		if amount.Sign() == 0 {
			return 0, ErrCannotDoZeroWithdrawals
		}
	} else {
		amount = cloneBig(amount)
	}

	now := e.now()
	minAllowed := now + e.cooldowns[etk]
	when := minAllowed
	if minWhen > 0 {
		if minWhen < minAllowed {
			return 0, ErrWithdrawalRequestEarlierThanMin
		}
		when = minWhen
	}

	if err := ledger.TransferFrom(e.self, caller, e.self, amount); err != nil {
		return 0, err
	}

	id := e.nextID
	e.nextID++
	req := &Request{
		ID:               id,
		EToken:           etk,
		Owner:            caller,
		AmountAtSchedule: amount,
		ScaleAtSchedule:  ledger.GetCurrentScale(true),
		UnlockTime:       when,
	}
	e.requests[id] = req

	e.emit(&WithdrawalScheduled{
		RequestID:  id,
		EToken:     etk,
		Owner:      caller,
		Amount:     cloneBig(amount),
		Scale:      cloneBig(req.ScaleAtSchedule),
		UnlockTime: when,
	})
	return id, nil
}

// GetCurrentValue projects a request's settlement value at this instant:
// zero for unknown or executed requests, the scheduled amount scaled down by
// the loss ratio when the scale fell, and the scheduled amount unchanged
// when the scale rose.
func (e *Engine) GetCurrentValue(id uint64) *big.Int {
	if e == nil {
		return big.NewInt(0)
	}
	req, ok := e.requests[id]
	if !ok || req.Executed {
		return big.NewInt(0)
	}
	ledger, ok := e.ledgers[req.EToken]
	if !ok {
		return big.NewInt(0)
	}
	return requestValue(req, ledger.GetCurrentScale(false))
}

func requestValue(req *Request, scaleNow *big.Int) *big.Int {
	if scaleNow.Cmp(req.ScaleAtSchedule) >= 0 {
		return cloneBig(req.AmountAtSchedule)
	}
	out := new(big.Int).Mul(req.AmountAtSchedule, scaleNow)
	return out.Quo(out, req.ScaleAtSchedule)
}

// ExecuteWithdrawal settles a matured request: the capped current value is
// redeemed from the ledger to the request's current owner, the request is
// consumed, and any escrow surplus beyond the capped value is folded back
// into the pool scale via a redistribution event rather than accruing to the
// queue.
func (e *Engine) ExecuteWithdrawal(id uint64) (*big.Int, error) {
	if e == nil {
		return nil, errNilLedger
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	req, ok := e.requests[id]
	if !ok || req.Executed {
		return nil, ErrInvalidWithdrawalRequest
	}
	if e.now() < req.UnlockTime {
		return nil, ErrWithdrawalNotReady
	}
	ledger, ok := e.ledgers[req.EToken]
	if !ok {
		return nil, ErrInvalidEToken
	}

	scaleNow := ledger.GetCurrentScale(false)
	value := requestValue(req, scaleNow)

	// Escrowed principal for this request, valued at the current scale.
	escrowScaled := new(big.Int).Mul(req.AmountAtSchedule, wadUnit)
	escrowScaled.Quo(escrowScaled, req.ScaleAtSchedule)
	escrowValue := new(big.Int).Mul(escrowScaled, scaleNow)
	escrowValue.Quo(escrowValue, wadUnit)

	if value.Sign() > 0 {
		if _, err := ledger.Withdraw(e.self, e.self, req.Owner, value); err != nil {
			return nil, err
		}
	}

	surplus := new(big.Int).Sub(escrowValue, value)
	if surplus.Sign() > 0 {
		if err := ledger.Redistribute(e.self, e.self, surplus); err != nil {
			return nil, err
		}
		e.emit(&ETokensRedistributed{EToken: req.EToken, Amount: cloneBig(surplus)})
	}

	req.Executed = true
	e.emit(&WithdrawalExecuted{
		RequestID: id,
		EToken:    req.EToken,
		Owner:     req.Owner,
		Amount:    cloneBig(value),
	})
	return value, nil
}

// PendingWithdrawals returns the summed current value of every unexecuted
// request against a ledger: liquidity already earmarked that must not be
// re-lent.
func (e *Engine) PendingWithdrawals(etk types.Address) *big.Int {
	total := big.NewInt(0)
	if e == nil {
		return total
	}
	ledger, ok := e.ledgers[etk]
	if !ok {
		return total
	}
	scaleNow := ledger.GetCurrentScale(false)
	for _, req := range e.requests {
		if req.Executed || req.EToken != etk {
			continue
		}
		total.Add(total, requestValue(req, scaleNow))
	}
	return total
}

// ApproveRequest lets the owner designate one operator allowed to transfer
// the request on their behalf.
func (e *Engine) ApproveRequest(caller types.Address, id uint64, operator types.Address) error {
	if e == nil {
		return errNilLedger
	}
	req, ok := e.requests[id]
	if !ok || req.Executed {
		return ErrInvalidWithdrawalRequest
	}
	if caller != req.Owner {
		return ErrOnlyRequestOwner
	}
	req.Approved = operator
	return nil
}

// TransferRequest moves request ownership. Only the owner or the approved
// operator may transfer; approval clears on transfer.
func (e *Engine) TransferRequest(caller, to types.Address, id uint64) error {
	if e == nil {
		return errNilLedger
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	req, ok := e.requests[id]
	if !ok || req.Executed {
		return ErrInvalidWithdrawalRequest
	}
	if caller != req.Owner && (req.Approved.IsZero() || caller != req.Approved) {
		return ErrOnlyRequestOwner
	}
	from := req.Owner
	req.Owner = to
	req.Approved = types.Address{}
	e.emit(&RequestTransferred{RequestID: id, From: from, To: to})
	return nil
}

var wadUnit = big.NewInt(1_000_000_000_000_000_000)
