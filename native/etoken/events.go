package etoken

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"riskpool/core/types"
)

const (
	EventTypeDeposit           = "etoken.deposit"
	EventTypeWithdrawal        = "etoken.withdrawal"
	EventTypeTransfer          = "etoken.transfer"
	EventTypeSCRLocked         = "etoken.scr_locked"
	EventTypeSCRUnlocked       = "etoken.scr_unlocked"
	EventTypeEarningsRecorded  = "etoken.earnings_recorded"
	EventTypeInternalLoan      = "etoken.internal_loan"
	EventTypeLoanRepaid        = "etoken.loan_repaid"
	EventTypeDebtDefaulted     = "etoken.debt_defaulted"
	EventTypeBorrowerAdded     = "etoken.borrower_added"
	EventTypeBorrowerRemoved   = "etoken.borrower_removed"
	EventTypeYieldVaultChanged = "etoken.yield_vault_changed"
	EventTypeYieldVaultDeposit = "etoken.yield_vault_deposit"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Deposit is emitted when the reserve funds an LP position.
type Deposit struct {
	EToken   types.Address
	Provider types.Address
	Amount   *big.Int
}

func (Deposit) EventType() string { return EventTypeDeposit }

func (e *Deposit) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"etoken":   e.EToken.Hex(),
			"provider": e.Provider.Hex(),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// Withdrawal is emitted when balance leaves the pool, directly or through
// the cooler.
type Withdrawal struct {
	EToken   types.Address
	Provider types.Address
	Receiver types.Address
	Amount   *big.Int
}

func (Withdrawal) EventType() string { return EventTypeWithdrawal }

func (e *Withdrawal) Event() *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawal,
		Attributes: map[string]string{
			"etoken":   e.EToken.Hex(),
			"provider": e.Provider.Hex(),
			"receiver": e.Receiver.Hex(),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// Transfer is emitted on balance moves between accounts.
type Transfer struct {
	EToken types.Address
	From   types.Address
	To     types.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return EventTypeTransfer }

func (e *Transfer) Event() *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"etoken": e.EToken.Hex(),
			"from":   e.From.Hex(),
			"to":     e.To.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

// SCRLocked carries the lock plus the pool-wide weighted rate after the
// lock, so the scale path can be replayed from the event stream alone.
type SCRLocked struct {
	EToken       types.Address
	Borrower     types.Address
	LockID       LockID
	Amount       *big.Int
	Rate         *big.Int
	WeightedRate *big.Int
}

func (SCRLocked) EventType() string { return EventTypeSCRLocked }

func (e *SCRLocked) Event() *types.Event {
	return &types.Event{
		Type: EventTypeSCRLocked,
		Attributes: map[string]string{
			"etoken":       e.EToken.Hex(),
			"borrower":     e.Borrower.Hex(),
			"lockId":       hex.EncodeToString(e.LockID[:]),
			"amount":       formatAmount(e.Amount),
			"rate":         formatAmount(e.Rate),
			"weightedRate": formatAmount(e.WeightedRate),
		},
	}
}

// SCRUnlocked mirrors SCRLocked and records the caller-supplied interest
// adjustment applied as an earnings delta.
type SCRUnlocked struct {
	EToken       types.Address
	Borrower     types.Address
	LockID       LockID
	Amount       *big.Int
	Rate         *big.Int
	Adjustment   *big.Int
	WeightedRate *big.Int
}

func (SCRUnlocked) EventType() string { return EventTypeSCRUnlocked }

func (e *SCRUnlocked) Event() *types.Event {
	return &types.Event{
		Type: EventTypeSCRUnlocked,
		Attributes: map[string]string{
			"etoken":       e.EToken.Hex(),
			"borrower":     e.Borrower.Hex(),
			"lockId":       hex.EncodeToString(e.LockID[:]),
			"amount":       formatAmount(e.Amount),
			"rate":         formatAmount(e.Rate),
			"adjustment":   formatAmount(e.Adjustment),
			"weightedRate": formatAmount(e.WeightedRate),
		},
	}
}

// EarningsRecorded is emitted on every discrete scale change with the signed
// delta and the resulting scale.
type EarningsRecorded struct {
	EToken types.Address
	Delta  *big.Int
	Scale  *big.Int
}

func (EarningsRecorded) EventType() string { return EventTypeEarningsRecorded }

func (e *EarningsRecorded) Event() *types.Event {
	return &types.Event{
		Type: EventTypeEarningsRecorded,
		Attributes: map[string]string{
			"etoken": e.EToken.Hex(),
			"delta":  formatAmount(e.Delta),
			"scale":  formatAmount(e.Scale),
		},
	}
}

// InternalLoan is emitted when a borrower draws pool liquidity.
type InternalLoan struct {
	EToken   types.Address
	Borrower types.Address
	Receiver types.Address
	Amount   *big.Int
}

func (InternalLoan) EventType() string { return EventTypeInternalLoan }

func (e *InternalLoan) Event() *types.Event {
	return &types.Event{
		Type: EventTypeInternalLoan,
		Attributes: map[string]string{
			"etoken":   e.EToken.Hex(),
			"borrower": e.Borrower.Hex(),
			"receiver": e.Receiver.Hex(),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// LoanRepaid is emitted when internal debt is paid down.
type LoanRepaid struct {
	EToken   types.Address
	Borrower types.Address
	From     types.Address
	Amount   *big.Int
}

func (LoanRepaid) EventType() string { return EventTypeLoanRepaid }

func (e *LoanRepaid) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLoanRepaid,
		Attributes: map[string]string{
			"etoken":   e.EToken.Hex(),
			"borrower": e.Borrower.Hex(),
			"from":     e.From.Hex(),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// DebtDefaulted is emitted when a borrower is removed with outstanding debt;
// the amount is the full defaulted principal realized as a loss.
type DebtDefaulted struct {
	EToken   types.Address
	Borrower types.Address
	Amount   *big.Int
}

func (DebtDefaulted) EventType() string { return EventTypeDebtDefaulted }

func (e *DebtDefaulted) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDebtDefaulted,
		Attributes: map[string]string{
			"etoken":   e.EToken.Hex(),
			"borrower": e.Borrower.Hex(),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// BorrowerAdded is emitted when the reserve registers a borrower.
type BorrowerAdded struct {
	EToken   types.Address
	Borrower types.Address
}

func (BorrowerAdded) EventType() string { return EventTypeBorrowerAdded }

func (e *BorrowerAdded) Event() *types.Event {
	return &types.Event{
		Type: EventTypeBorrowerAdded,
		Attributes: map[string]string{
			"etoken":   e.EToken.Hex(),
			"borrower": e.Borrower.Hex(),
		},
	}
}

// BorrowerRemoved is emitted when the reserve deregisters a borrower.
type BorrowerRemoved struct {
	EToken   types.Address
	Borrower types.Address
}

func (BorrowerRemoved) EventType() string { return EventTypeBorrowerRemoved }

func (e *BorrowerRemoved) Event() *types.Event {
	return &types.Event{
		Type: EventTypeBorrowerRemoved,
		Attributes: map[string]string{
			"etoken":   e.EToken.Hex(),
			"borrower": e.Borrower.Hex(),
		},
	}
}

// YieldVaultChanged is emitted when the linked vault is replaced.
type YieldVaultChanged struct {
	EToken   types.Address
	Migrated bool
}

func (YieldVaultChanged) EventType() string { return EventTypeYieldVaultChanged }

func (e *YieldVaultChanged) Event() *types.Event {
	return &types.Event{
		Type: EventTypeYieldVaultChanged,
		Attributes: map[string]string{
			"etoken":   e.EToken.Hex(),
			"migrated": strconv.FormatBool(e.Migrated),
		},
	}
}

// YieldVaultDeposit is emitted when cash moves into the vault.
type YieldVaultDeposit struct {
	EToken types.Address
	Amount *big.Int
}

func (YieldVaultDeposit) EventType() string { return EventTypeYieldVaultDeposit }

func (e *YieldVaultDeposit) Event() *types.Event {
	return &types.Event{
		Type: EventTypeYieldVaultDeposit,
		Attributes: map[string]string{
			"etoken": e.EToken.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}
