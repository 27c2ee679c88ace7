package cooler

import (
	"math/big"
	"strconv"

	"riskpool/core/types"
)

const (
	EventTypeWithdrawalScheduled  = "cooler.withdrawal_scheduled"
	EventTypeWithdrawalExecuted   = "cooler.withdrawal_executed"
	EventTypeETokensRedistributed = "cooler.etokens_redistributed"
	EventTypeRequestTransferred   = "cooler.request_transferred"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// WithdrawalScheduled is emitted when a request enters the queue.
type WithdrawalScheduled struct {
	RequestID  uint64
	EToken     types.Address
	Owner      types.Address
	Amount     *big.Int
	Scale      *big.Int
	UnlockTime int64
}

func (WithdrawalScheduled) EventType() string { return EventTypeWithdrawalScheduled }

func (e *WithdrawalScheduled) Event() *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawalScheduled,
		Attributes: map[string]string{
			"requestId":  strconv.FormatUint(e.RequestID, 10),
			"etoken":     e.EToken.Hex(),
			"owner":      e.Owner.Hex(),
			"amount":     formatAmount(e.Amount),
			"scale":      formatAmount(e.Scale),
			"unlockTime": strconv.FormatInt(e.UnlockTime, 10),
		},
	}
}

// WithdrawalExecuted is emitted when a request is consumed, with the settled
// amount actually paid out.
type WithdrawalExecuted struct {
	RequestID uint64
	EToken    types.Address
	Owner     types.Address
	Amount    *big.Int
}

func (WithdrawalExecuted) EventType() string { return EventTypeWithdrawalExecuted }

func (e *WithdrawalExecuted) Event() *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawalExecuted,
		Attributes: map[string]string{
			"requestId": strconv.FormatUint(e.RequestID, 10),
			"etoken":    e.EToken.Hex(),
			"owner":     e.Owner.Hex(),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// ETokensRedistributed is emitted when escrow surplus above a request's
// capped value is folded back into the general pool scale.
type ETokensRedistributed struct {
	EToken types.Address
	Amount *big.Int
}

func (ETokensRedistributed) EventType() string { return EventTypeETokensRedistributed }

func (e *ETokensRedistributed) Event() *types.Event {
	return &types.Event{
		Type: EventTypeETokensRedistributed,
		Attributes: map[string]string{
			"etoken": e.EToken.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

// RequestTransferred is emitted on ownership changes of a pending request.
type RequestTransferred struct {
	RequestID uint64
	From      types.Address
	To        types.Address
}

func (RequestTransferred) EventType() string { return EventTypeRequestTransferred }

func (e *RequestTransferred) Event() *types.Event {
	return &types.Event{
		Type: EventTypeRequestTransferred,
		Attributes: map[string]string{
			"requestId": strconv.FormatUint(e.RequestID, 10),
			"from":      e.From.Hex(),
			"to":        e.To.Hex(),
		},
	}
}
