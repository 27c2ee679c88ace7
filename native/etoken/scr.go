package etoken

import (
	"math/big"

	"riskpool/core/types"
	"riskpool/native/common"
)

// FundsAvailableToLock returns max(0, totalSupply - totalSCR - pending
// cooler escrow), the capital a borrower can still lock. When a utilization
// cap is configured the headroom under the cap applies instead, whichever
// is lower.
func (l *Ledger) FundsAvailableToLock() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	supply := l.TotalSupply()
	pending := l.pendingEscrow()
	out := new(big.Int).Sub(supply, l.totalSCR)
	out.Sub(out, pending)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	if l.params.MaxUtilization != nil && l.params.MaxUtilization.Sign() > 0 {
		capped := wadMul(supply, l.params.MaxUtilization)
		capped.Sub(capped, l.totalSCR)
		capped.Sub(capped, pending)
		if capped.Sign() < 0 {
			return big.NewInt(0)
		}
		if capped.Cmp(out) < 0 {
			return capped
		}
	}
	return out
}

// GetLock returns the amount and rate stored under a lock id, or nils when
// the id is unknown.
func (l *Ledger) GetLock(id LockID) (amount, rate *big.Int) {
	if l == nil {
		return nil, nil
	}
	lock, ok := l.locks[id]
	if !ok {
		return nil, nil
	}
	return cloneBig(lock.amount), cloneBig(lock.rate)
}

// LockScr locks amount of solvency capital under id at the given annual
// rate. Borrower-only. The scale is advanced first; the new pool-wide
// weighted rate is recomputed and included in the emitted event for audit
// and replay.
func (l *Ledger) LockScr(caller types.Address, id LockID, amount, rate *big.Int) error {
	if l == nil {
		return errNilLedger
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if !l.isBorrower(caller) {
		return ErrOnlyBorrower
	}
	if amount == nil || amount.Sign() <= 0 || rate == nil || rate.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, exists := l.locks[id]; exists {
		return ErrLockExists
	}

	l.advance()

	pending := l.pendingEscrow()
	available := new(big.Int).Sub(l.totalSupplyStored(), l.totalSCR)
	available.Sub(available, pending)
	if l.params.MaxUtilization != nil && l.params.MaxUtilization.Sign() > 0 {
		capped := wadMul(l.totalSupplyStored(), l.params.MaxUtilization)
		capped.Sub(capped, l.totalSCR)
		capped.Sub(capped, pending)
		if capped.Cmp(available) < 0 {
			available = capped
		}
	}
	if available.Sign() < 0 || amount.Cmp(available) > 0 {
		return ErrNotEnoughSCRFunds
	}

	l.locks[id] = &scrLock{amount: cloneBig(amount), rate: cloneBig(rate)}
	l.totalSCR = new(big.Int).Add(l.totalSCR, amount)
	l.scrRateSum = new(big.Int).Add(l.scrRateSum, new(big.Int).Mul(amount, rate))
	l.updateTokenInterestRate()

	l.emit(&SCRLocked{
		EToken:       l.self,
		Borrower:     caller,
		LockID:       id,
		Amount:       cloneBig(amount),
		Rate:         cloneBig(rate),
		WeightedRate: cloneBig(l.tokenInterestRate),
	})
	return nil
}

// UnlockScr releases amount of locked capital from id and applies the
// caller-supplied adjustment as a signed earnings delta. The adjustment
// reconciles interest quoted at lock time against what the continuously
// changing weighted rate actually compounded; the ledger trusts the caller's
// figure instead of keeping per-lock accrual history.
func (l *Ledger) UnlockScr(caller types.Address, id LockID, amount, rate, adjustment *big.Int) error {
	return l.unlockScr(caller, id, amount, rate, adjustment, types.Address{}, nil)
}

// UnlockScrWithRefund is UnlockScr plus a direct transfer of refundAmount of
// the underlying asset to refundTo, returning unused cost of capital on
// early resolution. The refund pulls from the yield vault when cash is
// short.
func (l *Ledger) UnlockScrWithRefund(caller types.Address, id LockID, amount, rate, adjustment *big.Int, refundTo types.Address, refundAmount *big.Int) error {
	if refundAmount == nil || refundAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return l.unlockScr(caller, id, amount, rate, adjustment, refundTo, refundAmount)
}

func (l *Ledger) unlockScr(caller types.Address, id LockID, amount, rate, adjustment *big.Int, refundTo types.Address, refundAmount *big.Int) error {
	if l == nil {
		return errNilLedger
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if !l.isBorrower(caller) {
		return ErrOnlyBorrower
	}
	if amount == nil || amount.Sign() <= 0 || rate == nil {
		return ErrInvalidAmount
	}
	lock, ok := l.locks[id]
	if !ok {
		return ErrUnknownLock
	}
	if lock.rate.Cmp(rate) != 0 || amount.Cmp(lock.amount) > 0 {
		return ErrLockMismatch
	}

	l.advance()

	// Move the refund first so a failed transfer leaves the book untouched.
	if refundAmount != nil {
		if err := l.ensureCash(refundAmount); err != nil {
			return err
		}
		if err := l.asset.Transfer(l.self, refundTo, refundAmount); err != nil {
			return err
		}
	}

	lock.amount = new(big.Int).Sub(lock.amount, amount)
	if lock.amount.Sign() == 0 {
		delete(l.locks, id)
	}
	l.totalSCR = new(big.Int).Sub(l.totalSCR, amount)
	l.scrRateSum = new(big.Int).Sub(l.scrRateSum, new(big.Int).Mul(amount, rate))
	if l.scrRateSum.Sign() < 0 {
		l.scrRateSum = big.NewInt(0)
	}

	if adjustment != nil && adjustment.Sign() != 0 {
		if err := l.discreteEarnings(adjustment); err != nil {
			return err
		}
	}
	l.updateTokenInterestRate()

	l.emit(&SCRUnlocked{
		EToken:       l.self,
		Borrower:     caller,
		LockID:       id,
		Amount:       cloneBig(amount),
		Rate:         cloneBig(rate),
		Adjustment:   cloneBig(adjustment),
		WeightedRate: cloneBig(l.tokenInterestRate),
	})
	return nil
}
