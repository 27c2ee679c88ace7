package etoken

import (
	"math/big"

	"riskpool/core/types"
	"riskpool/native/common"
)

func (l *Ledger) isBorrower(addr types.Address) bool {
	if l == nil {
		return false
	}
	_, ok := l.loans[addr]
	return ok
}

// AddBorrower registers a borrower on the allow-list. Reserve-only. A
// borrower can be added exactly once; addresses that were removed stay
// removed.
func (l *Ledger) AddBorrower(caller, borrower types.Address) error {
	if l == nil {
		return errNilLedger
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if caller != l.reserve {
		return ErrOnlyReserve
	}
	if _, ok := l.loans[borrower]; ok {
		return ErrBorrowerExists
	}
	if l.removed[borrower] {
		return ErrBorrowerRemoved
	}
	l.loans[borrower] = &Loan{
		Principal:   big.NewInt(0),
		Rate:        cloneBig(l.params.InternalLoanInterestRate),
		LastAccrual: l.now(),
	}
	l.emit(&BorrowerAdded{EToken: l.self, Borrower: borrower})
	return nil
}

// RemoveBorrower deregisters a borrower. Reserve-only. Outstanding debt is
// realized as a defaulted-debt loss against the scale in the same atomic
// transition; afterwards GetLoan reports zero.
func (l *Ledger) RemoveBorrower(caller, borrower types.Address) error {
	if l == nil {
		return errNilLedger
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if caller != l.reserve {
		return ErrOnlyReserve
	}
	loan, ok := l.loans[borrower]
	if !ok {
		return ErrUnknownBorrower
	}

	l.advance()
	l.accrueLoan(loan)

	defaulted := cloneBig(loan.Principal)
	if defaulted.Sign() > 0 {
		if err := l.discreteEarnings(new(big.Int).Neg(defaulted)); err != nil {
			return err
		}
		if l.logger != nil {
			l.logger.Warn("borrower defaulted", "etoken", l.name, "borrower", borrower.Hex(), "debt", defaulted.String())
		}
		l.emit(&DebtDefaulted{EToken: l.self, Borrower: borrower, Amount: defaulted})
	}
	delete(l.loans, borrower)
	l.removed[borrower] = true
	l.updateTokenInterestRate()
	l.emit(&BorrowerRemoved{EToken: l.self, Borrower: borrower})
	return nil
}

// GetLoan returns the borrower's outstanding debt compounded to this
// instant, zero for unknown borrowers.
func (l *Ledger) GetLoan(borrower types.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	loan, ok := l.loans[borrower]
	if !ok {
		return big.NewInt(0)
	}
	elapsed := l.now() - loan.LastAccrual
	return wadMul(loan.Principal, scaleFactor(loan.Rate, elapsed))
}

// accrueLoan compounds the loan principal to now. The loan clock is
// independent of the pool scale clock.
func (l *Ledger) accrueLoan(loan *Loan) {
	now := l.now()
	if now <= loan.LastAccrual {
		return
	}
	loan.Principal = wadMul(loan.Principal, scaleFactor(loan.Rate, now-loan.LastAccrual))
	loan.LastAccrual = now
}

// MaxNegativeAdjustment returns the funds an internal loan may take before
// violating the configured liquidity requirement floor.
func (l *Ledger) MaxNegativeAdjustment() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	available := l.FundsAvailable()
	available.Sub(available, l.pendingEscrow())
	if l.params.LiquidityRequirement != nil && l.params.LiquidityRequirement.Sign() > 0 {
		floor := wadMul(l.TotalSupply(), l.params.LiquidityRequirement)
		available.Sub(available, floor)
	}
	if available.Sign() < 0 {
		return big.NewInt(0)
	}
	return available
}

// InternalLoan lends amount of the ledger's liquidity to receiver on the
// calling borrower's book, pulling from the yield vault when cash is short.
// MaxAmount resolves to MaxNegativeAdjustment, never a literal maximum.
func (l *Ledger) InternalLoan(caller types.Address, amount *big.Int, receiver types.Address) (*big.Int, error) {
	if l == nil || l.asset == nil {
		return nil, errNilAsset
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return nil, err
	}
	loan, ok := l.loans[caller]
	if !ok {
		return nil, ErrOnlyBorrower
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	l.advance()
	l.accrueLoan(loan)

	if isMaxAmount(amount) {
		amount = l.MaxNegativeAdjustment()
		if amount.Sign() == 0 {
			return nil, ErrNotEnoughLiquidity
		}
	} else if amount.Cmp(l.MaxNegativeAdjustment()) > 0 {
		return nil, ErrNotEnoughLiquidity
	}

	if err := l.ensureCash(amount); err != nil {
		return nil, err
	}
	if err := l.asset.Transfer(l.self, receiver, amount); err != nil {
		return nil, err
	}
	loan.Principal = new(big.Int).Add(loan.Principal, amount)

	l.emit(&InternalLoan{EToken: l.self, Borrower: caller, Receiver: receiver, Amount: cloneBig(amount)})
	return cloneBig(amount), nil
}

// RepayLoan pulls amount of the underlying from `from` and reduces the
// calling borrower's accrued debt. Repaying more than the outstanding debt
// is a caller error, rejected with ErrRepayExceedsDebt.
func (l *Ledger) RepayLoan(caller types.Address, amount *big.Int, from types.Address) error {
	if l == nil || l.asset == nil {
		return errNilAsset
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	loan, ok := l.loans[caller]
	if !ok {
		return ErrOnlyBorrower
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.advance()
	l.accrueLoan(loan)

	if amount.Cmp(loan.Principal) > 0 {
		return ErrRepayExceedsDebt
	}
	if err := l.asset.Transfer(from, l.self, amount); err != nil {
		return err
	}
	loan.Principal = new(big.Int).Sub(loan.Principal, amount)

	l.emit(&LoanRepaid{EToken: l.self, Borrower: caller, From: from, Amount: cloneBig(amount)})
	return nil
}

// SetInternalLoanInterestRate updates the rate applied to internal loans.
// Reserve-only. Outstanding loans accrue at their old rate up to this
// instant before switching.
func (l *Ledger) SetInternalLoanInterestRate(caller types.Address, rate *big.Int) error {
	if l == nil {
		return errNilLedger
	}
	if caller != l.reserve {
		return ErrOnlyReserve
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidAmount
	}
	for _, loan := range l.loans {
		l.accrueLoan(loan)
		loan.Rate = cloneBig(rate)
	}
	l.params.InternalLoanInterestRate = cloneBig(rate)
	return nil
}
