package etoken

import (
	"errors"
	"math/big"
	"testing"
)

func TestBorrowerLifecycle(t *testing.T) {
	f := newFixture(t)

	if err := f.ledger.AddBorrower(testLPA, testBorrower); !errors.Is(err, ErrOnlyReserve) {
		t.Fatalf("add by non-reserve: got %v, want ErrOnlyReserve", err)
	}
	f.addBorrower(t)
	if err := f.ledger.AddBorrower(testReserve, testBorrower); !errors.Is(err, ErrBorrowerExists) {
		t.Fatalf("duplicate add: got %v, want ErrBorrowerExists", err)
	}

	if err := f.ledger.RemoveBorrower(testReserve, testLPA); !errors.Is(err, ErrUnknownBorrower) {
		t.Fatalf("remove unknown: got %v, want ErrUnknownBorrower", err)
	}
	if err := f.ledger.RemoveBorrower(testReserve, testBorrower); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// Removal is terminal; the address can never come back.
	if err := f.ledger.AddBorrower(testReserve, testBorrower); !errors.Is(err, ErrBorrowerRemoved) {
		t.Fatalf("re-add removed: got %v, want ErrBorrowerRemoved", err)
	}
}

func TestInternalLoanDrawAndRepay(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, testLPA, units(1000))
	f.addBorrower(t)

	receiver := addr(0x66)
	drawn, err := f.ledger.InternalLoan(testBorrower, units(500), receiver)
	if err != nil {
		t.Fatalf("loan: %v", err)
	}
	if drawn.Cmp(units(500)) != 0 {
		t.Fatalf("drawn: got %s, want %s", drawn, units(500))
	}
	if got := f.asset.BalanceOf(receiver); got.Cmp(units(500)) != 0 {
		t.Fatalf("receiver cash: got %s, want %s", got, units(500))
	}
	if got := f.ledger.GetLoan(testBorrower); got.Cmp(units(500)) != 0 {
		t.Fatalf("debt after draw: got %s, want %s", got, units(500))
	}

	// A year at the configured 10% compounds the debt to 550, while the pool
	// scale stays untouched: loans accrue on their own clock.
	f.advanceTime(SecondsPerYear)
	if got := f.ledger.GetLoan(testBorrower); got.Cmp(units(550)) != 0 {
		t.Fatalf("debt after a year: got %s, want %s", got, units(550))
	}
	if got := f.ledger.GetCurrentScale(false); got.Cmp(Wad()) != 0 {
		t.Fatalf("scale moved with no SCR: got %s", got)
	}

	if err := f.ledger.RepayLoan(testBorrower, units(551), receiver); !errors.Is(err, ErrRepayExceedsDebt) {
		t.Fatalf("overpay: got %v, want ErrRepayExceedsDebt", err)
	}
	f.asset.mint(receiver, units(50))
	if err := f.ledger.RepayLoan(testBorrower, units(550), receiver); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if got := f.ledger.GetLoan(testBorrower); got.Sign() != 0 {
		t.Fatalf("debt after full repay: got %s, want 0", got)
	}
}

func TestInternalLoanRespectsLiquidityFloor(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, testLPA, units(1000))
	f.addBorrower(t)

	// 5% of supply must stay liquid, so at most 950 can leave.
	closeTo(t, "max negative adjustment", f.ledger.MaxNegativeAdjustment(), units(950), 2)

	receiver := addr(0x66)
	if _, err := f.ledger.InternalLoan(testBorrower, units(960), receiver); !errors.Is(err, ErrNotEnoughLiquidity) {
		t.Fatalf("loan above floor: got %v, want ErrNotEnoughLiquidity", err)
	}

	drawn, err := f.ledger.InternalLoan(testBorrower, MaxAmount, receiver)
	if err != nil {
		t.Fatalf("max loan: %v", err)
	}
	closeTo(t, "max draw", drawn, units(950), 2)
	if _, err := f.ledger.InternalLoan(testBorrower, MaxAmount, receiver); !errors.Is(err, ErrNotEnoughLiquidity) {
		t.Fatalf("max loan on empty headroom: got %v, want ErrNotEnoughLiquidity", err)
	}
}

func TestInternalLoanRequiresRegistration(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, testLPA, units(1000))

	if _, err := f.ledger.InternalLoan(testLPA, units(100), testLPA); !errors.Is(err, ErrOnlyBorrower) {
		t.Fatalf("loan by non-borrower: got %v, want ErrOnlyBorrower", err)
	}
	if err := f.ledger.RepayLoan(testLPA, units(100), testLPA); !errors.Is(err, ErrOnlyBorrower) {
		t.Fatalf("repay by non-borrower: got %v, want ErrOnlyBorrower", err)
	}
}

func TestRemoveBorrowerDefaultsOutstandingDebt(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, testLPA, units(1000))
	f.addBorrower(t)

	receiver := addr(0x66)
	if _, err := f.ledger.InternalLoan(testBorrower, units(200), receiver); err != nil {
		t.Fatalf("loan: %v", err)
	}
	f.advanceTime(SecondsPerYear)

	supplyBefore := f.ledger.TotalSupply()
	if err := f.ledger.RemoveBorrower(testReserve, testBorrower); err != nil {
		t.Fatalf("remove: %v", err)
	}

	defaults := f.eventsOfType(EventTypeDebtDefaulted)
	if len(defaults) != 1 {
		t.Fatalf("default events: got %d, want 1", len(defaults))
	}
	evt := defaults[0].(*DebtDefaulted)
	if evt.Amount.Cmp(units(220)) != 0 {
		t.Fatalf("defaulted amount: got %s, want %s", evt.Amount, units(220))
	}

	want := new(big.Int).Sub(supplyBefore, units(220))
	closeTo(t, "supply after default", f.ledger.TotalSupply(), want, 2)
	if got := f.ledger.GetLoan(testBorrower); got.Sign() != 0 {
		t.Fatalf("debt after removal: got %s, want 0", got)
	}
}

func TestSetInternalLoanInterestRateAccruesFirst(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, testLPA, units(1000))
	f.addBorrower(t)

	receiver := addr(0x66)
	if _, err := f.ledger.InternalLoan(testBorrower, units(400), receiver); err != nil {
		t.Fatalf("loan: %v", err)
	}

	// One year at 10%, then one year at 5%: 400 -> 440 -> 462.
	f.advanceTime(SecondsPerYear)
	if err := f.ledger.SetInternalLoanInterestRate(testLPA, WadFromRatio(5, 100)); !errors.Is(err, ErrOnlyReserve) {
		t.Fatalf("rate change by non-reserve: got %v, want ErrOnlyReserve", err)
	}
	if err := f.ledger.SetInternalLoanInterestRate(testReserve, WadFromRatio(5, 100)); err != nil {
		t.Fatalf("rate change: %v", err)
	}
	f.advanceTime(SecondsPerYear)

	closeTo(t, "debt after rate switch", f.ledger.GetLoan(testBorrower), units(462), 2)
}
