package etoken

import (
	"math/big"
	"testing"
)

func TestScaleFactorZeroRateOrElapsed(t *testing.T) {
	if got := scaleFactor(big.NewInt(0), 1000); got.Cmp(wad) != 0 {
		t.Fatalf("zero rate: got %s, want %s", got, wad)
	}
	if got := scaleFactor(WadFromRatio(1, 10), 0); got.Cmp(wad) != 0 {
		t.Fatalf("zero elapsed: got %s, want %s", got, wad)
	}
	if got := scaleFactor(nil, 1000); got.Cmp(wad) != 0 {
		t.Fatalf("nil rate: got %s, want %s", got, wad)
	}
}

func TestScaleFactorFullYear(t *testing.T) {
	rate := WadFromRatio(1, 10) // 10% annual
	got := scaleFactor(rate, SecondsPerYear)
	want := new(big.Int).Add(Wad(), rate)
	if got.Cmp(want) != 0 {
		t.Fatalf("full year at 10%%: got %s, want %s", got, want)
	}
}

func TestProjectScaleTruncates(t *testing.T) {
	// 1/3 of a year at 10% leaves a repeating decimal; the projection must
	// truncate toward zero, never round up.
	scale := Wad()
	rate := WadFromRatio(1, 10)
	elapsed := int64(SecondsPerYear / 3)

	projected := projectScale(scale, rate, elapsed)
	exactNum := new(big.Int).Mul(rate, big.NewInt(elapsed))
	exactNum.Quo(exactNum, big.NewInt(SecondsPerYear))
	upper := new(big.Int).Add(Wad(), exactNum)
	if projected.Cmp(upper) > 0 {
		t.Fatalf("projection rounded up: got %s, limit %s", projected, upper)
	}
	diff := new(big.Int).Sub(upper, projected)
	if diff.Cmp(big.NewInt(2)) > 0 {
		t.Fatalf("projection dust too large: %s", diff)
	}
}

func TestProjectScaleMatchesRepeatedAdvance(t *testing.T) {
	// A single projection over 2h and two sequential 1h advances may differ
	// only by truncation dust of a few smallest units.
	rate := WadFromRatio(5, 100)
	single := projectScale(Wad(), rate, 7200)
	stepped := projectScale(projectScale(Wad(), rate, 3600), rate, 3600)
	diff := new(big.Int).Sub(single, stepped)
	if diff.CmpAbs(big.NewInt(5)) > 0 {
		t.Fatalf("single %s vs stepped %s differ by %s", single, stepped, diff)
	}
}

func TestWadDivByZero(t *testing.T) {
	if got := wadDiv(big.NewInt(100), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("wadDiv by zero: got %s, want 0", got)
	}
}

func TestWadDivUpRoundsUp(t *testing.T) {
	// Inexact quotient rounds up by exactly one smallest unit.
	down := wadDiv(big.NewInt(1), big.NewInt(3))
	up := wadDivUp(big.NewInt(1), big.NewInt(3))
	if got := new(big.Int).Sub(up, down); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("inexact quotient: up-down = %s, want 1", got)
	}

	// Exact quotients are unchanged.
	if got := wadDivUp(big.NewInt(4), big.NewInt(2)); got.Cmp(wadDiv(big.NewInt(4), big.NewInt(2))) != 0 {
		t.Fatalf("exact quotient changed: %s", got)
	}

	if got := wadDivUp(big.NewInt(1), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("zero divisor: got %s, want 0", got)
	}
	if got := wadDivUp(nil, big.NewInt(3)); got.Sign() != 0 {
		t.Fatalf("nil numerator: got %s, want 0", got)
	}
}

func TestMaxAmountSentinel(t *testing.T) {
	if !isMaxAmount(MaxAmount) {
		t.Fatal("MaxAmount not recognized as sentinel")
	}
	if isMaxAmount(new(big.Int).Sub(MaxAmount, big.NewInt(1))) {
		t.Fatal("near-max value misread as sentinel")
	}
	if MaxAmount.BitLen() != 256 {
		t.Fatalf("sentinel bit length: got %d, want 256", MaxAmount.BitLen())
	}
}
