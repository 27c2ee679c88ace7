package etoken

import "math/big"

// SecondsPerYear is the accrual denominator for annualised rates.
const SecondsPerYear = 31_536_000

var (
	wad = big.NewInt(1_000_000_000_000_000_000) // 1e18 fixed point

	// MaxAmount is the sentinel callers pass to mean "everything
	// available" on withdraw, borrow and vault sweep paths. It is never
	// interpreted as a literal amount.
	MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// Wad returns the fixed-point unit (1e18) as a fresh big.Int.
func Wad() *big.Int { return new(big.Int).Set(wad) }

// WadFromRatio converts num/den into wad fixed point, truncating.
func WadFromRatio(num, den int64) *big.Int {
	if den == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(big.NewInt(num), wad)
	return out.Quo(out, big.NewInt(den))
}

// wadMul multiplies two wad fixed-point values, truncating toward zero.
// Truncation is the single rounding policy for every scale multiplication;
// residual dust of a few smallest units is expected and tolerated.
func wadMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, wad)
}

// wadDiv divides a by b in wad fixed point, truncating toward zero. A zero
// divisor yields zero.
func wadDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, wad)
	return out.Quo(out, b)
}

// wadDivUp divides a by b in wad fixed point, rounding up. Burn paths use
// it when converting an underlying amount into scaled units, so truncation
// dust settles with the pool rather than the account being debited.
func wadDivUp(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(a, wad)
	quo, rem := new(big.Int).QuoRem(num, b, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// scaleFactor returns the wad growth factor 1 + rate*elapsed/YEAR for the
// given annual rate and elapsed seconds.
func scaleFactor(rate *big.Int, elapsed int64) *big.Int {
	if rate == nil || rate.Sign() == 0 || elapsed <= 0 {
		return new(big.Int).Set(wad)
	}
	delta := new(big.Int).Mul(rate, big.NewInt(elapsed))
	delta.Quo(delta, big.NewInt(SecondsPerYear))
	return delta.Add(wad, delta)
}

// projectScale advances a scale by the interest accrued over elapsed seconds
// at the given annual rate. It is the single code path behind both the
// read-only projection and the stored update, so the two can never drift.
func projectScale(scale, rate *big.Int, elapsed int64) *big.Int {
	if scale == nil {
		return new(big.Int).Set(wad)
	}
	if rate == nil || rate.Sign() == 0 || elapsed <= 0 {
		return new(big.Int).Set(scale)
	}
	return wadMul(scale, scaleFactor(rate, elapsed))
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isMaxAmount(v *big.Int) bool {
	return v != nil && v.Cmp(MaxAmount) == 0
}
