package utils

import (
	"math/big"
	"strconv"
)

// Amounts travel as float64 but all arithmetic on them goes through exact
// rationals so that rounding happens exactly once, at the end.

// Rat converts an amount to an exact rational using its shortest decimal
// representation, so 0.1 becomes 1/10 rather than the nearest binary float.
func Rat(amount float64) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(amount, 'f', -1, 64))
	if !ok {
		return new(big.Rat)
	}
	return r
}

func RatInt(n int64) *big.Rat {
	return new(big.Rat).SetInt64(n)
}

// Round2 rounds half-up (away from zero) to two decimals.
func Round2(r *big.Rat) float64 {
	v, _ := strconv.ParseFloat(r.FloatString(2), 64)
	return v
}

// RoundAmount rounds a float amount half-up to two decimals.
func RoundAmount(amount float64) float64 {
	return Round2(Rat(amount))
}

func MinRat(a, b *big.Rat) *big.Rat {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Percent returns amount * pct / 100.
func Percent(amount, pct *big.Rat) *big.Rat {
	out := new(big.Rat).Mul(amount, pct)
	return out.Quo(out, RatInt(100))
}
