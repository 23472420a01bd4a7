// Package fixedpoint provides saturating 256-bit unsigned arithmetic.
//
// Price magnitudes are arbitrarily large, so every combining operation
// clamps to the maximum representable value instead of wrapping or
// panicking. Differences between unsigned magnitudes branch on comparison
// rather than relying on signed subtraction.
package fixedpoint

import "github.com/holiman/uint256"

// MaxUint256 is the saturation ceiling for add and multiply.
var MaxUint256 = new(uint256.Int).Not(uint256.NewInt(0))

// SaturatingAdd returns a+b, clamped to MaxUint256 on overflow.
func SaturatingAdd(a, b *uint256.Int) *uint256.Int {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return new(uint256.Int).Set(MaxUint256)
	}
	return sum
}

// SaturatingMul returns a*b, clamped to MaxUint256 on overflow.
func SaturatingMul(a, b *uint256.Int) *uint256.Int {
	prod, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return new(uint256.Int).Set(MaxUint256)
	}
	return prod
}

// SaturatingSub returns a-b, clamped to zero when b > a.
func SaturatingSub(a, b *uint256.Int) *uint256.Int {
	if b.Gt(a) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// AbsDiff returns |a-b| without signed arithmetic.
func AbsDiff(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Sub(b, a)
	}
	return new(uint256.Int).Sub(a, b)
}

// Sqrt computes the integer floor square root of n via Newton's method:
// x0 = (n+1)/2, x_{k+1} = (x_k + n/x_k) / 2, stopping once the sequence
// stops decreasing. Exact for all n, including perfect squares:
// Sqrt(n)^2 <= n < (Sqrt(n)+1)^2.
func Sqrt(n *uint256.Int) *uint256.Int {
	if n.IsZero() {
		return new(uint256.Int)
	}

	one := uint256.NewInt(1)
	two := uint256.NewInt(2)

	x := new(uint256.Int).Set(n)
	// (n+1)/2 saturates for n = MaxUint256; the first iteration corrects it.
	y := new(uint256.Int).Div(SaturatingAdd(n, one), two)

	q := new(uint256.Int)
	for y.Lt(x) {
		x.Set(y)
		q.Div(n, x)
		y.Add(x, q)
		y.Div(y, two)
	}

	return x
}
