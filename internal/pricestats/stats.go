// Package pricestats computes descriptive statistics over ordered price
// series. All functions are single-pass, O(n) time and O(1) extra space,
// and retain no state between calls. Saturating arithmetic keeps large
// magnitudes from trapping on overflow.
package pricestats

import (
	"github.com/holiman/uint256"

	"clmm-range-lab/internal/fixedpoint"
)

// Mean returns the saturating sum of prices divided by their count.
// Returns 0 for an empty series; emptiness is validated by caller-facing
// entry points, not here.
func Mean(prices []*uint256.Int) *uint256.Int {
	if len(prices) == 0 {
		return new(uint256.Int)
	}

	sum := new(uint256.Int)
	for _, p := range prices {
		sum = fixedpoint.SaturatingAdd(sum, p)
	}

	return sum.Div(sum, uint256.NewInt(uint64(len(prices))))
}

// Variance returns the average squared absolute deviation from mean.
// Returns 0 for series of length <= 1.
func Variance(prices []*uint256.Int, mean *uint256.Int) *uint256.Int {
	if len(prices) <= 1 {
		return new(uint256.Int)
	}

	sumSquared := new(uint256.Int)
	for _, p := range prices {
		diff := fixedpoint.AbsDiff(p, mean)
		squared := fixedpoint.SaturatingMul(diff, diff)
		sumSquared = fixedpoint.SaturatingAdd(sumSquared, squared)
	}

	return sumSquared.Div(sumSquared, uint256.NewInt(uint64(len(prices))))
}

// StdDev returns the integer floor square root of Variance.
func StdDev(prices []*uint256.Int, mean *uint256.Int) *uint256.Int {
	return fixedpoint.Sqrt(Variance(prices, mean))
}

// MovementIntensity returns the average absolute difference between
// consecutive prices. Order matters: an unordered series produces a
// meaningless score. Returns 0 for series of length <= 1.
func MovementIntensity(prices []*uint256.Int) *uint256.Int {
	if len(prices) <= 1 {
		return new(uint256.Int)
	}

	total := new(uint256.Int)
	for i := 1; i < len(prices); i++ {
		total = fixedpoint.SaturatingAdd(total, fixedpoint.AbsDiff(prices[i], prices[i-1]))
	}

	return total.Div(total, uint256.NewInt(uint64(len(prices)-1)))
}

// Range returns the minimum and maximum price in a single pass.
// Undefined for an empty series; callers must guard on non-emptiness.
func Range(prices []*uint256.Int) (min, max *uint256.Int) {
	min = new(uint256.Int).Set(fixedpoint.MaxUint256)
	max = new(uint256.Int)

	for _, p := range prices {
		if p.Lt(min) {
			min = new(uint256.Int).Set(p)
		}
		if p.Gt(max) {
			max = new(uint256.Int).Set(p)
		}
	}

	return min, max
}
