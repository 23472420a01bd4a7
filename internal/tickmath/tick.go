// Package tickmath maps prices onto the discretized logarithmic tick grid
// used by concentrated-liquidity pools (geometric step of 1.0001 per tick).
package tickmath

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// MinTick and MaxTick are the canonical bounds of the 1.0001 tick grid.
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// DefaultTickSpacing governs position boundaries: every bound returned
	// to a caller is a multiple of it.
	DefaultTickSpacing int32 = 60
)

var lnBase = math.Log(1.0001)

// PriceToTick maps a price magnitude to its tick index,
// ln(price)/ln(1.0001) truncated toward zero.
//
// The magnitude is converted to a float64 before taking the logarithm, so
// the mapping is approximate near tick boundaries rather than bit-exact
// against fixed-point tick math. A price of zero clamps to MinTick, and
// results are clamped into [MinTick, MaxTick].
func PriceToTick(price *uint256.Int) int32 {
	if price.IsZero() {
		return MinTick
	}

	f, _ := new(big.Float).SetInt(price.ToBig()).Float64()
	tick := math.Log(f) / lnBase

	if tick <= float64(MinTick) {
		return MinTick
	}
	if tick >= float64(MaxTick) {
		return MaxTick
	}

	return int32(tick)
}

// RoundToSpacing rounds tick to a multiple of spacing by truncating integer
// division: (tick/spacing)*spacing. For negative ticks this rounds toward
// zero, which differs from the floor rounding some tick-math conventions
// use; the asymmetry between negative and positive ranges is deliberate and
// preserved for compatibility.
func RoundToSpacing(tick, spacing int32) int32 {
	return (tick / spacing) * spacing
}
