// Package volatility condenses price statistics into a bounded score and
// derives a dynamic fee recommendation from it.
package volatility

import (
	"github.com/holiman/uint256"

	"clmm-range-lab/internal/fixedpoint"
	"clmm-range-lab/internal/pricestats"
)

// MaxScore is the ceiling of the volatility score: 0 means no observed
// variation, MaxScore means extreme variation.
const MaxScore = 10000

// Score weighting and fee schedule policy constants. Fixed policy, not
// caller-tunable.
const (
	weightVariation = 6
	weightRange     = 3
	weightMovement  = 1
	weightTotal     = 10

	// Fee schedule: below LowScoreCutoff the base fee applies, at or above
	// HighScoreCutoff the max fee applies, linear interpolation between
	// over a normalized [0, feeInterpolationSpan] range.
	LowScoreCutoff  = 1000
	HighScoreCutoff = 9000

	feeInterpolationSpan = HighScoreCutoff - LowScoreCutoff
)

// Score computes the composite volatility score over an ordered price
// series, relative to basePrice:
//
//	(variationCoefficient*6 + priceRangePercent*3 + movementIntensity*1) / 10
//
// clamped to MaxScore. The variation coefficient is variance scaled by
// 10000 relative to the mean, and the range percent is (max-min) scaled by
// 10000 relative to basePrice. Emptiness of the series is validated by the
// caller-facing entry point, not here.
func Score(prices []*uint256.Int, basePrice *uint256.Int) *uint256.Int {
	mean := pricestats.Mean(prices)
	variance := pricestats.Variance(prices, mean)
	movement := pricestats.MovementIntensity(prices)

	scale := uint256.NewInt(MaxScore)

	variationCoefficient := new(uint256.Int)
	if !mean.IsZero() {
		variationCoefficient.Div(fixedpoint.SaturatingMul(variance, scale), mean)
	}

	min, max := pricestats.Range(prices)
	priceRange := fixedpoint.SaturatingSub(max, min)

	priceRangePercent := new(uint256.Int)
	if !basePrice.IsZero() {
		priceRangePercent.Div(fixedpoint.SaturatingMul(priceRange, scale), basePrice)
	}

	weighted := fixedpoint.SaturatingAdd(
		fixedpoint.SaturatingAdd(
			fixedpoint.SaturatingMul(variationCoefficient, uint256.NewInt(weightVariation)),
			fixedpoint.SaturatingMul(priceRangePercent, uint256.NewInt(weightRange)),
		),
		fixedpoint.SaturatingMul(movement, uint256.NewInt(weightMovement)),
	)
	score := weighted.Div(weighted, uint256.NewInt(weightTotal))

	if score.Gt(scale) {
		return scale
	}
	return score
}

// RecommendedFee maps a volatility score onto [baseFee, maxFee] with a
// piecewise-linear schedule: scores at or below LowScoreCutoff return
// baseFee, scores at or above HighScoreCutoff return maxFee, and scores in
// between interpolate linearly. Monotonic non-decreasing in score.
func RecommendedFee(score *uint256.Int, baseFee, maxFee uint32) uint32 {
	if !score.Gt(uint256.NewInt(LowScoreCutoff)) {
		return baseFee
	}
	if !score.Lt(uint256.NewInt(HighScoreCutoff)) {
		return maxFee
	}

	normalized := new(uint256.Int).Sub(score, uint256.NewInt(LowScoreCutoff))

	// Saturating: a maxFee below baseFee yields an empty fee range.
	var feeSpan uint64
	if maxFee > baseFee {
		feeSpan = uint64(maxFee) - uint64(baseFee)
	}

	increase := new(uint256.Int).Mul(normalized, uint256.NewInt(feeSpan))
	increase.Div(increase, uint256.NewInt(feeInterpolationSpan))

	// normalized < 8000 and feeRange < 2^32, so this fits in uint32.
	return baseFee + uint32(increase.Uint64())
}
