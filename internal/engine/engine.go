// Package engine exposes the caller-facing analytics operations. Each
// operation validates its structural preconditions, then delegates to the
// pure numeric packages. No operation retains state between calls.
package engine

import (
	"errors"

	"github.com/holiman/uint256"

	"clmm-range-lab/internal/position"
	"clmm-range-lab/internal/pricestats"
	"clmm-range-lab/internal/volatility"
)

// Failure taxonomy. Every failure is a precondition violation detected
// before computation begins; none are retried and all surface verbatim.
var (
	ErrInvalidPriceArray  = position.ErrInvalidPriceArray
	ErrInvalidTickSpacing = position.ErrInvalidTickSpacing

	// ErrInvalidTimeWindow is returned when the supplied observation window
	// is zero.
	ErrInvalidTimeWindow = errors.New("invalid time window")
)

// Engine is the stateless analytics core. The zero value is ready to use.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

// CalculateOptimalPositionBounds recommends a [lower, upper] tick range for
// a new position, sized by the observed volatility regime. tokenA, tokenB
// and liquidityAmount are opaque pass-through values kept for the caller's
// bookkeeping; the calculation uses only the price series.
// Fails with ErrInvalidPriceArray when fewer than 2 prices are supplied.
func (e *Engine) CalculateOptimalPositionBounds(
	tokenA, tokenB string,
	prices []*uint256.Int,
	liquidityAmount *uint256.Int,
) (lowerTick, upperTick int32, err error) {
	_, _, _ = tokenA, tokenB, liquidityAmount
	return position.OptimalBounds(prices)
}

// ShouldRebalance reports whether the current range warrants rebalancing
// and always includes the optimal bounds, so the caller can act on fresh
// targets even when not rebalancing.
// Fails with ErrInvalidPriceArray (propagated from the optimizer) or
// ErrInvalidTickSpacing when the current range has non-positive width.
func (e *Engine) ShouldRebalance(
	tokenA, tokenB string,
	currentLower, currentUpper int32,
	prices []*uint256.Int,
) (position.Advice, error) {
	_, _ = tokenA, tokenB
	return position.ShouldRebalance(currentLower, currentUpper, prices)
}

// CalculatePositionEfficiency scores [0, 100] how well-centered currentTick
// is inside [lower, upper]. Fails with ErrInvalidTickSpacing when
// upper <= lower.
func (e *Engine) CalculatePositionEfficiency(lower, upper, currentTick int32) (uint32, error) {
	return position.Efficiency(lower, upper, currentTick)
}

// CalculateVolatilityScore computes the bounded [0, 10000] volatility score
// over the series, using the series mean as the base price. timeWindow is
// the observation window the prices were sampled over.
// Fails with ErrInvalidPriceArray when the series is empty and
// ErrInvalidTimeWindow when the window is zero.
func (e *Engine) CalculateVolatilityScore(
	tokenA, tokenB string,
	prices []*uint256.Int,
	timeWindow uint64,
) (*uint256.Int, error) {
	_, _ = tokenA, tokenB

	if len(prices) == 0 {
		return nil, ErrInvalidPriceArray
	}
	if timeWindow == 0 {
		return nil, ErrInvalidTimeWindow
	}

	basePrice := pricestats.Mean(prices)
	return volatility.Score(prices, basePrice), nil
}

// GetRecommendedFee maps a volatility score onto [baseFee, maxFee] with the
// piecewise-linear fee schedule. Pure interpolation, no failure modes.
func (e *Engine) GetRecommendedFee(score *uint256.Int, baseFee, maxFee uint32) uint32 {
	return volatility.RecommendedFee(score, baseFee, maxFee)
}
