// Package position sizes, evaluates, and rebalances concentrated-liquidity
// position ranges from recent price history.
package position

import (
	"errors"

	"github.com/holiman/uint256"

	"clmm-range-lab/internal/pricestats"
	"clmm-range-lab/internal/tickmath"
)

// Errors returned by position calculations.
var (
	// ErrInvalidPriceArray is returned when the price series is too short
	// for the requested calculation.
	ErrInvalidPriceArray = errors.New("invalid price array")

	// ErrInvalidTickSpacing is returned when a supplied bound pair has
	// non-positive width or is inverted.
	ErrInvalidTickSpacing = errors.New("invalid tick spacing")
)

// Volatility regime thresholds on the standard deviation expressed as a
// percent of the mean, and the range multiplier each regime maps to.
// A deterministic step function, not a continuous one.
const (
	lowVolThreshold    = 5
	mediumVolThreshold = 10
	highVolThreshold   = 20

	lowVolMultiplier     = 20
	mediumVolMultiplier  = 30
	highVolMultiplier    = 50
	extremeVolMultiplier = 100
)

// volatilityMultiplier maps stdDevPercent to its regime multiplier.
func volatilityMultiplier(stdDevPercent *uint256.Int) int32 {
	switch {
	case stdDevPercent.Lt(uint256.NewInt(lowVolThreshold)):
		return lowVolMultiplier
	case stdDevPercent.Lt(uint256.NewInt(mediumVolThreshold)):
		return mediumVolMultiplier
	case stdDevPercent.Lt(uint256.NewInt(highVolThreshold)):
		return highVolMultiplier
	default:
		return extremeVolMultiplier
	}
}

// OptimalBounds recommends a [lower, upper] tick range centered on the mean
// price, sized by the observed volatility regime: the wider the regime
// multiplier, the wider the range. Both bounds are multiples of the default
// tick spacing. Requires at least 2 prices.
func OptimalBounds(prices []*uint256.Int) (lower, upper int32, err error) {
	if len(prices) < 2 {
		return 0, 0, ErrInvalidPriceArray
	}

	mean := pricestats.Mean(prices)
	stdDev := pricestats.StdDev(prices, mean)

	meanTick := tickmath.PriceToTick(mean)

	stdDevPercent := new(uint256.Int)
	if !mean.IsZero() {
		stdDevPercent.Div(
			new(uint256.Int).Mul(stdDev, uint256.NewInt(100)), mean)
	}

	spacing := tickmath.DefaultTickSpacing
	tickRange := volatilityMultiplier(stdDevPercent) * spacing

	lower = tickmath.RoundToSpacing(meanTick-tickRange, spacing)
	upper = tickmath.RoundToSpacing(meanTick+tickRange, spacing)

	return lower, upper, nil
}
