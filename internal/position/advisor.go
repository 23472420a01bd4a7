package position

import (
	"github.com/holiman/uint256"

	"clmm-range-lab/internal/tickmath"
)

// Rebalance policy constants: a position is flagged when the current tick
// sits within edgeProximityPct of either bound, or when the optimal bounds
// have drifted more than 1/driftDivisor of the current range away.
const (
	edgeProximityPct = 10
	driftDivisor     = 4
)

// Advice is the outcome of a rebalance check. OptimalLower/OptimalUpper are
// populated regardless of Rebalance, so callers can act on fresh targets
// even when not rebalancing.
type Advice struct {
	Rebalance    bool
	OptimalLower int32
	OptimalUpper int32
}

// ShouldRebalance compares the current [currentLower, currentUpper] range
// against the optimal range for the series and against the latest price.
// Rebalancing is recommended when the price sits at or outside either bound
// (boundary-inclusive), within 10% of either edge, or when either optimal
// bound has drifted more than a quarter of the current range.
func ShouldRebalance(currentLower, currentUpper int32, prices []*uint256.Int) (Advice, error) {
	optimalLower, optimalUpper, err := OptimalBounds(prices)
	if err != nil {
		return Advice{}, err
	}

	currentRange := currentUpper - currentLower
	if currentRange <= 0 {
		return Advice{}, ErrInvalidTickSpacing
	}

	currentTick := tickmath.PriceToTick(prices[len(prices)-1])

	distFromLower := currentTick - currentLower
	distFromUpper := currentUpper - currentTick

	lowerPct := distFromLower * 100 / currentRange
	upperPct := distFromUpper * 100 / currentRange

	rebalance := currentTick <= currentLower ||
		currentTick >= currentUpper ||
		lowerPct < edgeProximityPct ||
		upperPct < edgeProximityPct ||
		absInt32(optimalLower-currentLower) > currentRange/driftDivisor ||
		absInt32(optimalUpper-currentUpper) > currentRange/driftDivisor

	return Advice{
		Rebalance:    rebalance,
		OptimalLower: optimalLower,
		OptimalUpper: optimalUpper,
	}, nil
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
