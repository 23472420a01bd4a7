package position

// MaxEfficiency is returned when the current tick sits exactly in the
// middle of the range.
const MaxEfficiency = 100

// Efficiency scores how well-centered currentTick is inside
// [lower, upper]: 100 at the exact center, falling linearly to 0 at either
// edge, and 0 whenever the tick is outside the range. A range of width <= 1
// tick has no half-range to measure against and scores 100.
func Efficiency(lower, upper, currentTick int32) (uint32, error) {
	if upper <= lower {
		return 0, ErrInvalidTickSpacing
	}

	if currentTick < lower || currentTick > upper {
		return 0, nil
	}

	rangeSize := upper - lower
	halfRange := rangeSize / 2
	if halfRange == 0 {
		return MaxEfficiency, nil
	}

	// For odd-width ranges the upper edge sits one tick past halfRange from
	// the middle; clamp so the score bottoms out at 0 instead of wrapping.
	distanceFromMiddle := absInt32(currentTick - lower - halfRange)
	if distanceFromMiddle >= halfRange {
		return 0, nil
	}

	return uint32(MaxEfficiency - distanceFromMiddle*100/halfRange), nil
}
