package tickmath

import (
	"math"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func TestPriceToTick_One(t *testing.T) {
	// ln(1) = 0
	if got := PriceToTick(uint256.NewInt(1)); got != 0 {
		t.Errorf("expected tick 0 for price 1, got %d", got)
	}
}

func TestPriceToTick_Zero(t *testing.T) {
	if got := PriceToTick(new(uint256.Int)); got != MinTick {
		t.Errorf("expected MinTick for price 0, got %d", got)
	}
}

func TestPriceToTick_KnownValues(t *testing.T) {
	tests := []struct {
		price uint64
	}{
		{2},
		{100},
		{10000},
		{123456789},
	}

	for _, tt := range tests {
		want := int32(math.Log(float64(tt.price)) / math.Log(1.0001))
		if got := PriceToTick(uint256.NewInt(tt.price)); got != want {
			t.Errorf("PriceToTick(%d) = %d, want %d", tt.price, got, want)
		}
	}
}

func TestPriceToTick_Monotonic(t *testing.T) {
	prev := PriceToTick(uint256.NewInt(1))
	for _, p := range []uint64{10, 100, 1000, 100000, 10000000} {
		cur := PriceToTick(uint256.NewInt(p))
		if cur < prev {
			t.Errorf("tick decreased at price %d: %d < %d", p, cur, prev)
		}
		prev = cur
	}
}

func TestPriceToTick_ClampsToMaxTick(t *testing.T) {
	// 2^256-ish magnitudes map far past the canonical grid.
	price, _ := uint256.FromBig(new(big.Int).Lsh(big.NewInt(1), 255))
	if got := PriceToTick(price); got != MaxTick {
		t.Errorf("expected MaxTick clamp, got %d", got)
	}
}

func TestRoundToSpacing_Multiples(t *testing.T) {
	tests := []struct {
		tick, spacing, want int32
	}{
		{0, 60, 0},
		{59, 60, 0},
		{60, 60, 60},
		{125, 60, 120},
		{1234, 60, 1200},
		{-59, 60, 0},    // truncation toward zero, not floor
		{-60, 60, -60},
		{-125, 60, -120}, // floor would give -180
	}

	for _, tt := range tests {
		got := RoundToSpacing(tt.tick, tt.spacing)
		if got != tt.want {
			t.Errorf("RoundToSpacing(%d, %d) = %d, want %d", tt.tick, tt.spacing, got, tt.want)
		}
		if got%tt.spacing != 0 {
			t.Errorf("RoundToSpacing(%d, %d) = %d is not a multiple of spacing", tt.tick, tt.spacing, got)
		}
	}
}

func TestRoundToSpacing_NonNegativeNeverIncreases(t *testing.T) {
	for tick := int32(0); tick < 600; tick++ {
		got := RoundToSpacing(tick, DefaultTickSpacing)
		if got > tick {
			t.Fatalf("RoundToSpacing(%d) = %d exceeds input", tick, got)
		}
	}
}
