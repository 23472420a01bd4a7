// Package advisor runs the analytics engine over stored observations and
// persists advice for tracked positions.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/engine"
	"clmm-range-lab/internal/idhash"
	"clmm-range-lab/internal/observability"
	"clmm-range-lab/internal/storage"
	"clmm-range-lab/internal/tickmath"
)

// Advisor periodically recomputes advice for every tracked position.
type Advisor struct {
	positions    storage.PositionStore
	observations storage.PriceObservationStore
	advice       storage.AdviceStore
	engine       *engine.Engine
	metrics      *observability.Metrics
	logger       *log.Logger

	interval   time.Duration
	windowSize int
	baseFee    uint32
	maxFee     uint32

	now func() time.Time
}

// Options contains configuration for creating an Advisor.
type Options struct {
	PositionStore    storage.PositionStore
	ObservationStore storage.PriceObservationStore
	AdviceStore      storage.AdviceStore
	Metrics          *observability.Metrics
	Interval         time.Duration // Default: 1m
	WindowSize       int           // Default: 48 observations per run
	BaseFee          uint32        // Default: 30 (0.3% in hundredths of a percent)
	MaxFee           uint32        // Default: 300
	Logger           *log.Logger
}

// New creates a new Advisor.
func New(opts Options) *Advisor {
	interval := opts.Interval
	if interval == 0 {
		interval = time.Minute
	}

	windowSize := opts.WindowSize
	if windowSize == 0 {
		windowSize = 48
	}

	baseFee := opts.BaseFee
	if baseFee == 0 {
		baseFee = 30
	}

	maxFee := opts.MaxFee
	if maxFee == 0 {
		maxFee = 300
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Advisor{
		positions:    opts.PositionStore,
		observations: opts.ObservationStore,
		advice:       opts.AdviceStore,
		engine:       engine.New(),
		metrics:      opts.Metrics,
		logger:       logger,
		interval:     interval,
		windowSize:   windowSize,
		baseFee:      baseFee,
		maxFee:       maxFee,
		now:          time.Now,
	}
}

// Run recomputes advice on every tick until the context is cancelled.
func (a *Advisor) Run(ctx context.Context) error {
	a.logger.Printf("[advisor] started, interval=%v window=%d", a.interval, a.windowSize)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Println("[advisor] stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.RunOnce(ctx); err != nil {
				a.logger.Printf("[advisor] run failed: %v", err)
			}
		}
	}
}

// RunResult summarizes a single advisor pass.
type RunResult struct {
	PositionsSeen   int
	AdviceComputed  int
	RebalanceSignal int
	Skipped         int
}

// RunOnce computes and persists advice for every tracked position once.
// Positions without enough recent observations are skipped, not failed.
func (a *Advisor) RunOnce(ctx context.Context) (*RunResult, error) {
	start := a.now()
	result := &RunResult{}

	positions, err := a.positions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	result.PositionsSeen = len(positions)

	for _, pos := range positions {
		advice, err := a.advisePosition(ctx, pos)
		if err != nil {
			if errors.Is(err, errWindowTooSmall) {
				result.Skipped++
				continue
			}
			a.metrics.RecordEngineError(errorType(err))
			a.logger.Printf("[advisor] position %s: %v", pos.PositionID, err)
			continue
		}

		if err := a.advice.Insert(ctx, advice); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Same pool/position/window within the same millisecond
				result.Skipped++
				continue
			}
			a.logger.Printf("[advisor] store advice for %s: %v", pos.PositionID, err)
			continue
		}

		result.AdviceComputed++
		if advice.Rebalance {
			result.RebalanceSignal++
		}
		if a.metrics != nil {
			a.metrics.AdviceComputed.Inc()
			a.metrics.VolatilityScore.Observe(float64(advice.VolatilityScore))
			if advice.Rebalance {
				a.metrics.RebalanceSignals.Inc()
			}
		}
	}

	if a.metrics != nil {
		a.metrics.AdvisorDuration.Observe(time.Since(start).Seconds())
		a.metrics.LastSuccessfulAdvice.SetToCurrentTime()
	}
	a.logger.Printf("[advisor] pass done: %d positions, %d advised, %d rebalance, %d skipped",
		result.PositionsSeen, result.AdviceComputed, result.RebalanceSignal, result.Skipped)
	return result, nil
}

// errWindowTooSmall marks positions whose pools lack observations; the
// advisor skips them silently.
var errWindowTooSmall = errors.New("observation window too small")

// advisePosition runs the engine over the position's recent price window.
func (a *Advisor) advisePosition(ctx context.Context, pos *domain.Position) (*domain.Advice, error) {
	window, err := a.observations.GetRecent(ctx, pos.PoolID, a.windowSize)
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}
	if len(window) < 2 {
		return nil, errWindowTooSmall
	}

	prices, err := domain.PricesOf(window)
	if err != nil {
		return nil, fmt.Errorf("parse window: %w", err)
	}

	// The score's time window is the observed span; same-millisecond
	// windows degenerate to 1ms.
	span := window[len(window)-1].TimestampMs - window[0].TimestampMs
	if span <= 0 {
		span = 1
	}

	score, err := a.engine.CalculateVolatilityScore(pos.TokenA, pos.TokenB, prices, uint64(span))
	if err != nil {
		return nil, fmt.Errorf("volatility score: %w", err)
	}
	fee := a.engine.GetRecommendedFee(score, a.baseFee, a.maxFee)

	verdict, err := a.engine.ShouldRebalance(pos.TokenA, pos.TokenB, pos.LowerTick, pos.UpperTick, prices)
	if err != nil {
		return nil, fmt.Errorf("rebalance check: %w", err)
	}

	currentTick := tickmath.PriceToTick(prices[len(prices)-1])
	efficiency, err := a.engine.CalculatePositionEfficiency(pos.LowerTick, pos.UpperTick, currentTick)
	if err != nil {
		return nil, fmt.Errorf("efficiency: %w", err)
	}

	computedAt := a.now().UnixMilli()
	return &domain.Advice{
		AdviceID:        idhash.ComputeAdviceID(pos.PoolID, pos.PositionID, computedAt, len(prices)),
		PoolID:          pos.PoolID,
		PositionID:      pos.PositionID,
		VolatilityScore: score.Uint64(),
		RecommendedFee:  fee,
		OptimalLower:    verdict.OptimalLower,
		OptimalUpper:    verdict.OptimalUpper,
		Rebalance:       verdict.Rebalance,
		Efficiency:      efficiency,
		WindowSize:      len(prices),
		ComputedAt:      computedAt,
	}, nil
}

// errorType maps engine errors to a metrics label.
func errorType(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidPriceArray):
		return "price_array"
	case errors.Is(err, engine.ErrInvalidTickSpacing):
		return "tick_spacing"
	case errors.Is(err, engine.ErrInvalidTimeWindow):
		return "time_window"
	default:
		return "other"
	}
}
