package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/observability"
	"clmm-range-lab/internal/storage"
)

// Runner consumes feed updates, validates them and flushes observations to
// the store in batches.
type Runner struct {
	feed      *FeedClient
	validator *Validator
	store     storage.PriceObservationStore
	metrics   *observability.Metrics
	logger    *log.Logger

	batchSize     int
	flushInterval time.Duration

	// buffer holds validated observations awaiting flush, deduplicated
	// by (pool, timestamp).
	buffer  []*domain.PriceObservation
	seen    map[obsKey]struct{}
	highest int64 // highest slot seen

	lastReconnects uint64
}

type obsKey struct {
	poolID      string
	timestampMs int64
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Feed      *FeedClient
	Validator *Validator
	Store     storage.PriceObservationStore
	Metrics   *observability.Metrics
	BatchSize int           // Default: 100 observations per flush
	FlushInt  time.Duration // Default: 5s periodic flush
	Logger    *log.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}

	flushInterval := opts.FlushInt
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		feed:          opts.Feed,
		validator:     opts.Validator,
		store:         opts.Store,
		metrics:       opts.Metrics,
		logger:        logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		seen:          make(map[obsKey]struct{}),
	}
}

// Run consumes the feed until the context is cancelled. It blocks.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Println("[ingestion] runner started")

	flushTicker := time.NewTicker(r.flushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Flush remaining observations before shutdown
			r.flush(context.Background())
			r.logger.Println("[ingestion] runner stopping")
			return ctx.Err()

		case update, ok := <-r.feed.Updates():
			if !ok {
				r.flush(context.Background())
				r.logger.Println("[ingestion] feed channel closed")
				return errors.New("feed channel closed")
			}
			r.handleUpdate(ctx, update)

		case <-flushTicker.C:
			r.flush(ctx)
			r.publishFeedStats()
		}
	}
}

// handleUpdate validates an update and buffers the observation.
func (r *Runner) handleUpdate(ctx context.Context, update PriceUpdate) {
	if r.metrics != nil {
		r.metrics.ObservationsReceived.Inc()
	}

	obs, err := r.validator.Validate(update)
	if err != nil {
		r.metrics.RecordValidationError(validationReason(err))
		r.logger.Printf("[ingestion] rejected update pool=%s: %v", update.Pool, err)
		return
	}

	key := obsKey{obs.PoolID, obs.TimestampMs}
	if _, dup := r.seen[key]; dup {
		return
	}
	r.seen[key] = struct{}{}
	r.buffer = append(r.buffer, obs)

	if obs.Slot > r.highest {
		r.highest = obs.Slot
		if r.metrics != nil {
			r.metrics.HighestSlotSeen.Set(float64(obs.Slot))
		}
	}

	if len(r.buffer) >= r.batchSize {
		r.flush(ctx)
	}
}

// flush writes buffered observations to the store. On a duplicate-key
// conflict with already-stored rows the batch is retried one observation
// at a time so only the duplicates are dropped.
func (r *Runner) flush(ctx context.Context) {
	if len(r.buffer) == 0 {
		return
	}

	batch := r.buffer
	r.buffer = nil
	r.seen = make(map[obsKey]struct{})

	start := time.Now()
	err := r.store.InsertBulk(ctx, batch)
	r.metrics.RecordDBQuery("clickhouse", "insert_observations", time.Since(start).Seconds(), err)

	stored := len(batch)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrDuplicateKey):
		stored = r.flushIndividually(ctx, batch)
	default:
		r.logger.Printf("[ingestion] flush failed, %d observations dropped: %v", len(batch), err)
		return
	}

	if r.metrics != nil {
		r.metrics.ObservationsStored.Add(float64(stored))
		r.metrics.ObservationBuffer.Set(0)
		r.metrics.LastSuccessfulFlush.SetToCurrentTime()
	}
	r.logger.Printf("[ingestion] flushed %d observations", stored)
}

// flushIndividually inserts observations one by one, skipping duplicates.
func (r *Runner) flushIndividually(ctx context.Context, batch []*domain.PriceObservation) int {
	stored := 0
	for _, obs := range batch {
		err := r.store.InsertBulk(ctx, []*domain.PriceObservation{obs})
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			r.logger.Printf("[ingestion] insert failed pool=%s ts=%d: %v", obs.PoolID, obs.TimestampMs, err)
			continue
		}
		stored++
	}
	return stored
}

// publishFeedStats updates feed-level metrics on the flush tick.
func (r *Runner) publishFeedStats() {
	if r.metrics == nil || r.feed == nil {
		return
	}

	r.metrics.ObservationBuffer.Set(float64(len(r.buffer)))

	reconnects := r.feed.Reconnects()
	if reconnects > r.lastReconnects {
		r.metrics.FeedReconnects.Add(float64(reconnects - r.lastReconnects))
		r.lastReconnects = reconnects
	}
}

// validationReason maps a validation error to a metrics label.
func validationReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPoolKey):
		return "pool_key"
	case errors.Is(err, ErrInvalidPrice):
		return "price"
	case errors.Is(err, ErrBadSignature):
		return "signature"
	default:
		return "other"
	}
}
