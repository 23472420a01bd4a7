package storage

import (
	"context"

	"clmm-range-lab/internal/domain"
)

// PriceObservationStore provides access to price_observations storage.
// Observations are append-only.
type PriceObservationStore interface {
	// InsertBulk adds multiple observations. Fails the entire batch with
	// ErrDuplicateKey on a duplicate (pool_id, timestamp_ms).
	InsertBulk(ctx context.Context, observations []*domain.PriceObservation) error

	// GetByPoolID retrieves all observations for a pool, ordered by timestamp ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.PriceObservation, error)

	// GetByTimeRange retrieves observations for a pool within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.PriceObservation, error)

	// GetRecent retrieves the most recent limit observations for a pool,
	// ordered by timestamp ASC.
	GetRecent(ctx context.Context, poolID string, limit int) ([]*domain.PriceObservation, error)
}

// PositionStore provides access to positions storage.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// GetByPoolID retrieves all positions for a pool, ordered by created_at ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.Position, error)

	// List retrieves all tracked positions, ordered by created_at ASC.
	List(ctx context.Context) ([]*domain.Position, error)

	// UpdateBounds replaces a position's tick bounds after a rebalance.
	// Returns ErrNotFound if the position does not exist.
	UpdateBounds(ctx context.Context, positionID string, lowerTick, upperTick int32, updatedAt int64) error
}

// AdviceStore provides access to advice storage. Advice records are
// append-only.
type AdviceStore interface {
	// Insert adds a new advice record. Returns ErrDuplicateKey if advice_id exists.
	Insert(ctx context.Context, a *domain.Advice) error

	// GetByPoolID retrieves all advice for a pool, ordered by computed_at ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.Advice, error)

	// GetLatestByPoolID retrieves the most recent advice for a pool.
	// Returns ErrNotFound if none exists.
	GetLatestByPoolID(ctx context.Context, poolID string) (*domain.Advice, error)
}
