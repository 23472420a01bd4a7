package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO positions (
			position_id, pool_id, token_a, token_b, lower_tick, upper_tick, liquidity, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.PoolID,
		p.TokenA,
		p.TokenB,
		p.LowerTick,
		p.UpperTick,
		p.Liquidity,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `
		SELECT position_id, pool_id, token_a, token_b, lower_tick, upper_tick, liquidity, created_at, updated_at
		FROM positions
		WHERE position_id = $1
	`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetByPoolID retrieves all positions for a pool, ordered by created_at ASC.
func (s *PositionStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.Position, error) {
	query := `
		SELECT position_id, pool_id, token_a, token_b, lower_tick, upper_tick, liquidity, created_at, updated_at
		FROM positions
		WHERE pool_id = $1
		ORDER BY created_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get positions by pool: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// List retrieves all tracked positions, ordered by created_at ASC.
func (s *PositionStore) List(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT position_id, pool_id, token_a, token_b, lower_tick, upper_tick, liquidity, created_at, updated_at
		FROM positions
		ORDER BY created_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// UpdateBounds replaces a position's tick bounds after a rebalance.
func (s *PositionStore) UpdateBounds(ctx context.Context, positionID string, lowerTick, upperTick int32, updatedAt int64) error {
	query := `
		UPDATE positions
		SET lower_tick = $2, upper_tick = $3, updated_at = $4
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, positionID, lowerTick, upperTick, updatedAt)
	if err != nil {
		return fmt.Errorf("update position bounds: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanPosition scans a single position row.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.PositionID,
		&p.PoolID,
		&p.TokenA,
		&p.TokenB,
		&p.LowerTick,
		&p.UpperTick,
		&p.Liquidity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// scanPositions scans all position rows.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var result []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return result, nil
}
