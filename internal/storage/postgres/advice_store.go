package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/storage"
)

// AdviceStore implements storage.AdviceStore using PostgreSQL.
type AdviceStore struct {
	pool *Pool
}

// NewAdviceStore creates a new AdviceStore.
func NewAdviceStore(pool *Pool) *AdviceStore {
	return &AdviceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AdviceStore = (*AdviceStore)(nil)

// Insert adds a new advice record. Returns ErrDuplicateKey if advice_id exists.
func (s *AdviceStore) Insert(ctx context.Context, a *domain.Advice) error {
	query := `
		INSERT INTO advice (
			advice_id, pool_id, position_id, volatility_score, recommended_fee,
			optimal_lower, optimal_upper, rebalance, efficiency, window_size, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		a.AdviceID,
		a.PoolID,
		a.PositionID,
		int64(a.VolatilityScore),
		int64(a.RecommendedFee),
		a.OptimalLower,
		a.OptimalUpper,
		a.Rebalance,
		int64(a.Efficiency),
		a.WindowSize,
		a.ComputedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert advice: %w", err)
	}
	return nil
}

// GetByPoolID retrieves all advice for a pool, ordered by computed_at ASC.
func (s *AdviceStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.Advice, error) {
	query := `
		SELECT advice_id, pool_id, position_id, volatility_score, recommended_fee,
		       optimal_lower, optimal_upper, rebalance, efficiency, window_size, computed_at
		FROM advice
		WHERE pool_id = $1
		ORDER BY computed_at ASC, advice_id ASC
	`

	rows, err := s.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get advice by pool: %w", err)
	}
	defer rows.Close()

	return scanAdviceRows(rows)
}

// GetLatestByPoolID retrieves the most recent advice for a pool.
func (s *AdviceStore) GetLatestByPoolID(ctx context.Context, poolID string) (*domain.Advice, error) {
	query := `
		SELECT advice_id, pool_id, position_id, volatility_score, recommended_fee,
		       optimal_lower, optimal_upper, rebalance, efficiency, window_size, computed_at
		FROM advice
		WHERE pool_id = $1
		ORDER BY computed_at DESC, advice_id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, poolID)
	a, err := scanAdvice(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest advice: %w", err)
	}
	return a, nil
}

// scanAdvice scans a single advice row.
func scanAdvice(row pgx.Row) (*domain.Advice, error) {
	var (
		a          domain.Advice
		score      int64
		fee        int64
		efficiency int64
	)
	err := row.Scan(
		&a.AdviceID,
		&a.PoolID,
		&a.PositionID,
		&score,
		&fee,
		&a.OptimalLower,
		&a.OptimalUpper,
		&a.Rebalance,
		&efficiency,
		&a.WindowSize,
		&a.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	a.VolatilityScore = uint64(score)
	a.RecommendedFee = uint32(fee)
	a.Efficiency = uint32(efficiency)
	return &a, nil
}

// scanAdviceRows scans all advice rows.
func scanAdviceRows(rows pgx.Rows) ([]*domain.Advice, error) {
	var result []*domain.Advice
	for rows.Next() {
		a, err := scanAdvice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan advice: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advice: %w", err)
	}
	return result, nil
}
