package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/storage"
)

// PriceObservationStore implements storage.PriceObservationStore using
// ClickHouse.
type PriceObservationStore struct {
	conn *Conn
}

// NewPriceObservationStore creates a new PriceObservationStore.
func NewPriceObservationStore(conn *Conn) *PriceObservationStore {
	return &PriceObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceObservationStore = (*PriceObservationStore)(nil)

// InsertBulk adds multiple observations. Fails the entire batch with
// ErrDuplicateKey on a duplicate (pool_id, timestamp_ms). MergeTree does
// not enforce uniqueness, so duplicates are checked explicitly before the
// batch is sent.
func (s *PriceObservationStore) InsertBulk(ctx context.Context, observations []*domain.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		poolID      string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, o := range observations {
		if o == nil || o.PoolID == "" || o.Price == "" {
			return storage.ErrInvalidInput
		}
		k := key{o.PoolID, o.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, o := range observations {
		exists, err := s.exists(ctx, o.PoolID, o.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_observations (
			pool_id, timestamp_ms, slot, price, feed_source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range observations {
		err = batch.Append(
			o.PoolID, uint64(o.TimestampMs), uint64(o.Slot),
			o.Price, o.FeedSource,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPoolID retrieves all observations for a pool, ordered by timestamp ASC.
func (s *PriceObservationStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.PriceObservation, error) {
	query := `
		SELECT pool_id, timestamp_ms, slot, price, feed_source
		FROM price_observations
		WHERE pool_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("query by pool id: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetByTimeRange retrieves observations for a pool within [start, end] (inclusive).
func (s *PriceObservationStore) GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.PriceObservation, error) {
	query := `
		SELECT pool_id, timestamp_ms, slot, price, feed_source
		FROM price_observations
		WHERE pool_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetRecent retrieves the most recent limit observations, ordered by
// timestamp ASC.
func (s *PriceObservationStore) GetRecent(ctx context.Context, poolID string, limit int) ([]*domain.PriceObservation, error) {
	query := `
		SELECT pool_id, timestamp_ms, slot, price, feed_source
		FROM (
			SELECT pool_id, timestamp_ms, slot, price, feed_source
			FROM price_observations
			WHERE pool_id = ?
			ORDER BY timestamp_ms DESC
			LIMIT ?
		)
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// exists checks if an observation with the given key exists.
func (s *PriceObservationStore) exists(ctx context.Context, poolID string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM price_observations
		WHERE pool_id = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, poolID, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanObservations scans multiple rows.
func scanObservations(rows driver.Rows) ([]*domain.PriceObservation, error) {
	var observations []*domain.PriceObservation

	for rows.Next() {
		var o domain.PriceObservation
		var timestampMs, slot uint64

		err := rows.Scan(&o.PoolID, &timestampMs, &slot, &o.Price, &o.FeedSource)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		o.TimestampMs = int64(timestampMs)
		o.Slot = int64(slot)
		observations = append(observations, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return observations, nil
}
