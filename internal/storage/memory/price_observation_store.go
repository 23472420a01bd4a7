package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/storage"
)

// PriceObservationStore is an in-memory implementation of
// storage.PriceObservationStore.
type PriceObservationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceObservation // keyed by (pool_id, timestamp_ms)
}

// NewPriceObservationStore creates a new in-memory price observation store.
func NewPriceObservationStore() *PriceObservationStore {
	return &PriceObservationStore{
		data: make(map[string]*domain.PriceObservation),
	}
}

// observationKey generates a unique key for an observation.
func observationKey(poolID string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", poolID, timestampMs)
}

// InsertBulk adds multiple observations. Fails entire batch on duplicate.
func (s *PriceObservationStore) InsertBulk(_ context.Context, observations []*domain.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(observations))

	// First pass: check for duplicates (existing + intra-batch)
	for _, o := range observations {
		if o == nil || o.PoolID == "" || o.Price == "" {
			return storage.ErrInvalidInput
		}
		key := observationKey(o.PoolID, o.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, o := range observations {
		key := observationKey(o.PoolID, o.TimestampMs)
		obsCopy := *o
		s.data[key] = &obsCopy
	}

	return nil
}

// GetByPoolID retrieves all observations for a pool, ordered by timestamp ASC.
func (s *PriceObservationStore) GetByPoolID(_ context.Context, poolID string) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceObservation
	for _, o := range s.data {
		if o.PoolID == poolID {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sortByTimestamp(result)
	return result, nil
}

// GetByTimeRange retrieves observations for a pool within [start, end] (inclusive).
func (s *PriceObservationStore) GetByTimeRange(_ context.Context, poolID string, start, end int64) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceObservation
	for _, o := range s.data {
		if o.PoolID == poolID && o.TimestampMs >= start && o.TimestampMs <= end {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sortByTimestamp(result)
	return result, nil
}

// GetRecent retrieves the most recent limit observations, ordered by
// timestamp ASC.
func (s *PriceObservationStore) GetRecent(ctx context.Context, poolID string, limit int) ([]*domain.PriceObservation, error) {
	all, err := s.GetByPoolID(ctx, poolID)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func sortByTimestamp(observations []*domain.PriceObservation) {
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].TimestampMs < observations[j].TimestampMs
	})
}

var _ storage.PriceObservationStore = (*PriceObservationStore)(nil)
