package memory

import (
	"context"
	"sort"
	"sync"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/storage"
)

// AdviceStore is an in-memory implementation of storage.AdviceStore.
type AdviceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Advice // keyed by advice_id
}

// NewAdviceStore creates a new in-memory advice store.
func NewAdviceStore() *AdviceStore {
	return &AdviceStore{
		data: make(map[string]*domain.Advice),
	}
}

// Insert adds a new advice record. Returns ErrDuplicateKey if advice_id exists.
func (s *AdviceStore) Insert(_ context.Context, a *domain.Advice) error {
	if a == nil || a.AdviceID == "" || a.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AdviceID]; exists {
		return storage.ErrDuplicateKey
	}

	adviceCopy := *a
	s.data[a.AdviceID] = &adviceCopy
	return nil
}

// GetByPoolID retrieves all advice for a pool, ordered by computed_at ASC.
func (s *AdviceStore) GetByPoolID(_ context.Context, poolID string) ([]*domain.Advice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Advice
	for _, a := range s.data {
		if a.PoolID == poolID {
			adviceCopy := *a
			result = append(result, &adviceCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ComputedAt != result[j].ComputedAt {
			return result[i].ComputedAt < result[j].ComputedAt
		}
		return result[i].AdviceID < result[j].AdviceID
	})

	return result, nil
}

// GetLatestByPoolID retrieves the most recent advice for a pool.
func (s *AdviceStore) GetLatestByPoolID(ctx context.Context, poolID string) (*domain.Advice, error) {
	all, err := s.GetByPoolID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, storage.ErrNotFound
	}
	return all[len(all)-1], nil
}

var _ storage.AdviceStore = (*AdviceStore)(nil)
