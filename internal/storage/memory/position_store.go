package memory

import (
	"context"
	"sort"
	"sync"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	positionCopy := *p
	s.data[p.PositionID] = &positionCopy
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	positionCopy := *p
	return &positionCopy, nil
}

// GetByPoolID retrieves all positions for a pool, ordered by created_at ASC.
func (s *PositionStore) GetByPoolID(_ context.Context, poolID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.PoolID == poolID {
			positionCopy := *p
			result = append(result, &positionCopy)
		}
	}

	sortByCreatedAt(result)
	return result, nil
}

// List retrieves all tracked positions, ordered by created_at ASC.
func (s *PositionStore) List(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		positionCopy := *p
		result = append(result, &positionCopy)
	}

	sortByCreatedAt(result)
	return result, nil
}

// UpdateBounds replaces a position's tick bounds after a rebalance.
func (s *PositionStore) UpdateBounds(_ context.Context, positionID string, lowerTick, upperTick int32, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[positionID]
	if !exists {
		return storage.ErrNotFound
	}

	p.LowerTick = lowerTick
	p.UpperTick = upperTick
	p.UpdatedAt = updatedAt
	return nil
}

func sortByCreatedAt(positions []*domain.Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].CreatedAt != positions[j].CreatedAt {
			return positions[i].CreatedAt < positions[j].CreatedAt
		}
		return positions[i].PositionID < positions[j].PositionID
	})
}

var _ storage.PositionStore = (*PositionStore)(nil)
