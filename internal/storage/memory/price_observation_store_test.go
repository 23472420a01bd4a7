package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/storage"
)

func obs(poolID string, ts int64, price string) *domain.PriceObservation {
	return &domain.PriceObservation{
		PoolID:      poolID,
		TimestampMs: ts,
		Slot:        ts / 400,
		Price:       price,
		FeedSource:  "test-feed",
	}
}

func TestPriceObservationStore_InsertAndGet(t *testing.T) {
	store := NewPriceObservationStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceObservation{
		obs("pool-A", 3000, "300"),
		obs("pool-A", 1000, "100"),
		obs("pool-A", 2000, "200"),
		obs("pool-B", 1500, "999"),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByPoolID(ctx, "pool-A")
	if err != nil {
		t.Fatalf("GetByPoolID failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(got))
	}
	// Ordered by timestamp ASC
	for i, wantTs := range []int64{1000, 2000, 3000} {
		if got[i].TimestampMs != wantTs {
			t.Errorf("observation %d: timestamp %d, want %d", i, got[i].TimestampMs, wantTs)
		}
	}
}

func TestPriceObservationStore_DuplicateKey(t *testing.T) {
	store := NewPriceObservationStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.PriceObservation{obs("pool-A", 1000, "100")}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.PriceObservation{obs("pool-A", 1000, "200")})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestPriceObservationStore_IntraBatchDuplicate(t *testing.T) {
	store := NewPriceObservationStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceObservation{
		obs("pool-A", 1000, "100"),
		obs("pool-A", 1000, "101"),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	// Batch must fail atomically: nothing stored.
	got, err := store.GetByPoolID(ctx, "pool-A")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty store after failed batch, got %d rows", len(got))
	}
}

func TestPriceObservationStore_InvalidInput(t *testing.T) {
	store := NewPriceObservationStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceObservation{obs("", 1000, "100")})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing pool, got %v", err)
	}
}

func TestPriceObservationStore_GetByTimeRange(t *testing.T) {
	store := NewPriceObservationStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.PriceObservation{
		obs("pool-A", 1000, "100"),
		obs("pool-A", 2000, "200"),
		obs("pool-A", 3000, "300"),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetByTimeRange(ctx, "pool-A", 1000, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 observations in [1000, 2000], got %d", len(got))
	}
}

func TestPriceObservationStore_GetRecent(t *testing.T) {
	store := NewPriceObservationStore()
	ctx := context.Background()

	var batch []*domain.PriceObservation
	for i := int64(1); i <= 10; i++ {
		batch = append(batch, obs("pool-A", i*1000, fmt.Sprintf("%d", i*100)))
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRecent(ctx, "pool-A", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(got))
	}
	// Most recent 3, still ordered ASC
	for i, wantTs := range []int64{8000, 9000, 10000} {
		if got[i].TimestampMs != wantTs {
			t.Errorf("observation %d: timestamp %d, want %d", i, got[i].TimestampMs, wantTs)
		}
	}
}

func TestPriceObservationStore_ConcurrentInserts(t *testing.T) {
	store := NewPriceObservationStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = store.InsertBulk(ctx, []*domain.PriceObservation{
					obs(fmt.Sprintf("pool-%d", g), int64(i), "100"),
				})
			}
		}(g)
	}
	wg.Wait()

	got, err := store.GetByPoolID(ctx, "pool-0")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 50 {
		t.Errorf("expected 50 observations for pool-0, got %d", len(got))
	}
}
