package ingestion

import (
	"context"
	"testing"
	"time"

	"clmm-range-lab/internal/storage/memory"
)

func newTestRunner(t *testing.T, batchSize int) (*Runner, *memory.PriceObservationStore) {
	t.Helper()

	v, err := NewValidator("", "test")
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	store := memory.NewPriceObservationStore()
	runner := NewRunner(RunnerOptions{
		Validator: v,
		Store:     store,
		BatchSize: batchSize,
	})
	return runner, store
}

func TestRunner_BuffersUntilBatchSize(t *testing.T) {
	runner, store := newTestRunner(t, 3)
	ctx := context.Background()
	pool := testPoolKey(t)

	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "100", Slot: 1, TimestampMs: 1000})
	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "105", Slot: 2, TimestampMs: 2000})

	obs, err := store.GetByPoolID(ctx, pool)
	if err != nil {
		t.Fatalf("GetByPoolID: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("expected empty store before batch size reached, got %d", len(obs))
	}

	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "110", Slot: 3, TimestampMs: 3000})

	obs, err = store.GetByPoolID(ctx, pool)
	if err != nil {
		t.Fatalf("GetByPoolID: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("expected 3 observations after batch flush, got %d", len(obs))
	}
	if obs[0].Price != "100" || obs[2].Price != "110" {
		t.Errorf("unexpected observation order: %+v", obs)
	}
}

func TestRunner_FlushWritesBuffered(t *testing.T) {
	runner, store := newTestRunner(t, 100)
	ctx := context.Background()
	pool := testPoolKey(t)

	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "100", Slot: 1, TimestampMs: 1000})
	runner.flush(ctx)

	obs, err := store.GetByPoolID(ctx, pool)
	if err != nil {
		t.Fatalf("GetByPoolID: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}

	// Flushing an empty buffer is a no-op
	runner.flush(ctx)
}

func TestRunner_DeduplicatesWithinBuffer(t *testing.T) {
	runner, store := newTestRunner(t, 100)
	ctx := context.Background()
	pool := testPoolKey(t)

	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "100", Slot: 1, TimestampMs: 1000})
	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "200", Slot: 1, TimestampMs: 1000})
	runner.flush(ctx)

	obs, err := store.GetByPoolID(ctx, pool)
	if err != nil {
		t.Fatalf("GetByPoolID: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation after dedup, got %d", len(obs))
	}
	// First update wins
	if obs[0].Price != "100" {
		t.Errorf("price = %s, want 100", obs[0].Price)
	}
}

func TestRunner_SkipsAlreadyStoredDuplicates(t *testing.T) {
	runner, store := newTestRunner(t, 100)
	ctx := context.Background()
	pool := testPoolKey(t)

	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "100", Slot: 1, TimestampMs: 1000})
	runner.flush(ctx)

	// Same key arrives again after the flush cleared the dedup set
	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "200", Slot: 1, TimestampMs: 1000})
	runner.handleUpdate(ctx, PriceUpdate{Pool: pool, Price: "105", Slot: 2, TimestampMs: 2000})
	runner.flush(ctx)

	obs, err := store.GetByPoolID(ctx, pool)
	if err != nil {
		t.Fatalf("GetByPoolID: %v", err)
	}
	// The duplicate is dropped, the fresh observation survives
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].Price != "100" || obs[1].Price != "105" {
		t.Errorf("unexpected observations: %+v", obs)
	}
}

func TestRunner_RejectsInvalidUpdates(t *testing.T) {
	runner, store := newTestRunner(t, 100)
	ctx := context.Background()

	runner.handleUpdate(ctx, PriceUpdate{Pool: "bad", Price: "100", Slot: 1, TimestampMs: 1000})
	runner.handleUpdate(ctx, PriceUpdate{Pool: testPoolKey(t), Price: "xyz", Slot: 1, TimestampMs: 1000})
	runner.flush(ctx)

	if len(runner.buffer) != 0 {
		t.Errorf("expected empty buffer, got %d", len(runner.buffer))
	}
	all, err := store.GetByPoolID(ctx, "bad")
	if err != nil {
		t.Fatalf("GetByPoolID: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no stored observations, got %d", len(all))
	}
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	server := feedServer(t)
	defer server.Close()

	feed, err := NewFeedClient(context.Background(), wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewFeedClient: %v", err)
	}
	defer feed.Close()

	v, _ := NewValidator("", "test")
	runner := NewRunner(RunnerOptions{
		Feed:      feed,
		Validator: v,
		Store:     memory.NewPriceObservationStore(),
		FlushInt:  50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunner_DefaultValues(t *testing.T) {
	runner := NewRunner(RunnerOptions{})

	if runner.batchSize != 100 {
		t.Errorf("batchSize = %d, want 100", runner.batchSize)
	}
	if runner.flushInterval != 5*time.Second {
		t.Errorf("flushInterval = %v, want 5s", runner.flushInterval)
	}
	if runner.logger == nil {
		t.Error("logger should default to log.Default()")
	}
}
