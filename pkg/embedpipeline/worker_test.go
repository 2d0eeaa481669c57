package embedpipeline

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWorkerEmbedsAndApplies(t *testing.T) {
	reg := NewProviderRegistry()
	_ = reg.Register(NewLocalProvider("local-8", 8))
	reg.Freeze()

	var mu sync.Mutex
	var results []Result
	w := NewWorker(reg, func(_ context.Context, r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}, 3)
	defer w.Close()

	if err := w.Enqueue(context.Background(), Item{
		Tenant: "t1", Schema: "doc", EntityID: "e1", Field: "embedding",
		Text: "hello", Provider: "local-8",
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := w.WaitForWorker(time.Second); err != nil {
		t.Fatalf("wait for worker: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if len(results[0].Vector) != 8 {
		t.Fatalf("expected 8-dim vector, got %d", len(results[0].Vector))
	}
}

func TestWorkerSurfacesUnknownProviderAsApplyError(t *testing.T) {
	reg := NewProviderRegistry()
	reg.Freeze()

	done := make(chan Result, 1)
	w := NewWorker(reg, func(_ context.Context, r Result) {
		done <- r
	}, 1)
	defer w.Close()

	if err := w.Enqueue(context.Background(), Item{
		Tenant: "t1", Schema: "doc", EntityID: "e1", Field: "embedding",
		Text: "hello", Provider: "missing",
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case r := <-done:
		if r.Err == nil {
			t.Fatal("expected error for unknown provider")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for apply callback")
	}
}

func TestEnqueueHonorsContextCancellation(t *testing.T) {
	reg := NewProviderRegistry()
	_ = reg.Register(NewLocalProvider("local-8", 8))
	reg.Freeze()

	block := make(chan struct{})
	w := NewWorker(reg, func(_ context.Context, _ Result) {
		<-block
	}, 1)
	defer func() {
		close(block)
		w.Close()
	}()

	// Fill the tenant's bounded queue, then force the goroutine to stall
	// inside apply so the queue cannot drain, and confirm a context
	// deadline is honored rather than blocking forever.
	fillCtx, fillCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer fillCancel()
	for i := 0; i < defaultQueueCapacity+1; i++ {
		_ = w.Enqueue(fillCtx, Item{
			Tenant: "t1", Field: "embedding", Text: "x", Provider: "local-8",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Enqueue(ctx, Item{Tenant: "t1", Field: "embedding", Text: "y", Provider: "local-8"})
	if err == nil {
		t.Fatal("expected enqueue to fail once the tenant queue is saturated and blocked")
	}
}
