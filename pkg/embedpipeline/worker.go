package embedpipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Item is one queued embedding request.
type Item struct {
	Tenant   string
	Schema   string
	EntityID string
	Field    string
	Text     string
	Provider string
}

// Result is what the worker hands back to ApplyFunc after a successful
// embed, or after attempts are exhausted (Vector is nil and Err is set).
type Result struct {
	Item   Item
	Vector []float32
	Err    error
}

// ApplyFunc writes a completed (or permanently failed) embedding back into
// the entity body and vector index. A permanent failure surfaces through a
// per-entity embedding_error property and must not block other writes;
// ApplyFunc is responsible for that.
type ApplyFunc func(ctx context.Context, r Result)

const defaultQueueCapacity = 1024

// Worker is the per-tenant background embedding consumer. Scheduling is
// single-threaded per tenant so writes within a tenant stay ordered;
// tenants proceed in parallel.
type Worker struct {
	registry    *ProviderRegistry
	apply       ApplyFunc
	maxAttempts uint64

	mu      sync.Mutex
	queues  map[string]chan Item
	pending map[string]*int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs a Worker. maxAttempts bounds the exponential
// backoff retry loop for provider errors.
func NewWorker(registry *ProviderRegistry, apply ApplyFunc, maxAttempts uint64) *Worker {
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		registry:    registry,
		apply:       apply,
		maxAttempts: maxAttempts,
		queues:      make(map[string]chan Item),
		pending:     make(map[string]*int64),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Enqueue submits an embedding request. It blocks on a full per-tenant
// queue until ctx is done: writes to storage/index are synchronous, only
// embedding is queued, and callers that can't wait see ctx.Err() rather
// than a silently dropped write.
func (w *Worker) Enqueue(ctx context.Context, item Item) error {
	queue, counter := w.tenantQueue(item.Tenant)
	atomic.AddInt64(counter, 1)
	select {
	case queue <- item:
		return nil
	case <-ctx.Done():
		atomic.AddInt64(counter, -1)
		return ctx.Err()
	case <-w.ctx.Done():
		atomic.AddInt64(counter, -1)
		return w.ctx.Err()
	}
}

func (w *Worker) tenantQueue(tenant string) (chan Item, *int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.queues[tenant]
	if ok {
		return q, w.pending[tenant]
	}
	q = make(chan Item, defaultQueueCapacity)
	counter := new(int64)
	w.queues[tenant] = q
	w.pending[tenant] = counter
	w.wg.Add(1)
	go w.runTenant(tenant, q, counter)
	return q, counter
}

func (w *Worker) runTenant(_ string, queue chan Item, counter *int64) {
	defer w.wg.Done()
	for {
		select {
		case item := <-queue:
			w.process(item)
			atomic.AddInt64(counter, -1)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Worker) process(item Item) {
	provider, err := w.registry.Get(item.Provider)
	if err != nil {
		w.apply(w.ctx, Result{Item: item, Err: err})
		return
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.maxAttempts)
	var vec []float32
	embedErr := backoff.Retry(func() error {
		v, err := provider.Embed(w.ctx, item.Text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}, bo)

	if embedErr != nil {
		w.apply(w.ctx, Result{Item: item, Err: embedErr})
		return
	}
	if err := w.registry.CheckDimension(item.Provider, vec); err != nil {
		w.apply(w.ctx, Result{Item: item, Err: err})
		return
	}
	w.apply(w.ctx, Result{Item: item, Vector: vec})
}

// WaitForWorker blocks until every tenant's queue has drained or timeout
// elapses, for tests and readers that require freshness.
func (w *Worker) WaitForWorker(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if w.allDrained() {
			return nil
		}
		if time.Now().After(deadline) {
			return context.DeadlineExceeded
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (w *Worker) allDrained() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.pending {
		if atomic.LoadInt64(c) != 0 {
			return false
		}
	}
	return true
}

// Close stops every tenant goroutine and waits for them to exit.
func (w *Worker) Close() {
	w.cancel()
	w.wg.Wait()
}
