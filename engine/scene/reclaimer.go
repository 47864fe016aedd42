package scene

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
)

// DefaultReclaimInterval is how long the reclamation worker sleeps on an empty
// queue when no enqueue signal arrives.
const DefaultReclaimInterval = 200 * time.Millisecond

// reclaimer disposes orphaned renderers on its own goroutine so that GPU
// resource teardown never runs on the frame or streaming paths.
type reclaimer struct {
	mu       sync.Mutex
	pending  []renderer.ModelRenderer
	wake     chan struct{}
	interval time.Duration

	stop chan struct{}
	done chan struct{}

	disposed atomic.Uint64
	failed   atomic.Uint64

	log *slog.Logger
}

func newReclaimer(interval time.Duration, log *slog.Logger) *reclaimer {
	if interval <= 0 {
		interval = DefaultReclaimInterval
	}
	return &reclaimer{
		wake:     make(chan struct{}, 1),
		interval: interval,
		log:      log,
	}
}

// Enqueue schedules r for disposal and wakes the worker if it is idle.
func (rc *reclaimer) Enqueue(r renderer.ModelRenderer) {
	rc.mu.Lock()
	rc.pending = append(rc.pending, r)
	rc.mu.Unlock()

	select {
	case rc.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of renderers waiting for disposal.
func (rc *reclaimer) Pending() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.pending)
}

// IsPending reports whether r is queued and not yet taken by the worker.
func (rc *reclaimer) IsPending(r renderer.ModelRenderer) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, p := range rc.pending {
		if p == r {
			return true
		}
	}
	return false
}

func (rc *reclaimer) Start() {
	rc.stop = make(chan struct{})
	rc.done = make(chan struct{})
	go rc.run(rc.stop, rc.done)
}

// Stop signals the worker and waits for it to drain the queue and exit. An
// in-flight disposal always runs to completion.
func (rc *reclaimer) Stop(ctx context.Context) error {
	close(rc.stop)
	select {
	case <-rc.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

func (rc *reclaimer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(rc.interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			rc.drain()
			return
		default:
		}

		if r, ok := rc.dequeue(); ok {
			rc.dispose(r)
			continue
		}

		timer.Reset(rc.interval)
		select {
		case <-stop:
			rc.drain()
			return
		case <-rc.wake:
		case <-timer.C:
		}
	}
}

func (rc *reclaimer) dequeue() (renderer.ModelRenderer, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.pending) == 0 {
		return nil, false
	}
	r := rc.pending[0]
	rc.pending[0] = nil
	rc.pending = rc.pending[1:]
	return r, true
}

func (rc *reclaimer) drain() {
	for {
		r, ok := rc.dequeue()
		if !ok {
			return
		}
		rc.dispose(r)
	}
}

func (rc *reclaimer) dispose(r renderer.ModelRenderer) {
	var name string
	defer func() {
		if rec := recover(); rec != nil {
			rc.failed.Add(1)
			rc.log.Error("renderer dispose panicked", "model", name, "panic", rec)
		}
	}()

	name = r.Model().Name()
	if err := r.Dispose(); err != nil {
		rc.failed.Add(1)
		rc.log.Error("renderer dispose failed", "model", name, "error", err)
		return
	}
	rc.disposed.Add(1)
	rc.log.Debug("renderer disposed", "model", name)
}
