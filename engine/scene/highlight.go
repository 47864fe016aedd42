package scene

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// minParallelHighlight is the visible-instance count below which brush
// highlighting runs inline on the frame goroutine.
const minParallelHighlight = 512

// BrushSource supplies the editing brush consulted at the start of each frame.
type BrushSource interface {
	// HighlightEnabled reports whether brush highlighting is active.
	HighlightEnabled() bool

	// BrushPosition returns the brush center in world space.
	BrushPosition() mgl32.Vec3

	// BrushRadius returns the brush radius in world units.
	BrushRadius() float32
}

// highlighter fans brush updates for large visible sets out across a worker pool.
type highlighter struct {
	mu      sync.RWMutex
	workers int
	pool    worker.DynamicWorkerPool
	log     *slog.Logger
}

func (h *highlighter) start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.workers > 1 && h.pool == nil {
		h.pool = worker.NewDynamicWorkerPool(h.workers, h.workers*2, time.Second)
	}
}

func (h *highlighter) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pool != nil {
		h.pool.Stop()
		h.pool = nil
	}
}

// apply pushes the brush to every instance and returns how many ended up
// highlighted.
func (h *highlighter) apply(instances []*renderer.Instance, position mgl32.Vec3, radius float32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.pool == nil || len(instances) < minParallelHighlight {
		return highlightRange(instances, position, radius)
	}

	chunk := (len(instances) + h.workers - 1) / h.workers
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for id, start := 0, 0; start < len(instances); id, start = id+1, start+chunk {
		part := instances[start:min(start+chunk, len(instances))]
		wg.Add(1)
		h.pool.SubmitTask(worker.Task{
			ID:      id,
			Payload: len(part),
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if rec := recover(); rec != nil {
						h.log.Error("brush highlight task panicked", "task", id, "panic", rec)
					}
				}()
				n := highlightRange(part, position, radius)
				mu.Lock()
				total += n
				mu.Unlock()
				return n, nil
			},
		})
	}
	wg.Wait()
	return total
}

func highlightRange(instances []*renderer.Instance, position mgl32.Vec3, radius float32) int {
	n := 0
	for _, inst := range instances {
		inst.UpdateBrushHighlighting(position, radius)
		if inst.Highlighted() {
			n++
		}
	}
	return n
}

func clearHighlights(instances []*renderer.Instance) {
	for _, inst := range instances {
		inst.ClearHighlight()
	}
}
