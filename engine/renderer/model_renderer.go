package renderer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrRendererDisposed is returned by draw calls on a renderer that was disposed.
var ErrRendererDisposed = errors.New("renderer: model renderer disposed")

// ModelRenderer owns the GPU-facing state of one model and every instance placed
// against it. One ModelRenderer exists per model identity.
// Thread-safe for concurrent access.
type ModelRenderer interface {
	// Model returns the model this renderer draws.
	//
	// Returns:
	//   - model.Model: the model
	Model() model.Model

	// Path returns the draw path shared by every instance of this renderer.
	//
	// Returns:
	//   - DrawPath: the result of Classify(Model())
	Path() DrawPath

	// AddInstance places a new instance. If id is already placed, the existing
	// instance is returned unchanged.
	//
	// Parameters:
	//   - id: caller-assigned instance identity
	//   - position: world position
	//   - rotation: Euler rotation in radians
	//   - scale: per-axis scale
	//
	// Returns:
	//   - *Instance: the instance for id
	AddInstance(id uint64, position, rotation, scale mgl32.Vec3) *Instance

	// RemoveInstance removes an instance. Removing an absent id is a no-op.
	//
	// Parameters:
	//   - id: the instance identity
	//
	// Returns:
	//   - bool: true if this call removed the last instance
	RemoveInstance(id uint64) bool

	// Instance looks up a placed instance.
	//
	// Parameters:
	//   - id: the instance identity
	//
	// Returns:
	//   - *Instance: the instance, or nil
	Instance(id uint64) *Instance

	// InstanceCount returns the number of placed instances.
	//
	// Returns:
	//   - int: instance count, never negative
	InstanceCount() int

	// PushMapReference records that an instance entered view and marks it updated.
	// Batched instances join the list drawn by RenderBatch.
	//
	// Parameters:
	//   - inst: an instance owned by this renderer
	PushMapReference(inst *Instance)

	// ViewChanged forgets every visible instance and clears their updated flags.
	ViewChanged()

	// RenderBatch draws all visible batched instances with one draw.
	// Does nothing for models on the single or sorted path.
	//
	// Returns:
	//   - error: error from the draw backend, or ErrRendererDisposed
	RenderBatch() error

	// RenderSingleInstance draws one instance.
	//
	// Parameters:
	//   - inst: the instance to draw
	//
	// Returns:
	//   - error: error from the draw backend, or ErrRendererDisposed
	RenderSingleInstance(inst *Instance) error

	// Dispose releases the renderer's GPU resources. Only the first call does work.
	//
	// Returns:
	//   - error: error from the first release
	Dispose() error

	// Disposed reports whether Dispose has run.
	Disposed() bool
}

// modelRenderer is the implementation of the ModelRenderer interface.
type modelRenderer struct {
	mu        sync.RWMutex
	model     model.Model
	path      DrawPath
	backend   DrawBackend
	instances map[uint64]*Instance
	visible   []*Instance

	disposeOnce sync.Once
	disposeErr  error
	disposed    atomic.Bool
}

var _ ModelRenderer = &modelRenderer{}

// NewModelRenderer creates a renderer for a model. Panics if m is nil.
//
// Parameters:
//   - m: the model to draw
//   - options: functional options
//
// Returns:
//   - ModelRenderer: the renderer
func NewModelRenderer(m model.Model, options ...ModelRendererBuilderOption) ModelRenderer {
	if m == nil {
		panic("renderer: NewModelRenderer requires a non-nil Model")
	}

	r := &modelRenderer{
		model:     m,
		path:      Classify(m),
		backend:   NopDrawBackend{},
		instances: make(map[uint64]*Instance),
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

func (r *modelRenderer) Model() model.Model {
	return r.model
}

func (r *modelRenderer) Path() DrawPath {
	return r.path
}

func (r *modelRenderer) AddInstance(id uint64, position, rotation, scale mgl32.Vec3) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[id]; ok {
		return inst
	}
	inst := newInstance(id, r, position, rotation, scale, r.model.BoundingRadius())
	r.instances[id] = inst
	return inst
}

func (r *modelRenderer) RemoveInstance(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[id]; !ok {
		return false
	}
	delete(r.instances, id)

	for i, inst := range r.visible {
		if inst.id == id {
			last := len(r.visible) - 1
			r.visible[i] = r.visible[last]
			r.visible[last] = nil
			r.visible = r.visible[:last]
			break
		}
	}

	return len(r.instances) == 0
}

func (r *modelRenderer) Instance(id uint64) *Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instances[id]
}

func (r *modelRenderer) InstanceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

func (r *modelRenderer) PushMapReference(inst *Instance) {
	if inst == nil || inst.owner != ModelRenderer(r) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[inst.id]; !ok {
		return
	}
	if inst.updated.Swap(true) {
		return
	}
	if r.path == DrawBatched {
		r.visible = append(r.visible, inst)
	}
}

func (r *modelRenderer) ViewChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, inst := range r.instances {
		inst.updated.Store(false)
	}
	clear(r.visible)
	r.visible = r.visible[:0]
}

func (r *modelRenderer) RenderBatch() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.disposed.Load() {
		return ErrRendererDisposed
	}
	if r.path != DrawBatched || len(r.visible) == 0 {
		return nil
	}
	if err := r.backend.DrawBatch(r.model, r.visible); err != nil {
		return fmt.Errorf("renderer: batch draw of %q: %w", r.model.Name(), err)
	}
	return nil
}

func (r *modelRenderer) RenderSingleInstance(inst *Instance) error {
	if r.disposed.Load() {
		return ErrRendererDisposed
	}
	if err := r.backend.DrawInstance(r.model, inst); err != nil {
		return fmt.Errorf("renderer: draw of %q instance %d: %w", r.model.Name(), inst.id, err)
	}
	return nil
}

func (r *modelRenderer) Dispose() error {
	r.disposeOnce.Do(func() {
		r.mu.Lock()
		r.disposed.Store(true)
		clear(r.instances)
		clear(r.visible)
		r.visible = nil
		r.mu.Unlock()

		if err := r.backend.Release(r.model); err != nil {
			r.disposeErr = fmt.Errorf("renderer: release %q: %w", r.model.Name(), err)
		}
	})
	return r.disposeErr
}

func (r *modelRenderer) Disposed() bool {
	return r.disposed.Load()
}
