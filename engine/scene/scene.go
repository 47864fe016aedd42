package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/loader"
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// Scene tracks every placed model instance of a streaming world, decides how
// each visible instance is drawn and reclaims renderers that lose their last
// instance.
//
// Two locks guard the state. The registry lock serializes renderer creation and
// removal. The frame-state lock guards the visibility indices and is held for
// the whole draw in OnFrame. Whenever both are needed the registry lock is taken
// first. Writes to the renderer map hold both locks, so reading it under either
// one is safe.
type Scene interface {
	// Name returns the scene name.
	Name() string

	// Active reports whether the engine should drive this scene.
	Active() bool

	// SetActive toggles whether the engine drives this scene.
	//
	// Parameters:
	//   - active: the new active state
	SetActive(active bool)

	// Initialize starts the reclamation worker and the highlight pool.
	//
	// Returns:
	//   - error: ErrAlreadyInitialized if the scene is already running
	Initialize() error

	// Shutdown hands every registered renderer to the reclamation worker, stops
	// it and waits until the queue is drained or ctx expires.
	//
	// Parameters:
	//   - ctx: bounds the wait for the worker
	//
	// Returns:
	//   - error: ErrNotInitialized, or ErrShutdownTimeout when ctx expires first
	Shutdown(ctx context.Context) error

	// AddInstance places an instance of the named model, creating and registering
	// the model's renderer on first use.
	//
	// Parameters:
	//   - modelName: model name, matched case-insensitively
	//   - id: caller-assigned instance id
	//   - position: world position
	//   - rotation: Euler rotation in radians
	//   - scale: per-axis scale
	//
	// Returns:
	//   - *renderer.Instance: the placed instance
	//   - error: wraps loader.ErrModelUnavailable when the model cannot be loaded
	AddInstance(modelName string, id uint64, position, rotation, scale mgl32.Vec3) (*renderer.Instance, error)

	// RemoveInstance removes an instance of the named model. Unknown models and
	// ids are ignored.
	//
	// Parameters:
	//   - modelName: model name
	//   - id: instance id
	RemoveInstance(modelName string, id uint64)

	// RemoveInstanceByHash is RemoveInstance keyed by model identity.
	//
	// Parameters:
	//   - hash: model identity
	//   - id: instance id
	RemoveInstanceByHash(hash model.Hash, id uint64)

	// PushMapReferences marks the referenced instances visible for the current
	// view and files each one under its draw path.
	//
	// Parameters:
	//   - refs: the visible placements reported by the world
	PushMapReferences(refs []MapReference)

	// ViewChanged empties the visibility indices, flags the view dirty and
	// resets every renderer's visible list.
	ViewChanged()

	// UpdateDepths refreshes the camera depth of every visible instance.
	//
	// Parameters:
	//   - eye: camera position in world space
	UpdateDepths(eye mgl32.Vec3)

	// OnFrame runs brush highlighting and then the batched, single and sorted
	// draw phases in that order.
	//
	// Returns:
	//   - FrameStats: per-phase draw counts
	//   - error: every draw error of the frame, joined
	OnFrame() (FrameStats, error)

	// View returns the scene's view state.
	View() *ViewState

	// RendererCount returns the number of registered renderers.
	RendererCount() int

	// Renderer returns the registered renderer for the named model, or nil.
	Renderer(modelName string) renderer.ModelRenderer

	// PendingDisposals returns the number of renderers waiting for disposal.
	PendingDisposals() int

	// IsPendingDisposal reports whether r is queued for disposal.
	IsPendingDisposal(r renderer.ModelRenderer) bool

	// VisibleCount returns the size of the visible index.
	VisibleCount() int

	// SortedOrder returns the ids of the sorted index in draw order.
	SortedOrder() []uint64

	// Stats returns a snapshot of the scene counters.
	Stats() Stats
}

// ModelSource resolves model names to loaded models. loader.Loader satisfies it.
type ModelSource interface {
	Load(name string) (model.Model, error)
}

// RendererFactory builds the renderer for a freshly loaded model.
type RendererFactory func(m model.Model, backend renderer.DrawBackend) renderer.ModelRenderer

// DefaultRendererFactory builds a renderer.ModelRenderer drawing through backend.
func DefaultRendererFactory(m model.Model, backend renderer.DrawBackend) renderer.ModelRenderer {
	return renderer.NewModelRenderer(m, renderer.WithDrawBackend(backend))
}

// Stats is a point-in-time snapshot of the scene.
type Stats struct {
	Renderers        int
	Visible          int
	NonBatched       int
	Sorted           int
	PendingDisposals int
	Disposed         uint64
	DisposeFailures  uint64
}

type scene struct {
	name    string
	active  bool
	source  ModelSource
	factory RendererFactory
	backend renderer.DrawBackend
	brush   BrushSource
	view    *ViewState

	registryMu sync.Mutex
	renderers  map[model.Hash]renderer.ModelRenderer

	frameMu    sync.Mutex
	visible    map[uint64]*renderer.Instance
	nonBatched map[uint64]*renderer.Instance
	sorted     *alphaSet
	scratch    []*renderer.Instance
	wasLit     bool

	reclaimInterval time.Duration
	reclaimer       *reclaimer
	highlighter     *highlighter

	lifecycleMu sync.Mutex
	running     bool

	log *slog.Logger
}

var _ Scene = &scene{}

// NewScene creates a scene that loads models through source.
//
// Parameters:
//   - name: the scene name
//   - source: resolves model names; must not be nil
//   - options: SceneBuilderOption values
//
// Returns:
//   - Scene: the scene, not yet initialized
func NewScene(name string, source ModelSource, options ...SceneBuilderOption) Scene {
	if source == nil {
		panic("scene: NewScene requires a model source")
	}

	s := &scene{
		name:        name,
		active:      true,
		source:      source,
		factory:     DefaultRendererFactory,
		backend:     renderer.NopDrawBackend{},
		view:        NewViewState(),
		renderers:   make(map[model.Hash]renderer.ModelRenderer),
		visible:     make(map[uint64]*renderer.Instance),
		nonBatched:  make(map[uint64]*renderer.Instance),
		sorted:      newAlphaSet(),
		highlighter: &highlighter{workers: max(runtime.NumCPU()-1, 1)},
		log:         common.ComponentLogger("scene").With("scene", name),
	}

	for _, opt := range options {
		opt(s)
	}

	s.highlighter.log = s.log
	s.reclaimer = newReclaimer(s.reclaimInterval, s.log.With("worker", "reclaimer"))
	return s
}

func (s *scene) Name() string { return s.name }

func (s *scene) Active() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.active = active
}

func (s *scene) View() *ViewState { return s.view }

func (s *scene) Initialize() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.running {
		return ErrAlreadyInitialized
	}

	s.reclaimer.Start()
	s.highlighter.start()
	s.running = true
	s.log.Info("scene initialized", "reclaim_interval", s.reclaimer.interval)
	return nil
}

func (s *scene) Shutdown(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if !s.running {
		return ErrNotInitialized
	}
	s.running = false

	s.registryMu.Lock()
	s.frameMu.Lock()
	orphans := make([]renderer.ModelRenderer, 0, len(s.renderers))
	for _, r := range s.renderers {
		orphans = append(orphans, r)
	}
	clear(s.renderers)
	clear(s.visible)
	clear(s.nonBatched)
	s.sorted.Clear()
	s.frameMu.Unlock()
	s.registryMu.Unlock()

	for _, r := range orphans {
		s.reclaimer.Enqueue(r)
	}
	s.highlighter.stop()

	if err := s.reclaimer.Stop(ctx); err != nil {
		s.log.Error("scene shutdown timed out", "pending", s.reclaimer.Pending(), "error", err)
		return err
	}
	s.log.Info("scene shut down", "disposed", s.reclaimer.disposed.Load(), "failed", s.reclaimer.failed.Load())
	return nil
}

func (s *scene) AddInstance(modelName string, id uint64, position, rotation, scale mgl32.Vec3) (*renderer.Instance, error) {
	hash := model.HashName(modelName)

	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	if r, ok := s.renderers[hash]; ok {
		return r.AddInstance(id, position, rotation, scale), nil
	}

	m, err := s.loadModel(modelName)
	if err != nil {
		s.log.Warn("model load failed", "model", modelName, "instance", id, "error", err)
		return nil, fmt.Errorf("scene: add instance %d of %q: %w", id, modelName, err)
	}

	r := s.factory(m, s.backend)
	s.frameMu.Lock()
	s.renderers[hash] = r
	s.frameMu.Unlock()
	s.log.Debug("renderer registered", "model", m.Name(), "path", r.Path())

	return r.AddInstance(id, position, rotation, scale), nil
}

func (s *scene) loadModel(name string) (m model.Model, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			m = nil
			err = fmt.Errorf("%w: %q: load panicked: %v", loader.ErrModelUnavailable, name, rec)
		}
	}()

	m, err = s.source.Load(name)
	switch {
	case err != nil && !errors.Is(err, loader.ErrModelUnavailable):
		return nil, fmt.Errorf("%w: %q: %w", loader.ErrModelUnavailable, name, err)
	case err != nil:
		return nil, err
	case m == nil:
		return nil, fmt.Errorf("%w: %q", loader.ErrModelUnavailable, name)
	}
	return m, nil
}

func (s *scene) RemoveInstance(modelName string, id uint64) {
	s.RemoveInstanceByHash(model.HashName(modelName), id)
}

func (s *scene) RemoveInstanceByHash(hash model.Hash, id uint64) {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	s.frameMu.Lock()
	delete(s.visible, id)
	delete(s.nonBatched, id)
	s.sorted.Remove(id)

	r, ok := s.renderers[hash]
	emptied := ok && r.RemoveInstance(id)
	if emptied {
		delete(s.renderers, hash)
	}
	s.frameMu.Unlock()

	if emptied {
		s.reclaimer.Enqueue(r)
		s.log.Debug("renderer scheduled for disposal", "model", r.Model().Name())
	}
}

func (s *scene) RendererCount() int {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	return len(s.renderers)
}

func (s *scene) Renderer(modelName string) renderer.ModelRenderer {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	return s.renderers[model.HashName(modelName)]
}

func (s *scene) PendingDisposals() int {
	return s.reclaimer.Pending()
}

func (s *scene) IsPendingDisposal(r renderer.ModelRenderer) bool {
	return s.reclaimer.IsPending(r)
}

func (s *scene) Stats() Stats {
	s.frameMu.Lock()
	st := Stats{
		Renderers:  len(s.renderers),
		Visible:    len(s.visible),
		NonBatched: len(s.nonBatched),
		Sorted:     s.sorted.Len(),
	}
	s.frameMu.Unlock()

	st.PendingDisposals = s.reclaimer.Pending()
	st.Disposed = s.reclaimer.disposed.Load()
	st.DisposeFailures = s.reclaimer.failed.Load()
	return st
}
