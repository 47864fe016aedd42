package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/engine/loader"
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	origin = mgl32.Vec3{}
	unit   = mgl32.Vec3{1, 1, 1}
)

type countingSource struct {
	mu     sync.Mutex
	models map[model.Hash]model.Model
	calls  map[string]int
	panics bool
}

func newCountingSource(models ...model.Model) *countingSource {
	s := &countingSource{
		models: make(map[model.Hash]model.Model),
		calls:  make(map[string]int),
	}
	for _, m := range models {
		s.models[m.Hash()] = m
	}
	return s
}

func (s *countingSource) Load(name string) (model.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	if s.panics {
		panic("corrupt asset")
	}
	m, ok := s.models[model.HashName(name)]
	if !ok {
		return nil, fmt.Errorf("no such model %q", name)
	}
	return m, nil
}

func (s *countingSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type recordingBackend struct {
	mu       sync.Mutex
	events   []string
	drawErr  error
	released []string
}

func (b *recordingBackend) record(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBackend) BeginBatchDraw()  { b.record("begin-batch") }
func (b *recordingBackend) BeginSingleDraw() { b.record("begin-single") }

func (b *recordingBackend) DrawBatch(m model.Model, instances []*renderer.Instance) error {
	b.record(fmt.Sprintf("batch:%s:%d", m.Name(), len(instances)))
	return nil
}

func (b *recordingBackend) DrawInstance(m model.Model, inst *renderer.Instance) error {
	b.record(fmt.Sprintf("single:%s:%d", m.Name(), inst.ID()))
	return b.drawErr
}

func (b *recordingBackend) Release(m model.Model) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = append(b.released, m.Name())
	return nil
}

func (b *recordingBackend) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func (b *recordingBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type staticBrush struct {
	enabled  atomic.Bool
	position mgl32.Vec3
	radius   float32
}

func (b *staticBrush) HighlightEnabled() bool    { return b.enabled.Load() }
func (b *staticBrush) BrushPosition() mgl32.Vec3 { return b.position }
func (b *staticBrush) BrushRadius() float32      { return b.radius }

func testModels() []model.Model {
	return []model.Model{
		model.NewModel("Rock", model.WithBoundingRadius(1)),
		model.NewModel("Bird", model.WithPerInstanceAnimation(true), model.WithBoundingRadius(1)),
		model.NewModel("Glass", model.WithBlendPass(true), model.WithBoundingRadius(1)),
		model.NewModel("X", model.WithBlendPass(true), model.WithBoundingRadius(1)),
	}
}

func newTestScene(t *testing.T, options ...SceneBuilderOption) (*scene, *countingSource) {
	t.Helper()
	src := newCountingSource(testModels()...)
	options = append([]SceneBuilderOption{WithReclaimInterval(10 * time.Millisecond)}, options...)
	s := NewScene("test", src, options...).(*scene)
	return s, src
}

func startScene(t *testing.T, s Scene) {
	t.Helper()
	require.NoError(t, s.Initialize())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil && !errors.Is(err, ErrNotInitialized) {
			t.Errorf("shutdown: %v", err)
		}
	})
}

func mustAdd(t *testing.T, s Scene, name string, id uint64, position mgl32.Vec3) *renderer.Instance {
	t.Helper()
	inst, err := s.AddInstance(name, id, position, origin, unit)
	require.NoError(t, err)
	require.NotNil(t, inst)
	return inst
}

func TestNewSceneRequiresSource(t *testing.T) {
	assert.Panics(t, func() { NewScene("nil", nil) })
}

func TestAddInstanceCreatesOneRendererPerModel(t *testing.T) {
	s, src := newTestScene(t)

	a := mustAdd(t, s, "Rock", 1, origin)
	b := mustAdd(t, s, "rock", 2, origin)
	c := mustAdd(t, s, "ROCK", 3, origin)

	assert.Equal(t, 1, s.RendererCount())
	assert.Equal(t, 1, src.totalCalls(), "model loaded once")
	assert.Same(t, a.Renderer(), b.Renderer())
	assert.Same(t, a.Renderer(), c.Renderer())
	assert.Equal(t, 3, s.Renderer("Rock").InstanceCount())
}

func TestConcurrentAddInstanceSharesRenderer(t *testing.T) {
	s, src := newTestScene(t)

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddInstance("Rock", uint64(i+1), origin, origin, unit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.RendererCount())
	assert.Equal(t, 1, src.totalCalls())
	assert.Equal(t, 64, s.Renderer("Rock").InstanceCount())
}

func TestAddInstanceLoadFailureLeavesNoState(t *testing.T) {
	s, _ := newTestScene(t)

	inst, err := s.AddInstance("Missing", 1, origin, origin, unit)
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrModelUnavailable)
	assert.Nil(t, inst)
	assert.Zero(t, s.RendererCount())
	assert.Zero(t, s.VisibleCount())
	assert.Zero(t, s.PendingDisposals())
}

func TestAddInstanceRecoversLoaderPanic(t *testing.T) {
	s, src := newTestScene(t)
	src.panics = true

	_, err := s.AddInstance("Rock", 1, origin, origin, unit)
	assert.ErrorIs(t, err, loader.ErrModelUnavailable)
	assert.Zero(t, s.RendererCount())

	src.panics = false
	mustAdd(t, s, "Rock", 1, origin)
	assert.Equal(t, 1, s.RendererCount(), "failure is not cached")
}

func TestAddInstanceNilModelIsUnavailable(t *testing.T) {
	s := NewScene("nil-model", loader.NewFuncLoader(func(string) (model.Model, error) { return nil, nil }))

	_, err := s.AddInstance("Rock", 1, origin, origin, unit)
	assert.ErrorIs(t, err, loader.ErrModelUnavailable)
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	s, _ := newTestScene(t)
	mustAdd(t, s, "Rock", 1, origin)

	s.RemoveInstance("Nope", 1)
	s.RemoveInstance("Rock", 99)
	s.RemoveInstanceByHash(model.HashName("Nope"), 5)

	assert.Equal(t, 1, s.RendererCount())
	assert.Zero(t, s.PendingDisposals())
}

func TestRemoveLastInstanceSchedulesDisposal(t *testing.T) {
	s, _ := newTestScene(t)
	mustAdd(t, s, "Rock", 1, origin)
	mustAdd(t, s, "Rock", 2, origin)
	r := s.Renderer("Rock")

	s.RemoveInstance("Rock", 1)
	assert.Same(t, r, s.Renderer("Rock"), "renderer kept while instances remain")

	s.RemoveInstance("Rock", 2)
	assert.Nil(t, s.Renderer("Rock"))
	assert.Zero(t, s.RendererCount())
	assert.True(t, s.IsPendingDisposal(r))
	assert.False(t, r.Disposed(), "worker not started yet")

	startScene(t, s)
	require.Eventually(t, r.Disposed, time.Second, 5*time.Millisecond)
	assert.Zero(t, s.PendingDisposals())
	assert.EqualValues(t, 1, s.Stats().Disposed)
}

func TestReAddAfterDisposalCreatesNewRenderer(t *testing.T) {
	s, src := newTestScene(t)
	startScene(t, s)

	first := mustAdd(t, s, "Rock", 1, origin).Renderer()
	s.RemoveInstance("Rock", 1)
	second := mustAdd(t, s, "Rock", 1, origin).Renderer()

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, src.totalCalls())
	require.Eventually(t, first.Disposed, time.Second, 5*time.Millisecond)
	assert.False(t, second.Disposed())
}

func TestPushMapReferencesClassifiesByDrawPath(t *testing.T) {
	s, _ := newTestScene(t)
	rock := mustAdd(t, s, "Rock", 1, origin)
	mustAdd(t, s, "Bird", 2, origin)
	mustAdd(t, s, "Glass", 3, origin)

	s.PushMapReferences([]MapReference{
		{ID: 1, Instance: rock},
		{ID: 2, Model: "bird"},
		{ID: 3, Model: "GLASS"},
		{ID: 4, Model: "Glass"},
		{ID: 9, Model: "Unknown"},
	})

	st := s.Stats()
	assert.Equal(t, 3, st.Visible)
	assert.Equal(t, 1, st.NonBatched)
	assert.Equal(t, 1, st.Sorted)
	assert.True(t, rock.Updated())

	s.PushMapReferences([]MapReference{{ID: 1, Instance: rock}, {ID: 3, Model: "Glass"}})
	assert.Equal(t, 3, s.VisibleCount(), "updated instances are skipped")
}

func TestPushMapReferencesSkipsRemovedInstance(t *testing.T) {
	s, _ := newTestScene(t)
	mustAdd(t, s, "Rock", 1, origin)
	stale := mustAdd(t, s, "Rock", 2, origin)
	s.RemoveInstance("Rock", 2)

	s.PushMapReferences([]MapReference{{ID: 2, Instance: stale}})
	assert.Zero(t, s.VisibleCount())

	s.RemoveInstance("Rock", 1)
	s.PushMapReferences([]MapReference{{ID: 1, Model: "Rock"}})
	assert.Zero(t, s.VisibleCount())
}

func TestRemoveInstanceClearsIndices(t *testing.T) {
	s, _ := newTestScene(t)
	mustAdd(t, s, "Bird", 2, origin)
	mustAdd(t, s, "Glass", 3, origin)
	mustAdd(t, s, "Glass", 4, origin)
	s.PushMapReferences([]MapReference{{ID: 2, Model: "Bird"}, {ID: 3, Model: "Glass"}, {ID: 4, Model: "Glass"}})

	s.RemoveInstance("Bird", 2)
	s.RemoveInstance("Glass", 3)

	st := s.Stats()
	assert.Equal(t, 1, st.Visible)
	assert.Zero(t, st.NonBatched)
	assert.Equal(t, []uint64{4}, s.SortedOrder())
}

func TestViewChangedClearsIndicesAndSetsDirty(t *testing.T) {
	s, _ := newTestScene(t)
	rock := mustAdd(t, s, "Rock", 1, origin)
	mustAdd(t, s, "Bird", 2, origin)
	mustAdd(t, s, "Glass", 3, origin)
	refs := []MapReference{{ID: 1, Model: "Rock"}, {ID: 2, Model: "Bird"}, {ID: 3, Model: "Glass"}}
	s.PushMapReferences(refs)

	s.ViewChanged()

	st := s.Stats()
	assert.Zero(t, st.Visible)
	assert.Zero(t, st.NonBatched)
	assert.Zero(t, st.Sorted)
	assert.True(t, s.View().Dirty())
	assert.False(t, rock.Updated())

	stats, err := s.OnFrame()
	require.NoError(t, err)
	assert.True(t, stats.ViewDirty)
	assert.False(t, s.View().Dirty(), "frame clears the flag")

	s.PushMapReferences(refs)
	assert.Equal(t, 3, s.VisibleCount(), "instances can be re-pushed after a view change")
}

// gatedBackend parks the frame inside BeginBatchDraw until release is closed.
type gatedBackend struct {
	recordingBackend
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *gatedBackend) BeginBatchDraw() {
	b.once.Do(func() { close(b.entered) })
	<-b.release
}

func TestViewChangedDuringFrameStaysDirty(t *testing.T) {
	backend := &gatedBackend{entered: make(chan struct{}), release: make(chan struct{})}
	s, _ := newTestScene(t, WithDrawBackend(backend))
	mustAdd(t, s, "Rock", 1, origin)
	s.PushMapReferences([]MapReference{{ID: 1, Model: "Rock"}})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.OnFrame()
	}()
	<-backend.entered

	go func() {
		defer wg.Done()
		s.ViewChanged()
	}()
	// Let ViewChanged reach the frame lock before the frame finishes.
	time.Sleep(20 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	assert.Zero(t, s.VisibleCount())
	assert.True(t, s.View().Dirty(), "a view change queued behind a frame survives it")

	stats, err := s.OnFrame()
	require.NoError(t, err)
	assert.True(t, stats.ViewDirty)
	assert.False(t, s.View().Dirty())
}

func TestSharedViewState(t *testing.T) {
	view := NewViewState()
	s, _ := newTestScene(t, WithViewState(view))

	s.ViewChanged()
	assert.True(t, view.Dirty())
}

func TestUpdateDepthsUsesEyeDistance(t *testing.T) {
	s, _ := newTestScene(t)
	near := mustAdd(t, s, "Glass", 1, mgl32.Vec3{0, 0, 2})
	far := mustAdd(t, s, "Glass", 2, mgl32.Vec3{0, 0, 10})
	s.PushMapReferences([]MapReference{{ID: 1, Model: "Glass"}, {ID: 2, Model: "Glass"}})

	s.UpdateDepths(origin)

	assert.InDelta(t, 2, near.Depth(), 1e-5)
	assert.InDelta(t, 10, far.Depth(), 1e-5)
	assert.Equal(t, []uint64{2, 1}, s.SortedOrder())

	s.UpdateDepths(mgl32.Vec3{0, 0, 20})
	assert.Equal(t, []uint64{1, 2}, s.SortedOrder(), "order follows depth at draw time")
}

func TestOnFrameDrawsPhasesInOrder(t *testing.T) {
	backend := &recordingBackend{}
	s, _ := newTestScene(t, WithDrawBackend(backend))
	mustAdd(t, s, "Rock", 1, origin)
	mustAdd(t, s, "Rock", 2, origin)
	mustAdd(t, s, "Bird", 3, origin)
	a := mustAdd(t, s, "Glass", 4, origin)
	b := mustAdd(t, s, "Glass", 5, origin)
	c := mustAdd(t, s, "Glass", 6, origin)
	a.SetDepth(3)
	b.SetDepth(9)
	c.SetDepth(3)
	s.PushMapReferences([]MapReference{
		{ID: 1, Model: "Rock"}, {ID: 2, Model: "Rock"},
		{ID: 3, Model: "Bird"},
		{ID: 4, Model: "Glass"}, {ID: 5, Model: "Glass"}, {ID: 6, Model: "Glass"},
	})

	stats, err := s.OnFrame()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"begin-batch",
		"batch:Rock:2",
		"begin-single",
		"single:Bird:3",
		"single:Glass:5",
		"single:Glass:4",
		"single:Glass:6",
	}, backend.Events())
	assert.Equal(t, 3, stats.Batches, "every registered renderer is asked to batch")
	assert.Equal(t, 1, stats.Singles)
	assert.Equal(t, 3, stats.Sorted)
	assert.Equal(t, 7, stats.Draws())
}

func TestOnFrameJoinsDrawErrors(t *testing.T) {
	boom := errors.New("device lost")
	backend := &recordingBackend{drawErr: boom}
	s, _ := newTestScene(t, WithDrawBackend(backend))
	mustAdd(t, s, "Bird", 1, origin)
	mustAdd(t, s, "Glass", 2, origin)
	s.PushMapReferences([]MapReference{{ID: 1, Model: "Bird"}, {ID: 2, Model: "Glass"}})

	stats, err := s.OnFrame()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, stats.Errors)
	assert.Contains(t, backend.Events(), "single:Glass:2", "sorted phase still runs after a failure")
}

// Two blended instances of one model: the farther one draws first, and the
// renderer survives until its last instance goes.
func TestBlendedModelLifecycle(t *testing.T) {
	backend := &recordingBackend{}
	s, _ := newTestScene(t, WithDrawBackend(backend))
	startScene(t, s)

	a := mustAdd(t, s, "X", 1, origin)
	b := mustAdd(t, s, "X", 2, origin)
	a.SetDepth(2)
	b.SetDepth(8)
	s.PushMapReferences([]MapReference{{ID: 1, Instance: a}, {ID: 2, Instance: b}})

	assert.Equal(t, []uint64{2, 1}, s.SortedOrder())
	_, err := s.OnFrame()
	require.NoError(t, err)
	assert.Equal(t, []string{"begin-batch", "begin-single", "single:X:2", "single:X:1"}, backend.Events())

	r := s.Renderer("X")
	s.RemoveInstance("X", 1)
	assert.Same(t, r, s.Renderer("X"))
	assert.Equal(t, []uint64{2}, s.SortedOrder())

	s.RemoveInstance("X", 2)
	assert.Nil(t, s.Renderer("X"))
	require.Eventually(t, r.Disposed, time.Second, 5*time.Millisecond)

	backend.mu.Lock()
	assert.Equal(t, []string{"X"}, backend.released)
	backend.mu.Unlock()
}

func TestBrushHighlighting(t *testing.T) {
	brush := &staticBrush{position: mgl32.Vec3{0, 0, 0}, radius: 2}
	s, _ := newTestScene(t, WithBrushSource(brush), WithHighlightWorkers(1))
	near := mustAdd(t, s, "Rock", 1, mgl32.Vec3{1, 0, 1})
	far := mustAdd(t, s, "Rock", 2, mgl32.Vec3{50, 0, 50})
	hidden := mustAdd(t, s, "Rock", 3, mgl32.Vec3{0, 0, 0})
	s.PushMapReferences([]MapReference{{ID: 1, Model: "Rock"}, {ID: 2, Model: "Rock"}})

	stats, err := s.OnFrame()
	require.NoError(t, err)
	assert.Zero(t, stats.Highlighted, "disabled brush leaves instances alone")

	brush.enabled.Store(true)
	stats, err = s.OnFrame()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Highlighted)
	assert.True(t, near.Highlighted())
	assert.False(t, far.Highlighted())
	assert.False(t, hidden.Highlighted(), "only visible instances are highlighted")

	brush.enabled.Store(false)
	_, err = s.OnFrame()
	require.NoError(t, err)
	assert.False(t, near.Highlighted(), "turning the brush off clears highlights")
}

func TestBrushHighlightingFansOut(t *testing.T) {
	brush := &staticBrush{radius: 10}
	brush.enabled.Store(true)
	s, _ := newTestScene(t, WithBrushSource(brush), WithHighlightWorkers(4))
	startScene(t, s)

	const n = minParallelHighlight * 2
	refs := make([]MapReference, 0, n)
	for i := range n {
		x := float32(i % 40)
		mustAdd(t, s, "Rock", uint64(i+1), mgl32.Vec3{x, 0, 0})
		refs = append(refs, MapReference{ID: uint64(i + 1), Model: "Rock"})
	}
	s.PushMapReferences(refs)

	stats, err := s.OnFrame()
	require.NoError(t, err)

	want := 0
	for i := range n {
		if float32(i%40) <= 11 {
			want++
		}
	}
	assert.Equal(t, want, stats.Highlighted)
}

func TestConcurrentStreamingAndFrames(t *testing.T) {
	s, _ := newTestScene(t)
	startScene(t, s)

	names := []string{"Rock", "Bird", "Glass", "X"}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ctx.Err() == nil; i++ {
				m := (w + i) % len(names)
				name := names[m]
				id := uint64(w*1_000_000 + m*1_000 + i%32)
				if i%3 == 2 {
					s.RemoveInstance(name, id)
					continue
				}
				if _, err := s.AddInstance(name, id, mgl32.Vec3{float32(i), 0, 0}, origin, unit); err != nil {
					t.Errorf("add: %v", err)
					return
				}
				s.PushMapReferences([]MapReference{{ID: id, Model: name}})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ctx.Err() == nil; i++ {
			if i%10 == 0 {
				s.ViewChanged()
			}
			s.UpdateDepths(origin)
			if _, err := s.OnFrame(); err != nil {
				t.Errorf("frame: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	assert.LessOrEqual(t, s.RendererCount(), len(names))
	for _, name := range names {
		if r := s.Renderer(name); r != nil {
			assert.Positive(t, r.InstanceCount(), "registered renderers are never empty")
			assert.False(t, r.Disposed())
		}
	}
}
