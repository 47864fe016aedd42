package scene

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyRenderer overrides Dispose of a real renderer.
type faultyRenderer struct {
	renderer.ModelRenderer
	dispose func() error
	calls   atomic.Int32
}

func (f *faultyRenderer) Dispose() error {
	f.calls.Add(1)
	return f.dispose()
}

func newFaulty(name string, dispose func() error) *faultyRenderer {
	return &faultyRenderer{
		ModelRenderer: renderer.NewModelRenderer(model.NewModel(name)),
		dispose:       dispose,
	}
}

func newTestReclaimer(interval time.Duration) *reclaimer {
	return newReclaimer(interval, common.ComponentLogger("reclaimer-test"))
}

func stopReclaimer(t *testing.T, rc *reclaimer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rc.Stop(ctx))
}

func TestReclaimerDisposesInOrder(t *testing.T) {
	rc := newTestReclaimer(time.Hour)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		rc.Enqueue(newFaulty(name, func() error {
			order = append(order, name)
			return nil
		}))
	}
	assert.Equal(t, 3, rc.Pending())

	rc.Start()
	require.Eventually(t, func() bool { return rc.disposed.Load() == 3 }, time.Second, time.Millisecond)
	stopReclaimer(t, rc)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Zero(t, rc.Pending())
}

func TestReclaimerWakesOnEnqueue(t *testing.T) {
	rc := newTestReclaimer(time.Hour)
	rc.Start()
	defer stopReclaimer(t, rc)

	// Let the worker reach its idle wait.
	time.Sleep(20 * time.Millisecond)

	r := newFaulty("late", func() error { return nil })
	rc.Enqueue(r)
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond,
		"enqueue must not wait out the backoff")
}

func TestReclaimerSurvivesFailures(t *testing.T) {
	rc := newTestReclaimer(5 * time.Millisecond)
	rc.Start()
	defer stopReclaimer(t, rc)

	failing := newFaulty("failing", func() error { return errors.New("device lost") })
	panicking := newFaulty("panicking", func() error { panic("double free") })
	healthy := newFaulty("healthy", func() error { return nil })

	rc.Enqueue(failing)
	rc.Enqueue(panicking)
	rc.Enqueue(healthy)

	require.Eventually(t, func() bool { return healthy.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, failing.calls.Load())
	assert.EqualValues(t, 1, panicking.calls.Load())
	assert.EqualValues(t, 2, rc.failed.Load())
	assert.EqualValues(t, 1, rc.disposed.Load())
}

func TestReclaimerDrainsOnStop(t *testing.T) {
	rc := newTestReclaimer(time.Hour)
	gate := make(chan struct{})
	first := newFaulty("first", func() error { <-gate; return nil })
	second := newFaulty("second", func() error { return nil })

	rc.Start()
	rc.Enqueue(first)
	require.Eventually(t, func() bool { return first.calls.Load() == 1 }, time.Second, time.Millisecond)
	rc.Enqueue(second)

	stopped := make(chan error, 1)
	go func() { stopped <- rc.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("stop returned while a disposal was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(gate)
	require.NoError(t, <-stopped)
	assert.EqualValues(t, 1, second.calls.Load(), "pending work is drained before exit")
}

func TestReclaimerStopTimeout(t *testing.T) {
	rc := newTestReclaimer(time.Hour)
	gate := make(chan struct{})
	defer close(gate)
	stuck := newFaulty("stuck", func() error { <-gate; return nil })

	rc.Start()
	rc.Enqueue(stuck)
	require.Eventually(t, func() bool { return stuck.calls.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rc.Stop(ctx)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSceneLifecycle(t *testing.T) {
	s, _ := newTestScene(t)

	assert.ErrorIs(t, s.Shutdown(context.Background()), ErrNotInitialized)
	require.NoError(t, s.Initialize())
	assert.ErrorIs(t, s.Initialize(), ErrAlreadyInitialized)

	rock := mustAdd(t, s, "Rock", 1, origin).Renderer()
	glass := mustAdd(t, s, "Glass", 2, origin).Renderer()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	assert.True(t, rock.Disposed(), "shutdown disposes registered renderers")
	assert.True(t, glass.Disposed())
	assert.Zero(t, s.RendererCount())
	assert.ErrorIs(t, s.Shutdown(ctx), ErrNotInitialized)

	require.NoError(t, s.Initialize(), "a stopped scene can be restarted")
	require.NoError(t, s.Shutdown(ctx))
}

func TestSceneShutdownTimeout(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	factory := func(m model.Model, b renderer.DrawBackend) renderer.ModelRenderer {
		return &faultyRenderer{
			ModelRenderer: DefaultRendererFactory(m, b),
			dispose:       func() error { <-gate; return nil },
		}
	}
	s, _ := newTestScene(t, WithRendererFactory(factory))
	require.NoError(t, s.Initialize())
	mustAdd(t, s, "Rock", 1, origin)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Shutdown(ctx), ErrShutdownTimeout)
}
