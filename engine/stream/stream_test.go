package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/engine/loader"
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingApplier struct {
	mu       sync.Mutex
	messages []Message
}

func (r *recordingApplier) record(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

func (r *recordingApplier) Place(p *Place) error {
	switch p.Model {
	case "Bad":
		return errors.New("unknown model")
	case "Boom":
		panic("applier bug")
	}
	return r.record(p)
}

func (r *recordingApplier) Remove(m *Remove) error           { return r.record(m) }
func (r *recordingApplier) ViewChanged(v *ViewChanged) error { return r.record(v) }
func (r *recordingApplier) Visible(v *Visible) error         { return r.record(v) }

func (r *recordingApplier) snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func startServer(t *testing.T, options ...ServerBuilderOption) (*Server, string) {
	t.Helper()
	srv := NewServer(options...)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func connect(t *testing.T, url string, a Applier) *Client {
	t.Helper()
	c := NewClient(url, a, WithDialRetries(3, 10*time.Millisecond))
	require.NoError(t, c.Connect(context.Background()))
	return c
}

func TestStreamDeliversSnapshotThenBroadcasts(t *testing.T) {
	srv, url := startServer(t, WithSnapshot(func() []Message {
		return []Message{&Place{Model: "Rock", ID: 1, Scale: mgl32.Vec3{1, 1, 1}}}
	}))
	rec := &recordingApplier{}
	c := connect(t, url, rec)
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, srv.Broadcast(&Remove{Model: "Rock", ID: 1}))
	srv.Broadcast(&ViewChanged{Eye: mgl32.Vec3{0, 5, 0}})
	srv.Broadcast(&Visible{Refs: []Ref{{Model: "Rock", ID: 2}}})

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	got := rec.snapshot()
	assert.Equal(t, []Kind{KindPlace, KindRemove, KindViewChanged, KindVisible},
		[]Kind{got[0].Kind(), got[1].Kind(), got[2].Kind(), got[3].Kind()})
	assert.Equal(t, uint64(4), c.LastSeq())
	assert.Equal(t, uint64(4), c.Applied())

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return srv.Clients() == 0 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Close(), ErrClosed)
}

func TestClientCountsFailedMessages(t *testing.T) {
	srv, url := startServer(t)
	rec := &recordingApplier{}
	c := connect(t, url, rec)
	t.Cleanup(func() { c.Close() })
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, 5*time.Millisecond)

	srv.Broadcast(&Place{Model: "Bad", ID: 1})
	srv.Broadcast(&Place{Model: "Boom", ID: 2})
	srv.Broadcast(&Place{Model: "Rock", ID: 3})

	require.Eventually(t, func() bool { return c.Applied() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), c.Failed())
}

func TestClientReadLoopEndsWhenServerCloses(t *testing.T) {
	srv, url := startServer(t)
	c := connect(t, url, &recordingApplier{})
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, 5*time.Millisecond)

	srv.Close()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("read loop did not stop")
	}
}

func TestClientConnectGivesUp(t *testing.T) {
	ts := httptest.NewServer(NewServer())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	c := NewClient(url, &recordingApplier{}, WithDialRetries(2, time.Millisecond))
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c = NewClient(url, &recordingApplier{}, WithDialRetries(5, time.Second))
	assert.Error(t, c.Connect(ctx))
}

func TestSceneApplierDrivesScene(t *testing.T) {
	models := map[string]model.Model{
		"rock":  model.NewModel("Rock"),
		"glass": model.NewModel("Glass", model.WithBlendPass(true)),
	}
	src := loader.NewFuncLoader(func(name string) (model.Model, error) {
		if m, ok := models[strings.ToLower(name)]; ok {
			return m, nil
		}
		return nil, fmt.Errorf("no model %q", name)
	})
	s := scene.NewScene("world", src, scene.WithReclaimInterval(5*time.Millisecond))
	require.NoError(t, s.Initialize())
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	var eye mgl32.Vec3
	a := NewSceneApplier(s, func(e mgl32.Vec3) { eye = e })

	require.NoError(t, a.Place(&Place{Model: "Rock", ID: 1}))
	require.NoError(t, a.Place(&Place{Model: "Glass", ID: 2}))
	assert.ErrorIs(t, a.Place(&Place{Model: "Ghost", ID: 3}), loader.ErrModelUnavailable)
	assert.Equal(t, 2, s.RendererCount())
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, s.Renderer("Rock").Instance(1).Scale())

	require.NoError(t, a.Visible(&Visible{Refs: []Ref{{Model: "Rock", ID: 1}, {Model: "Glass", ID: 2}}}))
	assert.Equal(t, 2, s.VisibleCount())
	assert.Equal(t, []uint64{2}, s.SortedOrder())

	require.NoError(t, a.ViewChanged(&ViewChanged{Eye: mgl32.Vec3{0, 9, 0}}))
	assert.Equal(t, 0, s.VisibleCount())
	assert.True(t, s.View().Dirty())
	assert.Equal(t, mgl32.Vec3{0, 9, 0}, eye)

	require.NoError(t, a.Remove(&Remove{Hash: uint64(model.HashName("glass")), ID: 2}))
	require.NoError(t, a.Remove(&Remove{Model: "Rock", ID: 1}))
	assert.Equal(t, 0, s.RendererCount())
}
