package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/stream"
	"github.com/Carmen-Shannon/oxy-instances/engine/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	sent []stream.Message
}

func (r *recordingBroadcaster) Broadcast(m stream.Message) int {
	r.sent = append(r.sent, m)
	return 1
}

func (r *recordingBroadcaster) take() []stream.Message {
	out := r.sent
	r.sent = nil
	return out
}

func TestSimulatorStreamsDifferences(t *testing.T) {
	ctx := context.Background()
	store, err := world.Open(filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for _, p := range []world.Placement{
		{ID: 1, Model: "Rock", Scale: 1},
		{ID: 2, Model: "Glass", X: 100, Scale: 1},
		{ID: 3, Model: "Tree", X: 500, Scale: 1},
	} {
		require.NoError(t, store.Put(ctx, p))
	}

	out := &recordingBroadcaster{}
	sim := newSimulator(store, out, 80, 0, 0, common.Logger())

	require.NoError(t, sim.step(ctx, 0.1))
	sent := out.take()
	require.Len(t, sent, 4)
	assert.Equal(t, uint64(1), sent[0].(*stream.Place).ID)
	assert.Equal(t, uint64(2), sent[1].(*stream.Place).ID)
	assert.Equal(t, stream.KindViewChanged, sent[2].Kind())
	assert.Equal(t, []stream.Ref{{Model: "Rock", ID: 1}}, sent[3].(*stream.Visible).Refs)

	// Nothing moved: only the view and visible set are resent.
	require.NoError(t, sim.step(ctx, 0.1))
	assert.Len(t, out.take(), 2)

	require.NoError(t, store.Delete(ctx, 2))
	require.NoError(t, sim.step(ctx, 0.1))
	sent = out.take()
	require.Len(t, sent, 3)
	assert.Equal(t, &stream.Remove{Model: "Glass", ID: 2}, sent[0])

	snap := sim.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, uint64(1), snap[0].(*stream.Place).ID)
	assert.Equal(t, stream.KindVisible, snap[2].Kind())
}

func TestSimulatorOrbitsViewer(t *testing.T) {
	sim := newSimulator(nil, &recordingBroadcaster{}, 10, 100, 1, common.Logger())
	assert.InDelta(t, 100, sim.eye().X(), 1e-4)

	sim.angle = 3.14159265 / 2
	eye := sim.eye()
	assert.InDelta(t, 0, eye.X(), 1e-3)
	assert.InDelta(t, 100, eye.Z(), 1e-3)
	assert.Equal(t, float32(eyeHeight), eye.Y())
	assert.Empty(t, sim.Snapshot())
}
