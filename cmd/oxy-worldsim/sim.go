package main

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/engine/stream"
	"github.com/Carmen-Shannon/oxy-instances/engine/world"
	"github.com/go-gl/mathgl/mgl32"
)

// eyeHeight lifts the virtual viewer above the ground plane.
const eyeHeight = 30

type broadcaster interface {
	Broadcast(m stream.Message) int
}

// simulator circles a virtual viewer around the world, streaming placements
// as they enter and leave its load radius and the visible set each step.
type simulator struct {
	store       *world.Store
	out         broadcaster
	viewRadius  float32
	loadRadius  float32
	orbitRadius float32
	orbitSpeed  float32

	angle    float32
	streamed map[uint64]world.Placement
	snapshot atomic.Pointer[[]stream.Message]
	log      *slog.Logger
}

func newSimulator(store *world.Store, out broadcaster, viewRadius, orbitRadius, orbitSpeed float32, log *slog.Logger) *simulator {
	s := &simulator{
		store:       store,
		out:         out,
		viewRadius:  viewRadius,
		loadRadius:  viewRadius * 1.5,
		orbitRadius: orbitRadius,
		orbitSpeed:  orbitSpeed,
		streamed:    make(map[uint64]world.Placement),
		log:         log,
	}
	empty := []stream.Message{}
	s.snapshot.Store(&empty)
	return s
}

// Snapshot returns the messages that bring a new viewer up to date. It never
// blocks, so it is safe to call under the stream server's lock.
func (s *simulator) Snapshot() []stream.Message {
	return *s.snapshot.Load()
}

func (s *simulator) eye() mgl32.Vec3 {
	sin, cos := math.Sincos(float64(s.angle))
	return mgl32.Vec3{s.orbitRadius * float32(cos), eyeHeight, s.orbitRadius * float32(sin)}
}

// step advances the viewer by dt seconds and streams the difference.
// The new snapshot is published before the deltas go out; applying a
// message twice is harmless, so a viewer joining mid-step stays consistent.
func (s *simulator) step(ctx context.Context, dt float32) error {
	s.angle = float32(math.Mod(float64(s.angle+s.orbitSpeed*dt), 2*math.Pi))
	eye := s.eye()

	loaded, err := s.store.Within(ctx, eye, s.loadRadius)
	if err != nil {
		return err
	}

	inLoad := make(map[uint64]struct{}, len(loaded))
	var deltas []stream.Message
	for _, p := range loaded {
		inLoad[p.ID] = struct{}{}
		if _, ok := s.streamed[p.ID]; !ok {
			s.streamed[p.ID] = p
			deltas = append(deltas, place(p))
		}
	}
	for id, p := range s.streamed {
		if _, ok := inLoad[id]; !ok {
			delete(s.streamed, id)
			deltas = append(deltas, &stream.Remove{Model: p.Model, ID: id})
		}
	}

	view := &stream.ViewChanged{Eye: eye}
	visible := &stream.Visible{}
	r2 := s.viewRadius * s.viewRadius
	for _, p := range loaded {
		dx, dz := p.X-eye.X(), p.Z-eye.Z()
		if dx*dx+dz*dz <= r2 {
			visible.Refs = append(visible.Refs, stream.Ref{Model: p.Model, ID: p.ID})
		}
	}

	snapshot := make([]stream.Message, 0, len(s.streamed)+2)
	for _, id := range slices.Sorted(maps.Keys(s.streamed)) {
		snapshot = append(snapshot, place(s.streamed[id]))
	}
	snapshot = append(snapshot, view, visible)
	s.snapshot.Store(&snapshot)

	for _, m := range deltas {
		s.out.Broadcast(m)
	}
	s.out.Broadcast(view)
	viewers := s.out.Broadcast(visible)

	s.log.Debug("step", "loaded", len(loaded), "visible", len(visible.Refs), "deltas", len(deltas), "viewers", viewers)
	return nil
}

func (s *simulator) run(ctx context.Context, hz float64) error {
	interval := time.Duration(float64(time.Second) / max(hz, 0.1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := s.step(ctx, float32(now.Sub(last).Seconds())); err != nil {
				return err
			}
			last = now
		}
	}
}

func place(p world.Placement) *stream.Place {
	return &stream.Place{
		Model:    p.Model,
		ID:       p.ID,
		Position: p.Position(),
		Rotation: p.Rotation(),
		Scale:    p.ScaleVec(),
	}
}
