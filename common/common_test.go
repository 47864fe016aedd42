package common

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerDefaultsToSilent(t *testing.T) {
	l := Logger()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}

func TestSetLoggerRoundTrip(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ComponentLogger("scene").Info("hello")
	assert.Contains(t, buf.String(), "component=scene")

	SetLogger(nil)
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}

func TestModelMatrixTranslatesAndScales(t *testing.T) {
	m := ModelMatrix(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{}, mgl32.Vec3{2, 2, 2})
	p := m.Mul4x1(mgl32.Vec4{1, 1, 1, 1})
	assert.InDelta(t, 3, p.X(), 1e-5)
	assert.InDelta(t, 4, p.Y(), 1e-5)
	assert.InDelta(t, 5, p.Z(), 1e-5)
}

func TestRayPlaneY(t *testing.T) {
	hit, ok := RayPlaneY(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{1, -1, 0}, 0)
	require.True(t, ok)
	assert.InDelta(t, 10, hit.X(), 1e-5)
	assert.InDelta(t, 0, hit.Y(), 1e-5)

	_, ok = RayPlaneY(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{1, 0, 0}, 0)
	assert.False(t, ok)

	_, ok = RayPlaneY(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{0, 1, 0}, 0)
	assert.False(t, ok)
}

func TestFrustumContainsSphere(t *testing.T) {
	proj := ZeroToOneClip.Mul4(mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100))
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustum(proj.Mul4(view))

	assert.True(t, f.ContainsSphere(mgl32.Vec3{0, 0, -10}, 1))
	assert.False(t, f.ContainsSphere(mgl32.Vec3{0, 0, 10}, 1), "behind the viewer")
	assert.False(t, f.ContainsSphere(mgl32.Vec3{0, 0, -200}, 1), "beyond the far plane")
	assert.True(t, f.ContainsSphere(mgl32.Vec3{0, 0, -100.5}, 1), "straddles the far plane")
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32{}))
	assert.Len(t, SliceToBytes([]InstanceData{{}, {}}), 2*InstanceStride)
	assert.Len(t, SliceToBytes([]Vertex{{}}), VertexStride)
}
