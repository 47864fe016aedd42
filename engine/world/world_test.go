package world

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "saves", "world.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeedAppendsAfterHighestID(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first, err := s.Seed(ctx, SeedConfig{Count: 600, Models: []string{"Rock", "Glass"}, Extent: 100, Seed: 1})
	require.NoError(t, err)
	require.Len(t, first, 600)
	assert.Equal(t, uint64(1), first[0].ID)

	second, err := s.Seed(ctx, SeedConfig{Count: 10, Models: []string{"Bird"}, Extent: 100, Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(601), second[0].ID)
	assert.Equal(t, "Bird", second[9].Model)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 610, n)

	for _, p := range first {
		assert.LessOrEqual(t, p.X, float32(100))
		assert.GreaterOrEqual(t, p.Z, float32(-100))
		assert.Contains(t, []string{"Rock", "Glass"}, p.Model)
	}
}

func TestSeedIsReproducible(t *testing.T) {
	ctx := context.Background()
	a, err := openStore(t).Seed(ctx, SeedConfig{Count: 20, Models: []string{"Rock", "Glass"}, Extent: 50, Seed: 7})
	require.NoError(t, err)
	b, err := openStore(t).Seed(ctx, SeedConfig{Count: 20, Models: []string{"Rock", "Glass"}, Extent: 50, Seed: 7})
	require.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].Model, b[i].Model)
		assert.Equal(t, a[i].Position(), b[i].Position())
	}
}

func TestSeedRequiresModels(t *testing.T) {
	_, err := openStore(t).Seed(context.Background(), SeedConfig{Count: 1})
	assert.ErrorIs(t, err, ErrNoModels)
}

func TestWithinFiltersByGroundDistance(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for _, p := range []Placement{
		{ID: 1, Model: "Rock", X: 0, Z: 0, Scale: 1},
		{ID: 2, Model: "Rock", X: 3, Y: 50, Z: 4, Scale: 1},
		{ID: 3, Model: "Glass", X: 4, Z: 4, Scale: 1},
		{ID: 4, Model: "Glass", X: -20, Z: 0, Scale: 1},
	} {
		require.NoError(t, s.Put(ctx, p))
	}

	got, err := s.Within(ctx, mgl32.Vec3{0, 100, 0}, 5)
	require.NoError(t, err)
	ids := make([]uint64, len(got))
	for i, p := range got {
		ids[i] = p.ID
	}
	// (4,4) lies inside the bounding box but outside the circle.
	assert.Equal(t, []uint64{1, 2}, ids)

	require.NoError(t, s.Delete(ctx, 2))
	require.NoError(t, s.Delete(ctx, 99))
	got, err = s.Within(ctx, mgl32.Vec3{}, 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPlacementVectors(t *testing.T) {
	p := Placement{X: 1, Y: 2, Z: 3, Yaw: 0.5, Scale: 2}
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, p.Position())
	assert.Equal(t, mgl32.Vec3{0, 0.5, 0}, p.Rotation())
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, p.ScaleVec())
}
