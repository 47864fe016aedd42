package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlManifest = `
[[model]]
name = "World\\Tree01.m2"
shape = "pyramid"
color = [0.2, 0.6, 0.2]

[[model]]
name = "Glass.m2"
shape = "quad"
blend = true
color = [0.5, 0.7, 1.0, 0.4]

[[model]]
name = "Bird.m2"
animated = true
radius = 2.5
`

const yamlManifest = `
models:
  - name: Lamp.m2
    shape: cube
    blend: true
  - name: Crate.m2
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestManifestLoaderTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "models.toml", tomlManifest)
	l, err := NewManifestLoader(path)
	require.NoError(t, err)

	tree, err := l.Load(`WORLD\TREE01.M2`)
	require.NoError(t, err)
	assert.Equal(t, `WORLD\TREE01.M2`, tree.Name())
	assert.False(t, tree.HasBlendPass())
	assert.Len(t, tree.Mesh().Vertices, 5)
	assert.Equal(t, float32(1), tree.Color()[3])

	glass, err := l.Load("glass.m2")
	require.NoError(t, err)
	assert.True(t, glass.HasBlendPass())
	assert.Equal(t, float32(0.4), glass.Color()[3])

	bird, err := l.Load("Bird.m2")
	require.NoError(t, err)
	assert.True(t, bird.NeedsPerInstanceAnimation())
	assert.Equal(t, float32(2.5), bird.BoundingRadius())
}

func TestManifestLoaderYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "models.yaml", yamlManifest)
	l, err := NewManifestLoader(path)
	require.NoError(t, err)

	lamp, err := l.Load("lamp.m2")
	require.NoError(t, err)
	assert.True(t, lamp.HasBlendPass())

	crate, err := l.Load("CRATE.M2")
	require.NoError(t, err)
	assert.Equal(t, 24, len(crate.Mesh().Vertices))
}

func TestLoadUnknownModelIsUnavailable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "models.toml", tomlManifest)
	l, err := NewManifestLoader(path)
	require.NoError(t, err)

	m, err := l.Load("missing.m2")
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Nil(t, l.Get("missing.m2"))
}

func TestParseManifestRejectsBadInput(t *testing.T) {
	_, err := ParseManifest("m.json", []byte("{}"))
	assert.Error(t, err)

	_, err = ParseManifest("m.toml", []byte("[[model]]\nshape = \"cube\"\n"))
	assert.ErrorContains(t, err, "no name")

	_, err = ParseManifest("m.toml", []byte("[[model]]\nname = \"a\"\n[[model]]\nname = \"A\"\n"))
	assert.ErrorContains(t, err, "duplicates")

	_, err = ParseManifest("m.yaml", []byte("models:\n  - name: a\n    wings: 2\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestBadColorIsUnavailable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "models.toml", "[[model]]\nname = \"odd\"\ncolor = [1.0, 0.0]\n")
	l, err := NewManifestLoader(path)
	require.NoError(t, err)

	_, err = l.Load("odd")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestNewManifestLoaderMissingFile(t *testing.T) {
	_, err := NewManifestLoader(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestFuncLoaderCachesAndRecovers(t *testing.T) {
	var calls atomic.Int32
	l := NewFuncLoader(func(name string) (model.Model, error) {
		calls.Add(1)
		switch name {
		case "boom":
			panic("corrupt header")
		case "nil":
			return nil, nil
		case "broken":
			return nil, errors.New("truncated file")
		}
		return model.NewModel(name), nil
	})

	a, err := l.Load("rock")
	require.NoError(t, err)
	b, err := l.Load("ROCK")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), calls.Load())

	_, err = l.Load("boom")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorContains(t, err, "corrupt header")

	_, err = l.Load("nil")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = l.Load("broken")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorContains(t, err, "truncated file")

	assert.ErrorIs(t, l.Reload(), ErrNoSource)
	assert.ErrorIs(t, l.Watch(context.Background()), ErrNoSource)
}

func TestWithModelSeedsCache(t *testing.T) {
	seeded := model.NewModel("Seeded.m2")
	l := NewFuncLoader(func(string) (model.Model, error) {
		return nil, errors.New("should not be called")
	}, WithModel(seeded))

	got, err := l.Load("seeded.M2")
	require.NoError(t, err)
	assert.Same(t, seeded, got)
}

func TestPreload(t *testing.T) {
	var calls atomic.Int32
	l := NewFuncLoader(func(name string) (model.Model, error) {
		calls.Add(1)
		if name == "bad" {
			return nil, errors.New("nope")
		}
		return model.NewModel(name), nil
	}, WithPreloadWorkers(3))

	err := l.Preload("a", "b", "c", "bad", "d")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, int32(5), calls.Load())
	for _, n := range []string{"a", "b", "c", "d"} {
		assert.NotNil(t, l.Get(n), n)
	}
	assert.NoError(t, l.Preload())
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "models.toml", "[[model]]\nname = \"a\"\n")

	var reloads atomic.Int32
	l, err := NewManifestLoader(path, WithReloadCallback(func() { reloads.Add(1) }))
	require.NoError(t, err)

	first, err := l.Load("a")
	require.NoError(t, err)
	_, err = l.Load("b")
	require.ErrorIs(t, err, ErrModelUnavailable)

	writeFile(t, dir, "models.toml", "[[model]]\nname = \"a\"\nblend = true\n[[model]]\nname = \"b\"\n")
	require.NoError(t, l.Reload())
	assert.Equal(t, int32(1), reloads.Load())

	second, err := l.Load("a")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, second.HasBlendPass())
	assert.False(t, first.HasBlendPass(), "models already handed out keep their definition")

	_, err = l.Load("b")
	assert.NoError(t, err)

	writeFile(t, dir, "models.toml", "not toml [")
	assert.Error(t, l.Reload())
	_, err = l.Load("b")
	assert.NoError(t, err, "a failed reload keeps the previous definitions")
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "models.yaml", "models:\n  - name: a\n")
	l, err := NewManifestLoader(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Watch(ctx))

	writeFile(t, dir, "models.yaml", "models:\n  - name: a\n  - name: b\n")

	require.Eventually(t, func() bool {
		_, err := l.Load("b")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}
