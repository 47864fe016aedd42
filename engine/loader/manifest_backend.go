package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Manifest lists the models a manifest backend can build.
// TOML files use [[model]] tables, YAML files a top-level "models" list.
type Manifest struct {
	Models []ManifestEntry `toml:"model" yaml:"models"`
}

// ManifestEntry describes one model.
type ManifestEntry struct {
	Name     string    `toml:"name" yaml:"name"`
	Shape    string    `toml:"shape" yaml:"shape"`
	Blend    bool      `toml:"blend" yaml:"blend"`
	Animated bool      `toml:"animated" yaml:"animated"`
	Radius   float32   `toml:"radius" yaml:"radius"`
	Color    []float32 `toml:"color" yaml:"color"`
}

// ParseManifest decodes manifest bytes. The format is chosen from the file
// extension: .toml, .yaml or .yml.
//
// Parameters:
//   - path: file name used to pick the format
//   - data: the manifest contents
//
// Returns:
//   - *Manifest: the decoded manifest
//   - error: error if the extension is unsupported or decoding fails
func ParseManifest(path string, data []byte) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("loader: decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("loader: decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("loader: unsupported manifest format %q", filepath.Ext(path))
	}

	seen := make(map[model.Hash]string, len(m.Models))
	for i, e := range m.Models {
		if e.Name == "" {
			return nil, fmt.Errorf("loader: %s: model %d has no name", path, i)
		}
		h := model.HashName(e.Name)
		if prev, dup := seen[h]; dup {
			return nil, fmt.Errorf("loader: %s: %q duplicates %q", path, e.Name, prev)
		}
		seen[h] = e.Name
	}
	return &m, nil
}

// Build turns the entry into a model named after the requested name.
//
// Parameters:
//   - name: the name the caller asked for, kept as the model name
//
// Returns:
//   - model.Model: the model
//   - error: wraps ErrModelUnavailable if the color is malformed
func (e ManifestEntry) Build(name string) (model.Model, error) {
	opts := []model.ModelBuilderOption{
		model.WithBlendPass(e.Blend),
		model.WithPerInstanceAnimation(e.Animated),
	}
	switch len(e.Color) {
	case 0:
	case 3:
		opts = append(opts, model.WithColor([4]float32{e.Color[0], e.Color[1], e.Color[2], 1}))
	case 4:
		opts = append(opts, model.WithColor([4]float32(e.Color)))
	default:
		return nil, fmt.Errorf("%w: %q color needs 3 or 4 components, got %d", ErrModelUnavailable, e.Name, len(e.Color))
	}
	opts = append(opts, model.WithShape(model.Shape(strings.ToLower(e.Shape))))
	if e.Radius > 0 {
		opts = append(opts, model.WithBoundingRadius(e.Radius))
	}
	return model.NewModel(name, opts...), nil
}

// manifestLoaderBackend builds models from a manifest file.
type manifestLoaderBackend struct {
	mu      sync.RWMutex
	path    string
	entries map[model.Hash]ManifestEntry
}

func newManifestLoaderBackend(path string) (*manifestLoaderBackend, error) {
	b := &manifestLoaderBackend{path: path}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *manifestLoaderBackend) Load(name string) (model.Model, error) {
	b.mu.RLock()
	entry, ok := b.entries[model.HashName(name)]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q not in %s", ErrModelUnavailable, name, b.path)
	}
	return entry.Build(name)
}

func (b *manifestLoaderBackend) Reload() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("loader: read manifest: %w", err)
	}
	m, err := ParseManifest(b.path, data)
	if err != nil {
		return err
	}

	entries := make(map[model.Hash]ManifestEntry, len(m.Models))
	for _, e := range m.Models {
		entries[model.HashName(e.Name)] = e
	}

	b.mu.Lock()
	b.entries = entries
	b.mu.Unlock()
	return nil
}

func (b *manifestLoaderBackend) Source() string {
	return b.path
}
