package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/fsnotify/fsnotify"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu         sync.RWMutex
	modelCache map[model.Hash]model.Model
	backend    loaderBackend

	preloadWorkers int
	onReload       func()
	log            *slog.Logger
}

// Loader resolves model names to models and caches the results.
// Load never panics: any fault inside the backend is reported as ErrModelUnavailable.
// Thread-safe for concurrent access.
type Loader interface {
	// Load returns the model registered under name, building and caching it on
	// first use. Names are case-insensitive.
	//
	// Parameters:
	//   - name: the model name
	//
	// Returns:
	//   - model.Model: the model
	//   - error: wraps ErrModelUnavailable on any failure
	Load(name string) (model.Model, error)

	// Get retrieves a cached model without loading it.
	//
	// Parameters:
	//   - name: the model name
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Preload loads every name concurrently to warm the cache.
	//
	// Parameters:
	//   - names: the models to load
	//
	// Returns:
	//   - error: every load failure, joined
	Preload(names ...string) error

	// Reload re-reads the backend source and empties the cache. Models already
	// handed out are unaffected.
	//
	// Returns:
	//   - error: error if the source could not be read
	Reload() error

	// Watch reloads whenever the backend's source file is written, until ctx is
	// cancelled. Returns immediately after the watcher is installed.
	//
	// Parameters:
	//   - ctx: bounds the lifetime of the watcher
	//
	// Returns:
	//   - error: ErrNoSource, or error if the watcher could not be installed
	Watch(ctx context.Context) error
}

var _ Loader = &loader{}

// NewManifestLoader creates a Loader backed by a TOML or YAML manifest file.
//
// Parameters:
//   - path: the manifest path
//   - options: functional options
//
// Returns:
//   - Loader: the loader
//   - error: error if the manifest cannot be read or decoded
func NewManifestLoader(path string, options ...LoaderBuilderOption) (Loader, error) {
	b, err := newManifestLoaderBackend(path)
	if err != nil {
		return nil, err
	}
	return newLoader(b, options...), nil
}

// NewFuncLoader creates a Loader that builds models with fn.
//
// Parameters:
//   - fn: called once per uncached name
//   - options: functional options
//
// Returns:
//   - Loader: the loader
func NewFuncLoader(fn func(name string) (model.Model, error), options ...LoaderBuilderOption) Loader {
	if fn == nil {
		panic("loader: NewFuncLoader requires a non-nil function")
	}
	return newLoader(funcLoaderBackend(fn), options...)
}

func newLoader(b loaderBackend, options ...LoaderBuilderOption) *loader {
	l := &loader{
		modelCache:     make(map[model.Hash]model.Model),
		backend:        b,
		preloadWorkers: 4,
		log:            common.ComponentLogger("loader"),
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(name string) (m model.Model, err error) {
	h := model.HashName(name)

	l.mu.RLock()
	if cached, ok := l.modelCache[h]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("%w: loading %q panicked: %v", ErrModelUnavailable, name, r)
			l.log.Warn("model load panicked", slog.String("model", name), slog.Any("panic", r))
		}
	}()

	m, err = l.backend.Load(name)
	if err != nil {
		if !errors.Is(err, ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: backend returned no model for %q", ErrModelUnavailable, name)
	}

	l.mu.Lock()
	if cached, ok := l.modelCache[h]; ok {
		m = cached
	} else {
		l.modelCache[h] = m
	}
	l.mu.Unlock()

	return m, nil
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[model.HashName(name)]
}

func (l *loader) Preload(names ...string) error {
	if len(names) == 0 {
		return nil
	}

	pool := worker.NewDynamicWorkerPool(min(l.preloadWorkers, len(names)), len(names), time.Second)
	defer pool.Stop()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i, name := range names {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: name,
			Do: func() (any, error) {
				defer wg.Done()
				m, err := l.Load(name)
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return m, err
			},
		})
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (l *loader) Reload() error {
	if err := l.backend.Reload(); err != nil {
		return err
	}

	l.mu.Lock()
	clear(l.modelCache)
	l.mu.Unlock()

	l.log.Info("models reloaded", slog.String("source", l.backend.Source()))
	if l.onReload != nil {
		l.onReload()
	}
	return nil
}

func (l *loader) Watch(ctx context.Context) error {
	src := l.backend.Source()
	if src == "" {
		return ErrNoSource
	}
	src = filepath.Clean(src)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("loader: create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(src)); err != nil {
		w.Close()
		return fmt.Errorf("loader: watch %s: %w", filepath.Dir(src), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != src || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if err := l.Reload(); err != nil {
					l.log.Warn("manifest reload failed", slog.String("source", src), slog.Any("error", err))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.log.Warn("manifest watcher error", slog.Any("error", err))
			}
		}
	}()

	return nil
}
