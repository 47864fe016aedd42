package engine

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/camera"
	"github.com/Carmen-Shannon/oxy-instances/engine/device"
	"github.com/Carmen-Shannon/oxy-instances/engine/profiler"
	"github.com/Carmen-Shannon/oxy-instances/engine/scene"
	"github.com/Carmen-Shannon/oxy-instances/engine/window"
)

// engine coordinates the tick, render and window threads.
type engine struct {
	tickRateChannel chan time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window window.Window
	device device.Device
	camera camera.Camera

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scenesMu sync.RWMutex
	scenes   map[int]scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	log              *slog.Logger
}

// Engine drives the scenes: a fixed-rate tick goroutine refreshes the camera
// and instance depths, a render goroutine runs every active scene's frame
// inside one device frame, and the window loop runs on the main thread.
type Engine interface {
	// Window returns the window, or nil when running headless.
	Window() window.Window

	// Device returns the GPU device, or nil when running headless.
	Device() device.Device

	// Camera returns the camera, or nil if none was configured.
	Camera() camera.Camera

	// EnableProfiler enables periodic frame statistics in the log.
	EnableProfiler()

	// DisableProfiler disables periodic frame statistics.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, after
	// the camera and depths have been updated. Set before Run.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each render frame. Set before Run.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap. Set before Run.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are rendered in ascending key order within one device frame.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	Scenes() map[int]scene.Scene

	// Run starts the engine goroutines and, with a window, runs the window
	// loop on the calling goroutine. Blocks until the engine quits.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()

	// Done is closed once Quit has been signalled.
	Done() <-chan struct{}
}

// NewEngine creates an Engine. Without WithWindow and WithDevice it runs
// headless: frames still run every scene's OnFrame through its own backend.
//
// Parameters:
//   - options: functional options for window, device, camera, scenes and rates
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		engineTickRate:  time.Second / 60,
		log:             common.ComponentLogger("engine"),
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}

	return e
}

func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if e.device != nil {
		if err := e.device.Resize(width, height); err != nil {
			e.log.Error("resize failed", "width", width, "height", height, "error", err)
		}
	}
	if e.camera != nil {
		e.camera.SetAspect(float32(width) / float32(height))
	}
}

func (e *engine) Window() window.Window { return e.window }
func (e *engine) Device() device.Device { return e.device }
func (e *engine) Camera() camera.Camera { return e.camera }

func (e *engine) Run() {
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) Done() <-chan struct{} {
	return e.quitChannel
}

// signalQuit closes the quit channel exactly once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the tick, render and quit goroutines.
func (e *engine) handle() {
	e.running.Store(true)
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate tick loop: camera update, depth refresh of
// every visible instance, then the tick callback.
func (e *engine) handleEngine() {
	defer e.wg.Done()
	defer e.recoverLoop("tick")

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.camera != nil {
				e.camera.Update()
				eye := e.camera.Eye()
				for _, s := range e.activeScenes() {
					s.UpdateDepths(eye)
				}
			}

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop until quit.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer e.recoverLoop("render")

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		frameStart := time.Now()
		dt := float32(frameStart.Sub(lastRender).Seconds())
		lastRender = frameStart

		e.renderFrame()

		if e.renderCallback != nil {
			e.renderCallback(dt)
		}
		if e.profilingEnabled.Load() {
			e.profiler.Tick()
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
				time.Sleep(remaining)
			}
		} else if e.device == nil {
			// Headless frames have no present to pace them.
			time.Sleep(time.Millisecond)
		}
	}
}

// renderFrame runs one device frame around the OnFrame of every active scene.
func (e *engine) renderFrame() {
	scenes := e.activeScenes()

	if e.device != nil {
		if e.camera != nil {
			e.device.SetCamera(e.camera.Uniform())
		}
		if err := e.device.BeginFrame(); err != nil {
			e.log.Debug("frame skipped", "error", err)
			return
		}
	}

	for _, s := range scenes {
		stats, err := s.OnFrame()
		if err != nil {
			e.log.Debug("scene frame had draw errors", "scene", s.Name(), "errors", stats.Errors, "error", err)
		}
		if e.profilingEnabled.Load() {
			e.profiler.Record(stats)
		}
	}

	if e.device != nil {
		if err := e.device.EndFrame(); err != nil {
			e.log.Debug("frame submitted with errors", "error", err)
		}
		e.device.Present()
	}
}

// recoverLoop logs a panic in an engine goroutine and shuts the engine down.
func (e *engine) recoverLoop(loop string) {
	if r := recover(); r != nil {
		e.log.Error("engine goroutine recovered from panic", "loop", loop, "panic", r)
		e.signalQuit()
	}
}

// handleQuit blocks until the quit channel is closed, then ends the window loop.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
	e.log.Info("engine stopping")
	if e.window != nil {
		e.window.RequestClose()
	}
}

func (e *engine) activeScenes() []scene.Scene {
	e.scenesMu.RLock()
	defer e.scenesMu.RUnlock()

	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	active := make([]scene.Scene, 0, len(keys))
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			active = append(active, s)
		}
	}
	return active
}

func (e *engine) EnableProfiler()  { e.profilingEnabled.Store(true) }
func (e *engine) DisableProfiler() { e.profilingEnabled.Store(false) }

// SetTickRate takes effect immediately when the engine is running.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}

	// Replace any pending, unapplied rate.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.scenesMu.RLock()
	defer e.scenesMu.RUnlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.scenesMu.RLock()
	defer e.scenesMu.RUnlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}
