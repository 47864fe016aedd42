package device

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/camera"
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// SurfaceSource is the window-side half of surface creation.
type SurfaceSource interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// Device owns the GPU and is the renderer.DrawBackend every model renderer
// draws through. A frame is BeginFrame, any number of draws, EndFrame, Present.
type Device interface {
	renderer.DrawBackend

	// Resize reconfigures the surface. Zero sizes (minimized windows) are ignored.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	//
	// Returns:
	//   - error: error if the size-dependent attachments could not be recreated
	Resize(width, height int) error

	// SetCamera uploads the camera uniform used by every pipeline.
	//
	// Parameters:
	//   - uniform: the packed view-projection and eye position
	SetCamera(uniform camera.GPUCameraUniform)

	// BeginFrame acquires the next surface texture and opens draw recording.
	//
	// Returns:
	//   - error: error if no surface texture is available
	BeginFrame() error

	// EndFrame encodes and submits every draw recorded since BeginFrame.
	// Draws of models with unusable geometry are skipped and reported.
	//
	// Returns:
	//   - error: error if the frame could not be submitted, or the joined draw errors
	EndFrame() error

	// Present shows the submitted frame.
	Present()

	// Frames returns the number of submitted frames.
	Frames() uint64

	// Destroy releases every GPU resource. The device is unusable afterwards.
	Destroy()
}

// frameBackend is the GPU-facing part of a Device.
type frameBackend interface {
	renderer.DrawBackend
	Resize(width, height int) error
	SetCamera(uniform camera.GPUCameraUniform)
	BeginFrame() error
	EndFrame() (int, error)
	Present()
	Destroy()
}

type device struct {
	backend frameBackend
	frames  atomic.Uint64
	log     *slog.Logger
}

var _ Device = &device{}

// NewDevice creates a WebGPU device rendering into the surface of the given window.
//
// Parameters:
//   - surface: the window providing the surface descriptor and initial size
//   - options: functional options for present mode, MSAA, adapter and clear color
//
// Returns:
//   - Device: the ready device
//   - error: error if no adapter or device could be obtained
func NewDevice(surface SurfaceSource, options ...DeviceBuilderOption) (Device, error) {
	cfg := backendConfig{
		presentMode: PresentModeVSync,
		sampleCount: MSAA4x,
		clearColor:  wgpu.Color{R: 0.08, G: 0.09, B: 0.11, A: 1},
		clock:       time.Now,
	}
	for _, opt := range options {
		opt(&cfg)
	}

	backend, err := newWGPUBackend(surface.SurfaceDescriptor(), surface.Width(), surface.Height(), cfg)
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}

	d := newDevice(backend)
	d.log.Info("device ready", "width", surface.Width(), "height", surface.Height(), "msaa", uint32(cfg.sampleCount))
	return d, nil
}

func newDevice(backend frameBackend) *device {
	return &device{
		backend: backend,
		log:     common.ComponentLogger("device"),
	}
}

func (d *device) BeginBatchDraw()  { d.backend.BeginBatchDraw() }
func (d *device) BeginSingleDraw() { d.backend.BeginSingleDraw() }

func (d *device) DrawBatch(m model.Model, instances []*renderer.Instance) error {
	return d.backend.DrawBatch(m, instances)
}

func (d *device) DrawInstance(m model.Model, inst *renderer.Instance) error {
	return d.backend.DrawInstance(m, inst)
}

func (d *device) Release(m model.Model) error {
	if err := d.backend.Release(m); err != nil {
		return fmt.Errorf("device: release %q: %w", m.Name(), err)
	}
	d.log.Debug("released model buffers", "model", m.Name())
	return nil
}

func (d *device) Resize(width, height int) error {
	if err := d.backend.Resize(width, height); err != nil {
		return err
	}
	d.log.Debug("surface resized", "width", width, "height", height)
	return nil
}

func (d *device) SetCamera(uniform camera.GPUCameraUniform) { d.backend.SetCamera(uniform) }
func (d *device) BeginFrame() error                         { return d.backend.BeginFrame() }

func (d *device) EndFrame() error {
	draws, err := d.backend.EndFrame()
	if draws > 0 || err == nil {
		d.frames.Add(1)
	}
	if err != nil {
		d.log.Debug("frame finished with errors", "draws", draws, "error", err)
	}
	return err
}

func (d *device) Present()       { d.backend.Present() }
func (d *device) Frames() uint64 { return d.frames.Load() }

func (d *device) Destroy() {
	d.backend.Destroy()
	d.log.Info("device destroyed", "frames", d.frames.Load())
}
