package device

import (
	"time"

	"github.com/cogentcore/webgpu/wgpu"
)

// DeviceBuilderOption configures a Device before its GPU resources are created.
type DeviceBuilderOption func(*backendConfig)

// WithPresentMode sets how frames are presented.
//
// Parameters:
//   - mode: PresentModeVSync or PresentModeUncapped
//
// Returns:
//   - DeviceBuilderOption: a function that applies the present mode
func WithPresentMode(mode PresentMode) DeviceBuilderOption {
	return func(c *backendConfig) {
		c.presentMode = mode
	}
}

// WithMSAA sets the multisample count of the color and depth attachments.
//
// Parameters:
//   - samples: MSAAOff or MSAA4x
//
// Returns:
//   - DeviceBuilderOption: a function that applies the sample count
func WithMSAA(samples MSAASampleCount) DeviceBuilderOption {
	return func(c *backendConfig) {
		c.sampleCount = samples
	}
}

// WithForceSoftwareRenderer requests the fallback (CPU) adapter.
func WithForceSoftwareRenderer(force bool) DeviceBuilderOption {
	return func(c *backendConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithClearColor sets the color the frame is cleared to.
func WithClearColor(r, g, b float64) DeviceBuilderOption {
	return func(c *backendConfig) {
		c.clearColor = wgpu.Color{R: r, G: g, B: b, A: 1}
	}
}

// WithClock replaces the time source driving per-instance animation.
func WithClock(now func() time.Time) DeviceBuilderOption {
	return func(c *backendConfig) {
		c.clock = now
	}
}
