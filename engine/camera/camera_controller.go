package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraController owns the camera's positional state. The camera reads the
// eye and target from it each Update. Orbit state is kept in spherical
// coordinates (radius, azimuth, elevation) around the target.
type CameraController interface {
	// Position returns the eye position in world space.
	Position() mgl32.Vec3

	// Target returns the look-at point.
	Target() mgl32.Vec3

	// SetTarget moves the pivot and recomputes the eye from the orbit state.
	//
	// Parameters:
	//   - target: world-space pivot
	SetTarget(target mgl32.Vec3)

	// Orbit rotates the eye around the target. Elevation is clamped to the
	// configured bounds.
	//
	// Parameters:
	//   - dAzimuth: horizontal rotation in radians
	//   - dElevation: vertical rotation in radians
	Orbit(dAzimuth, dElevation float32)

	// OrbitLeft rotates left by one orbit speed step.
	OrbitLeft()

	// OrbitRight rotates right by one orbit speed step.
	OrbitRight()

	// OrbitUp tilts up by one orbit speed step.
	OrbitUp()

	// OrbitDown tilts down by one orbit speed step.
	OrbitDown()

	// Drag orbits by a mouse delta scaled by the mouse sensitivity.
	//
	// Parameters:
	//   - dx, dy: cursor movement in pixels
	Drag(dx, dy float32)

	// Zoom moves the eye toward the target. Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// Pan slides the target and eye across the ground plane relative to the
	// current heading.
	//
	// Parameters:
	//   - right: movement along the camera's right axis
	//   - forward: movement along the camera's heading
	Pan(right, forward float32)

	// Radius returns the distance from eye to target.
	Radius() float32

	// Azimuth returns the horizontal angle in radians.
	Azimuth() float32

	// Elevation returns the vertical angle in radians.
	Elevation() float32
}

type cameraController struct {
	mu sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
}

var _ CameraController = &cameraController{}

// NewCameraController creates an orbit controller looking at the origin from
// a raised, slightly distant position.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraController{
		radius:    120,
		elevation: math.Pi / 5,

		minRadius:    5,
		maxRadius:    2000,
		minElevation: 0.05,
		maxElevation: math.Pi/2 - 0.05,

		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        8,
		panSpeed:         1,
	}
	for _, option := range options {
		option(cc)
	}
	cc.radius = mgl32.Clamp(cc.radius, cc.minRadius, cc.maxRadius)
	cc.elevation = mgl32.Clamp(cc.elevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
	return cc
}

// updatePosition recomputes the eye from the spherical state. Caller holds mu.
func (cc *cameraController) updatePosition() {
	sinE, cosE := math.Sincos(float64(cc.elevation))
	sinA, cosA := math.Sincos(float64(cc.azimuth))
	cc.position = cc.target.Add(mgl32.Vec3{
		cc.radius * float32(cosE*sinA),
		cc.radius * float32(sinE),
		cc.radius * float32(cosE*cosA),
	})
}

func (cc *cameraController) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraController) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraController) SetTarget(target mgl32.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
	cc.updatePosition()
}

func (cc *cameraController) Orbit(dAzimuth, dElevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += dAzimuth
	cc.elevation = mgl32.Clamp(cc.elevation+dElevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
}

func (cc *cameraController) OrbitLeft()  { cc.Orbit(-cc.orbitSpeed, 0) }
func (cc *cameraController) OrbitRight() { cc.Orbit(cc.orbitSpeed, 0) }
func (cc *cameraController) OrbitUp()    { cc.Orbit(0, cc.orbitSpeed) }
func (cc *cameraController) OrbitDown()  { cc.Orbit(0, -cc.orbitSpeed) }

func (cc *cameraController) Drag(dx, dy float32) {
	cc.Orbit(-dx*cc.mouseSensitivity, dy*cc.mouseSensitivity)
}

func (cc *cameraController) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = mgl32.Clamp(cc.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *cameraController) Pan(right, forward float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	// Heading on the ground plane points from the eye toward the target.
	sinA, cosA := math.Sincos(float64(cc.azimuth))
	fwd := mgl32.Vec3{-float32(sinA), 0, -float32(cosA)}
	rgt := mgl32.Vec3{float32(cosA), 0, -float32(sinA)}

	// Scale with distance so panning feels the same at every zoom level.
	step := cc.panSpeed * cc.radius / 100
	offset := rgt.Mul(right * step).Add(fwd.Mul(forward * step))
	cc.target = cc.target.Add(offset)
	cc.position = cc.position.Add(offset)
}

func (cc *cameraController) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *cameraController) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *cameraController) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}
