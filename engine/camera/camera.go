package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera holds perspective settings and computes view and projection matrices
// from an attached CameraController each Update. Projections target the [0, 1]
// clip depth range used by WebGPU.
type Camera interface {
	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// SetAspect sets the aspect ratio and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetFov sets the vertical field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// Controller returns the attached controller or nil.
	Controller() CameraController

	// SetController attaches a controller.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// Update reads eye and target from the controller and recomputes the
	// matrices. It does nothing without a controller.
	Update()

	// Eye returns the eye position captured by the last Update.
	Eye() mgl32.Vec3

	// ViewMatrix returns the current view matrix.
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix.
	ProjectionMatrix() mgl32.Mat4

	// ViewProjection returns projection * view.
	ViewProjection() mgl32.Mat4

	// Frustum returns the clip planes of the current view-projection.
	Frustum() common.Frustum

	// Ray casts a world-space ray through a window pixel.
	//
	// Parameters:
	//   - x, y: cursor position in pixels, origin top-left
	//   - width, height: window size in pixels
	//
	// Returns:
	//   - origin: point on the near plane
	//   - direction: normalized ray direction
	Ray(x, y, width, height float32) (origin, direction mgl32.Vec3)

	// Uniform returns the GPU uniform for the current state.
	Uniform() GPUCameraUniform
}

type camera struct {
	mu sync.Mutex

	up     mgl32.Vec3
	fov    float32
	aspect float32
	near   float32
	far    float32

	eye            mgl32.Vec3
	view           mgl32.Mat4
	projection     mgl32.Mat4
	viewProjection mgl32.Mat4
	inverseVP      mgl32.Mat4

	controller CameraController
}

var _ Camera = &camera{}

// NewCamera creates a camera with a 45 degree field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &camera{
		up:     mgl32.Vec3{0, 1, 0},
		fov:    45 * math.Pi / 180,
		aspect: 1,
		near:   0.1,
		far:    5000,
		view:   mgl32.Ident4(),
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *camera) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *camera) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *camera) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *camera) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *camera) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *camera) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *camera) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *camera) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *camera) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.updateMatrices()
}

func (c *camera) Eye() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *camera) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *camera) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *camera) ViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjection
}

func (c *camera) Frustum() common.Frustum {
	return common.ExtractFrustum(c.ViewProjection())
}

func (c *camera) Ray(x, y, width, height float32) (origin, direction mgl32.Vec3) {
	c.mu.Lock()
	inv := c.inverseVP
	c.mu.Unlock()

	if width <= 0 || height <= 0 {
		return c.Eye(), mgl32.Vec3{0, 0, -1}
	}
	ndcX := 2*x/width - 1
	ndcY := 1 - 2*y/height

	near := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, 0, 1})
	far := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})
	origin = near.Vec3().Mul(1 / near.W())
	end := far.Vec3().Mul(1 / far.W())
	return origin, end.Sub(origin).Normalize()
}

func (c *camera) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUCameraUniform{ViewProj: c.viewProjection, CameraPosition: c.eye}
}

// updateMatrices recomputes every cached matrix. Caller holds mu.
func (c *camera) updateMatrices() {
	if c.controller != nil {
		c.eye = c.controller.Position()
		target := c.controller.Target()
		c.view = mgl32.LookAtV(c.eye, target, c.up)
	}
	c.projection = common.ZeroToOneClip.Mul4(mgl32.Perspective(c.fov, c.aspect, c.near, c.far))
	c.viewProjection = c.projection.Mul4(c.view)
	c.inverseVP = c.viewProjection.Inv()
}
