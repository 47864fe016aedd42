package common

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// The returned slice shares memory with the input and must not be modified.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// ModelMatrix composes translation * rotation(Z*Y*X, radians) * scale.
//
// Parameters:
//   - position: world translation
//   - rotation: Euler angles in radians
//   - scale: per-axis scale
//
// Returns:
//   - mgl32.Mat4: the column-major model matrix
func ModelMatrix(position, rotation, scale mgl32.Vec3) mgl32.Mat4 {
	t := mgl32.Translate3D(position.X(), position.Y(), position.Z())
	r := mgl32.HomogRotate3DZ(rotation.Z()).
		Mul4(mgl32.HomogRotate3DY(rotation.Y())).
		Mul4(mgl32.HomogRotate3DX(rotation.X()))
	s := mgl32.Scale3D(scale.X(), scale.Y(), scale.Z())
	return t.Mul4(r).Mul4(s)
}

// ZeroToOneClip converts an OpenGL-style projection (clip z in [-1, 1]) to the
// WebGPU convention (clip z in [0, 1]).
var ZeroToOneClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// RayPlaneY intersects a ray with the horizontal plane y = height.
//
// Parameters:
//   - origin: ray origin
//   - dir: ray direction, not necessarily normalized
//   - height: plane height
//
// Returns:
//   - mgl32.Vec3: the intersection point
//   - bool: false if the ray is parallel to or points away from the plane
func RayPlaneY(origin, dir mgl32.Vec3, height float32) (mgl32.Vec3, bool) {
	if mgl32.Abs(dir.Y()) < 1e-6 {
		return mgl32.Vec3{}, false
	}
	t := (height - origin.Y()) / dir.Y()
	if t < 0 {
		return mgl32.Vec3{}, false
	}
	return origin.Add(dir.Mul(t)), true
}
