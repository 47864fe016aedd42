package common

// Key codes delivered by the window's key callbacks. Printable keys use their
// ASCII values, matching GLFW.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW      = 87
	KeyA      = 65
	KeyS      = 83
	KeyD      = 68
	KeyQ      = 81
	KeyE      = 69
	KeyH      = 72 // toggle brush highlighting
	KeyR      = 82 // force a view refresh
	KeySpace  = 32
	KeyEsc    = 256
	KeyMinus  = 45 // shrink brush
	KeyEqual  = 61 // grow brush
	KeyLShift = 340
)
