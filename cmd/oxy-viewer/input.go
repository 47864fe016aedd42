package main

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/camera"
	"github.com/Carmen-Shannon/oxy-instances/engine/editing"
	"github.com/Carmen-Shannon/oxy-instances/engine/scene"
	"github.com/Carmen-Shannon/oxy-instances/engine/window"
)

const (
	shutdownTimeout = 5 * time.Second
	dialBackoff     = 2 * time.Second
	brushStep       = 1
)

// setupInput wires the camera and brush to the window:
//   - WASD pans, Q/E orbit, scroll zooms, right or middle drag orbits
//   - the cursor moves the brush; H toggles highlighting, -/= resize it
//   - R forces a view refresh
func setupInput(win window.Window, cam camera.Camera, brush *editing.State, sc scene.Scene) {
	var (
		mu       sync.Mutex
		dragging bool
		lastX    int32
		lastY    int32
	)
	ctrl := cam.Controller()

	win.SetKeyDownCallback(func(key uint32) {
		switch key {
		case common.KeyW:
			ctrl.Pan(0, 1)
		case common.KeyS:
			ctrl.Pan(0, -1)
		case common.KeyA:
			ctrl.Pan(-1, 0)
		case common.KeyD:
			ctrl.Pan(1, 0)
		case common.KeyQ:
			ctrl.OrbitLeft()
		case common.KeyE:
			ctrl.OrbitRight()
		case common.KeyH:
			brush.Toggle()
		case common.KeyMinus:
			brush.Resize(-brushStep)
		case common.KeyEqual:
			brush.Resize(brushStep)
		case common.KeyR:
			sc.ViewChanged()
		}
	})

	win.SetScrollCallback(func(delta float32) {
		ctrl.Zoom(delta)
	})

	win.SetMouseButtonCallback(func(button window.MouseButton, pressed bool, x, y int32) {
		if button == window.MouseButtonLeft {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		dragging = pressed
		lastX, lastY = x, y
	})

	win.SetMouseMoveCallback(func(x, y int32) {
		mu.Lock()
		if dragging {
			ctrl.Drag(float32(x-lastX), float32(y-lastY))
			lastX, lastY = x, y
		}
		mu.Unlock()

		if pos, ok := brush.ScreenToGround(cam, float32(x), float32(y), float32(win.Width()), float32(win.Height())); ok {
			brush.SetBrushPosition(pos)
		}
	})
}
