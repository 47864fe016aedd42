package renderer

import (
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
)

// DrawBackend submits geometry to the GPU on behalf of model renderers.
// Calls arrive from the frame goroutine in phase order; Release may arrive from
// the reclamation goroutine at any time and must be safe against concurrent draws
// of other models.
type DrawBackend interface {
	// BeginBatchDraw signals the start of the batched phase of a frame.
	BeginBatchDraw()

	// BeginSingleDraw signals the start of the one-instance-at-a-time phases.
	BeginSingleDraw()

	// DrawBatch draws every given instance of a model with one instanced draw.
	//
	// Parameters:
	//   - m: the model whose mesh is drawn
	//   - instances: the visible instances, never empty
	//
	// Returns:
	//   - error: error if the draw could not be recorded
	DrawBatch(m model.Model, instances []*Instance) error

	// DrawInstance draws a single instance of a model.
	//
	// Parameters:
	//   - m: the model whose mesh is drawn
	//   - inst: the instance
	//
	// Returns:
	//   - error: error if the draw could not be recorded
	DrawInstance(m model.Model, inst *Instance) error

	// Release frees every resource the backend holds for a model.
	//
	// Parameters:
	//   - m: the model being disposed
	//
	// Returns:
	//   - error: error if releasing failed
	Release(m model.Model) error
}

// NopDrawBackend discards all draws. Used when no GPU is attached.
type NopDrawBackend struct{}

var _ DrawBackend = NopDrawBackend{}

func (NopDrawBackend) BeginBatchDraw()                           {}
func (NopDrawBackend) BeginSingleDraw()                          {}
func (NopDrawBackend) DrawBatch(model.Model, []*Instance) error  { return nil }
func (NopDrawBackend) DrawInstance(model.Model, *Instance) error { return nil }
func (NopDrawBackend) Release(model.Model) error                 { return nil }
