package renderer

import (
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
)

// DrawPath selects which frame phase draws an instance.
type DrawPath uint8

const (
	// DrawBatched instances are drawn together by their renderer's RenderBatch.
	DrawBatched DrawPath = iota

	// DrawSingle instances carry per-instance animation state and are drawn one
	// at a time after all batches.
	DrawSingle

	// DrawSorted instances belong to a model with a blend pass and are drawn one
	// at a time, farthest first, after everything else.
	DrawSorted
)

// Classify returns the draw path for instances of a model. A blend pass wins
// over per-instance animation.
//
// Parameters:
//   - m: the model
//
// Returns:
//   - DrawPath: exactly one path
func Classify(m model.Model) DrawPath {
	switch {
	case m.HasBlendPass():
		return DrawSorted
	case m.NeedsPerInstanceAnimation():
		return DrawSingle
	default:
		return DrawBatched
	}
}

func (p DrawPath) String() string {
	switch p {
	case DrawBatched:
		return "batched"
	case DrawSingle:
		return "single"
	case DrawSorted:
		return "sorted"
	default:
		return "unknown"
	}
}
