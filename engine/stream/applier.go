package stream

import (
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// Applier consumes decoded stream messages.
type Applier interface {
	Place(p *Place) error
	Remove(r *Remove) error
	ViewChanged(v *ViewChanged) error
	Visible(v *Visible) error
}

// SceneApplier applies stream messages to a scene.
type SceneApplier struct {
	scene  scene.Scene
	onView func(eye mgl32.Vec3)
}

var _ Applier = &SceneApplier{}

// NewSceneApplier creates an Applier that drives s.
//
// Parameters:
//   - s: the scene receiving placements and visibility
//   - onView: optional callback receiving the sender's eye on every ViewChanged
//
// Returns:
//   - *SceneApplier: the applier
func NewSceneApplier(s scene.Scene, onView func(eye mgl32.Vec3)) *SceneApplier {
	return &SceneApplier{scene: s, onView: onView}
}

func (a *SceneApplier) Place(p *Place) error {
	scale := p.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	_, err := a.scene.AddInstance(p.Model, p.ID, p.Position, p.Rotation, scale)
	return err
}

func (a *SceneApplier) Remove(r *Remove) error {
	if r.Model == "" {
		a.scene.RemoveInstanceByHash(model.Hash(r.Hash), r.ID)
		return nil
	}
	a.scene.RemoveInstance(r.Model, r.ID)
	return nil
}

func (a *SceneApplier) ViewChanged(v *ViewChanged) error {
	a.scene.ViewChanged()
	if a.onView != nil {
		a.onView(v.Eye)
	}
	return nil
}

func (a *SceneApplier) Visible(v *Visible) error {
	refs := make([]scene.MapReference, len(v.Refs))
	for i, r := range v.Refs {
		refs[i] = scene.MapReference{ID: r.ID, Model: r.Model}
	}
	a.scene.PushMapReferences(refs)
	return nil
}

func dispatch(a Applier, m Message) error {
	switch msg := m.(type) {
	case *Place:
		return a.Place(msg)
	case *Remove:
		return a.Remove(msg)
	case *ViewChanged:
		return a.ViewChanged(msg)
	case *Visible:
		return a.Visible(msg)
	default:
		return ErrUnknownKind
	}
}
