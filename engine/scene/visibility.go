package scene

import (
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// MapReference is a placement the world reports as visible. Instance may be
// left nil, in which case the scene resolves it from Model and ID.
type MapReference struct {
	ID       uint64
	Model    string
	Instance *renderer.Instance
}

func (s *scene) PushMapReferences(refs []MapReference) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	for _, ref := range refs {
		inst := s.resolve(ref)
		if inst == nil || inst.Updated() {
			continue
		}

		owner := inst.Renderer()
		owner.PushMapReference(inst)
		s.visible[inst.ID()] = inst

		switch owner.Path() {
		case renderer.DrawSorted:
			s.sorted.Add(inst)
		case renderer.DrawSingle:
			s.nonBatched[inst.ID()] = inst
		}
	}
}

// resolve returns the live instance behind ref, or nil when its renderer is no
// longer registered. Callers hold frameMu.
func (s *scene) resolve(ref MapReference) *renderer.Instance {
	if ref.Instance != nil {
		owner := ref.Instance.Renderer()
		if owner == nil || s.renderers[owner.Model().Hash()] != owner {
			return nil
		}
		if owner.Instance(ref.Instance.ID()) != ref.Instance {
			return nil
		}
		return ref.Instance
	}

	r, ok := s.renderers[model.HashName(ref.Model)]
	if !ok {
		return nil
	}
	return r.Instance(ref.ID)
}

func (s *scene) ViewChanged() {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	s.view.MarkDirty()
	clear(s.visible)
	clear(s.nonBatched)
	s.sorted.Clear()
	for _, r := range s.renderers {
		r.ViewChanged()
	}
}

func (s *scene) UpdateDepths(eye mgl32.Vec3) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	for _, inst := range s.visible {
		inst.UpdateDepth(eye)
	}
}

func (s *scene) VisibleCount() int {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return len(s.visible)
}

func (s *scene) SortedOrder() []uint64 {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	ordered := s.sorted.Ordered()
	ids := make([]uint64, len(ordered))
	for i, inst := range ordered {
		ids[i] = inst.ID()
	}
	return ids
}
