package scene

import "sync/atomic"

// ViewState carries per-session view flags shared between a scene and the
// systems that consume them, such as frame skipping and culling.
type ViewState struct {
	dirty atomic.Bool
}

// NewViewState returns a clean ViewState.
func NewViewState() *ViewState {
	return &ViewState{}
}

// Dirty reports whether the view changed since the last completed frame.
func (v *ViewState) Dirty() bool {
	return v.dirty.Load()
}

// MarkDirty flags the view as changed.
func (v *ViewState) MarkDirty() {
	v.dirty.Store(true)
}

func (v *ViewState) clear() {
	v.dirty.Store(false)
}
