package scene

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
)

// alphaSet holds the visible instances of blended models. Ordered sorts them
// farthest first, breaking depth ties by ascending id, reading each depth at
// comparison time. Callers serialize access through the frame-state lock.
type alphaSet struct {
	items map[uint64]*renderer.Instance
	order []*renderer.Instance
}

func newAlphaSet() *alphaSet {
	return &alphaSet{items: make(map[uint64]*renderer.Instance)}
}

func (a *alphaSet) Add(inst *renderer.Instance) {
	a.items[inst.ID()] = inst
}

func (a *alphaSet) Remove(id uint64) {
	delete(a.items, id)
}

func (a *alphaSet) Contains(id uint64) bool {
	_, ok := a.items[id]
	return ok
}

func (a *alphaSet) Len() int {
	return len(a.items)
}

func (a *alphaSet) Clear() {
	clear(a.items)
	clear(a.order)
	a.order = a.order[:0]
}

// Ordered returns the instances in draw order. The slice is reused by the next
// call.
func (a *alphaSet) Ordered() []*renderer.Instance {
	clear(a.order)
	a.order = a.order[:0]
	for _, inst := range a.items {
		a.order = append(a.order, inst)
	}
	slices.SortFunc(a.order, compareDepth)
	return a.order
}

func compareDepth(x, y *renderer.Instance) int {
	if c := cmp.Compare(y.Depth(), x.Depth()); c != 0 {
		return c
	}
	return cmp.Compare(x.ID(), y.ID())
}
