package scene

import (
	"errors"
	"maps"
	"slices"
)

// FrameStats reports what a single OnFrame call drew.
type FrameStats struct {
	// ViewDirty is the view-dirty flag observed at the start of the frame.
	ViewDirty bool

	Highlighted int
	Batches     int
	Singles     int
	Sorted      int
	Errors      int
}

// Draws returns the total number of successful draw calls.
func (f FrameStats) Draws() int {
	return f.Batches + f.Singles + f.Sorted
}

func (s *scene) OnFrame() (FrameStats, error) {
	var errs []error

	// The dirty flag is read and cleared under frameMu, the lock ViewChanged
	// sets it under.
	s.frameMu.Lock()
	stats := FrameStats{ViewDirty: s.view.Dirty()}

	s.scratch = slices.AppendSeq(s.scratch[:0], maps.Values(s.visible))
	lit := s.brush != nil && s.brush.HighlightEnabled()
	switch {
	case lit:
		stats.Highlighted = s.highlighter.apply(s.scratch, s.brush.BrushPosition(), s.brush.BrushRadius())
	case s.wasLit:
		clearHighlights(s.scratch)
	}
	s.wasLit = lit
	clear(s.scratch)

	s.backend.BeginBatchDraw()
	for _, r := range s.renderers {
		if err := r.RenderBatch(); err != nil {
			errs = append(errs, err)
			continue
		}
		stats.Batches++
	}

	s.backend.BeginSingleDraw()
	for _, inst := range s.nonBatched {
		if err := inst.Renderer().RenderSingleInstance(inst); err != nil {
			errs = append(errs, err)
			continue
		}
		stats.Singles++
	}

	for _, inst := range s.sorted.Ordered() {
		if err := inst.Renderer().RenderSingleInstance(inst); err != nil {
			errs = append(errs, err)
			continue
		}
		stats.Sorted++
	}

	s.view.clear()
	s.frameMu.Unlock()

	stats.Errors = len(errs)
	if len(errs) > 0 {
		return stats, errors.Join(errs...)
	}
	return stats, nil
}
