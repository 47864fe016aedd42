package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/scene"
)

// Profiler tracks frame rate, per-phase draw counts and memory statistics.
// Not safe for concurrent use; the render goroutine owns it.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	now            func() time.Time
	readMem        func(*runtime.MemStats)

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	phases  scene.FrameStats
	dirties int
	last    Report
	log     *slog.Logger
}

// Report is one interval's summary.
type Report struct {
	FPS         float64
	Frames      int
	Batches     int
	Singles     int
	Sorted      int
	Highlighted int
	Errors      int
	ViewDirty   int
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// NewProfiler creates a Profiler.
//
// Parameters:
//   - options: functional options for the interval and time source
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		readMem:        runtime.ReadMemStats,
		log:            common.ComponentLogger("profiler"),
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Record adds one frame's draw statistics to the current interval.
//
// Parameters:
//   - stats: the result of Scene.OnFrame
func (p *Profiler) Record(stats scene.FrameStats) {
	p.phases.Batches += stats.Batches
	p.phases.Singles += stats.Singles
	p.phases.Sorted += stats.Sorted
	p.phases.Highlighted += stats.Highlighted
	p.phases.Errors += stats.Errors
	if stats.ViewDirty {
		p.dirties++
	}
}

// Tick should be called once per frame. When the interval has elapsed it
// logs a Report and starts a new interval.
//
// Returns:
//   - bool: true if a report was produced this tick
func (p *Profiler) Tick() bool {
	p.frameCount++
	current := p.now()
	elapsed := current.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	p.readMem(&p.memStats)
	r := Report{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Frames:      p.frameCount,
		Batches:     p.phases.Batches,
		Singles:     p.phases.Singles,
		Sorted:      p.phases.Sorted,
		Highlighted: p.phases.Highlighted,
		Errors:      p.phases.Errors,
		ViewDirty:   p.dirties,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}
	r.LastPauseUs, r.MaxPauseUs = p.gcPauses()

	p.log.Info("frame stats",
		"fps", r.FPS,
		"batches", r.Batches,
		"singles", r.Singles,
		"sorted", r.Sorted,
		"highlighted", r.Highlighted,
		"draw_errors", r.Errors,
		"view_changes", r.ViewDirty,
		"heap_mb", r.HeapMB,
		"alloc_mb_s", r.AllocRateMB,
		"gc", r.GCCount,
		"gc_last_us", r.LastPauseUs,
		"gc_max_us", r.MaxPauseUs,
		"sys_mb", r.SysMB,
	)

	p.last = r
	p.frameCount = 0
	p.phases = scene.FrameStats{}
	p.dirties = 0
	p.lastTime = current
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// gcPauses returns the latest pause and the longest pause since the last
// report. PauseNs is a ring of the last 256 pauses.
func (p *Profiler) gcPauses() (last, longest uint64) {
	n := p.memStats.NumGC
	if n == 0 {
		return 0, 0
	}
	last = p.memStats.PauseNs[(n-1)%256] / 1000

	start := p.lastGCCount
	if n-start > 256 {
		start = n - 256
	}
	for i := start; i < n; i++ {
		longest = max(longest, p.memStats.PauseNs[i%256]/1000)
	}
	return last, longest
}

// LastReport returns the most recent interval summary.
func (p *Profiler) LastReport() Report { return p.last }
