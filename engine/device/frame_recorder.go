package device

import (
	"errors"
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoFrame is returned by draw calls made outside BeginFrame/EndFrame.
var ErrNoFrame = errors.New("device: draw outside of a frame")

// animationSpeed is the spin rate of per-instance-animated models in radians per second.
const animationSpeed = 1.2

// drawCmd is one recorded instanced draw. first and count index into the
// frame's instance staging slice.
type drawCmd struct {
	model model.Model
	blend bool
	first uint32
	count uint32
}

// frameRecorder collects the draws of one frame in submission order so the
// GPU backend can upload all instance data at once before encoding the pass.
type frameRecorder struct {
	open      bool
	cmds      []drawCmd
	instances []common.InstanceData
	start     time.Time
	now       func() time.Time
}

func newFrameRecorder(now func() time.Time) *frameRecorder {
	if now == nil {
		now = time.Now
	}
	return &frameRecorder{now: now, start: now()}
}

func (f *frameRecorder) begin() {
	f.open = true
	f.cmds = f.cmds[:0]
	f.instances = f.instances[:0]
}

func (f *frameRecorder) end() {
	f.open = false
}

func (f *frameRecorder) recordBatch(m model.Model, instances []*renderer.Instance) error {
	if !f.open {
		return ErrNoFrame
	}
	if len(instances) == 0 {
		return nil
	}
	first := uint32(len(f.instances))
	for _, inst := range instances {
		f.instances = append(f.instances, inst.GPUData())
	}
	f.cmds = append(f.cmds, drawCmd{model: m, first: first, count: uint32(len(instances))})
	return nil
}

func (f *frameRecorder) recordInstance(m model.Model, inst *renderer.Instance) error {
	if !f.open {
		return ErrNoFrame
	}
	data := inst.GPUData()
	if m.NeedsPerInstanceAnimation() {
		data.Model = f.animate(inst)
	}
	first := uint32(len(f.instances))
	f.instances = append(f.instances, data)
	f.cmds = append(f.cmds, drawCmd{model: m, blend: m.HasBlendPass(), first: first, count: 1})
	return nil
}

// animate spins the instance around its own Y axis, phase-shifted by id so
// neighbours do not move in lockstep.
func (f *frameRecorder) animate(inst *renderer.Instance) [16]float32 {
	elapsed := f.now().Sub(f.start).Seconds()
	phase := float64(inst.ID()%360) * math.Pi / 180
	angle := float32(math.Mod(elapsed*animationSpeed+phase, 2*math.Pi))

	rot := inst.Rotation()
	transform := common.ModelMatrix(inst.Position(), mgl32.Vec3{rot.X(), rot.Y() + angle, rot.Z()}, inst.Scale())
	return [16]float32(transform)
}
