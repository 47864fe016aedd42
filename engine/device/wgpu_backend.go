package device

import (
	_ "embed"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/engine/camera"
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// instancedShaderSource draws colored meshes with a per-instance model matrix
// and tint.
//
//go:embed assets/instanced.wgsl
var instancedShaderSource string

const minInstanceCapacity = 256

// gpuMesh holds the uploaded geometry of one model.
type gpuMesh struct {
	vertex     *wgpu.Buffer
	index      *wgpu.Buffer
	indexCount uint32
}

func (m *gpuMesh) release() {
	m.vertex.Release()
	m.index.Release()
}

type wgpuBackend struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat        wgpu.TextureFormat
	presentMode          wgpu.PresentMode
	sampleCount          MSAASampleCount
	clearColor           wgpu.Color
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	depthTexture         *wgpu.Texture
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	cameraBuffer    *wgpu.Buffer
	cameraLayout    *wgpu.BindGroupLayout
	cameraBindGroup *wgpu.BindGroup
	opaquePipeline  *wgpu.RenderPipeline
	blendPipeline   *wgpu.RenderPipeline

	meshes           map[model.Hash]*gpuMesh
	pendingRelease   []model.Hash
	instanceBuffer   *wgpu.Buffer
	instanceCapacity int

	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	recorder     *frameRecorder
}

type backendConfig struct {
	presentMode          PresentMode
	sampleCount          MSAASampleCount
	forceFallbackAdapter bool
	clearColor           wgpu.Color
	clock                func() time.Time
}

var _ renderer.DrawBackend = &wgpuBackend{}

func newWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, cfg backendConfig) (*wgpuBackend, error) {
	runtime.LockOSThread()

	b := &wgpuBackend{
		instance:    wgpu.CreateInstance(nil),
		sampleCount: cfg.sampleCount,
		clearColor:  cfg.clearColor,
		meshes:      make(map[model.Hash]*gpuMesh),
		recorder:    newFrameRecorder(cfg.clock),
	}
	b.setPresentMode(cfg.presentMode)
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("device: request adapter: %w", err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("device: request device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return nil, errors.New("device: surface reports no formats")
	}
	b.surfaceFormat = capabilities.Formats[0]

	if err := b.configureSurface(width, height); err != nil {
		return nil, err
	}
	if err := b.createCameraBinding(); err != nil {
		return nil, err
	}
	if err := b.createPipelines(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *wgpuBackend) setPresentMode(mode PresentMode) {
	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

// configureSurface (re)creates the swapchain and the size-dependent attachments.
// Caller holds mu or owns b exclusively.
func (b *wgpuBackend) configureSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseAttachments()
	count := uint32(b.sampleCount)
	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	if count > 1 {
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("device: create msaa texture: %w", err)
		}
		view, err := tex.CreateView(nil)
		if err != nil {
			tex.Release()
			return fmt.Errorf("device: create msaa view: %w", err)
		}
		b.msaaTexture, b.msaaTextureView = tex, view
	}

	depth, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("device: create depth texture: %w", err)
	}
	depthView, err := depth.CreateView(nil)
	if err != nil {
		depth.Release()
		return fmt.Errorf("device: create depth view: %w", err)
	}
	b.depthTexture, b.depthTextureView = depth, depthView

	// With MSAA the pass renders into the MSAA view and resolves into the
	// swapchain view set in BeginFrame; without it the swapchain view is the target.
	storeOp := wgpu.StoreOpStore
	if count > 1 {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       b.msaaTextureView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    storeOp,
			ClearValue: b.clearColor,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
	return nil
}

func (b *wgpuBackend) releaseAttachments() {
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTexture.Release()
		b.msaaTextureView, b.msaaTexture = nil, nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTexture.Release()
		b.depthTextureView, b.depthTexture = nil, nil
	}
}

func (b *wgpuBackend) createCameraBinding() error {
	var uniform camera.GPUCameraUniform
	size := uint64(uniform.Size())

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera Uniform Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("device: create camera buffer: %w", err)
	}
	b.cameraBuffer = buf

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Camera Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: size,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("device: create camera layout: %w", err)
	}
	b.cameraLayout = layout

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Camera Bind Group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}},
	})
	if err != nil {
		return fmt.Errorf("device: create camera bind group: %w", err)
	}
	b.cameraBindGroup = group
	return nil
}

func (b *wgpuBackend) createPipelines() error {
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "instanced.wgsl",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: instancedShaderSource,
		},
	})
	if err != nil {
		return fmt.Errorf("device: compile shader: %w", err)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Instanced Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.cameraLayout},
	})
	if err != nil {
		return fmt.Errorf("device: create pipeline layout: %w", err)
	}

	if b.opaquePipeline, err = b.createPipeline("Opaque", module, layout, false); err != nil {
		return err
	}
	if b.blendPipeline, err = b.createPipeline("Alpha Blend", module, layout, true); err != nil {
		return err
	}
	return nil
}

// createPipeline builds the instanced pipeline. The blended variant reads the
// depth buffer but never writes it, so sorted transparent draws do not occlude
// each other.
func (b *wgpuBackend) createPipeline(label string, module *wgpu.ShaderModule, layout *wgpu.PipelineLayout, blend bool) (*wgpu.RenderPipeline, error) {
	target := wgpu.ColorTargetState{
		Format:    b.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if blend {
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}

	p, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    vertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: !blend,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("device: create %s pipeline: %w", label, err)
	}
	return p, nil
}

// vertexLayouts describes slot 0 (common.Vertex) and slot 1 (common.InstanceData).
func vertexLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: common.VertexStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 12, ShaderLocation: 1},
			},
		},
		{
			ArrayStride: common.InstanceStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 2},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 3},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 4},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 48, ShaderLocation: 5},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 64, ShaderLocation: 6},
			},
		},
	}
}

func (b *wgpuBackend) Resize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configureSurface(width, height)
}

func (b *wgpuBackend) SetCamera(uniform camera.GPUCameraUniform) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue.WriteBuffer(b.cameraBuffer, 0, uniform.Marshal())
}

func (b *wgpuBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return errors.New("device: previous frame not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("device: acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("device: create surface view: %w", err)
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	b.recorder.begin()
	return nil
}

// BeginBatchDraw and BeginSingleDraw need no GPU work here; each recorded
// draw carries its own pipeline choice.
func (b *wgpuBackend) BeginBatchDraw()  {}
func (b *wgpuBackend) BeginSingleDraw() {}

func (b *wgpuBackend) DrawBatch(m model.Model, instances []*renderer.Instance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recorder.recordBatch(m, instances)
}

func (b *wgpuBackend) DrawInstance(m model.Model, inst *renderer.Instance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recorder.recordInstance(m, inst)
}

// Release frees the model's buffers. While a frame is open the release waits
// until that frame has been submitted.
func (b *wgpuBackend) Release(m model.Model) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recorder.open {
		b.pendingRelease = append(b.pendingRelease, m.Hash())
		return nil
	}
	b.releaseMesh(m.Hash())
	return nil
}

func (b *wgpuBackend) releaseMesh(hash model.Hash) {
	if mesh, ok := b.meshes[hash]; ok {
		mesh.release()
		delete(b.meshes, hash)
	}
}

func (b *wgpuBackend) EndFrame() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recorder.open {
		return 0, ErrNoFrame
	}
	b.recorder.end()
	defer b.flushReleases()

	if err := b.uploadInstances(); err != nil {
		b.abandonFrame()
		return 0, err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		b.abandonFrame()
		return 0, fmt.Errorf("device: create command encoder: %w", err)
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = b.frameView
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = b.frameView
	}
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	var (
		current *wgpu.RenderPipeline
		errs    []error
		draws   int
	)
	for _, cmd := range b.recorder.cmds {
		mesh, err := b.meshFor(cmd.model)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		pipeline := b.opaquePipeline
		if cmd.blend {
			pipeline = b.blendPipeline
		}
		if pipeline != current {
			pass.SetPipeline(pipeline)
			pass.SetBindGroup(0, b.cameraBindGroup, nil)
			current = pipeline
		}

		pass.SetVertexBuffer(0, mesh.vertex, 0, wgpu.WholeSize)
		pass.SetVertexBuffer(1, b.instanceBuffer, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(mesh.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(mesh.indexCount, cmd.count, 0, 0, cmd.first)
		draws++
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		b.abandonFrame()
		return 0, fmt.Errorf("device: finish frame: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	return draws, errors.Join(errs...)
}

func (b *wgpuBackend) uploadInstances() error {
	n := len(b.recorder.instances)
	if n == 0 {
		return nil
	}

	if n > b.instanceCapacity {
		capacity := max(b.instanceCapacity, minInstanceCapacity)
		for capacity < n {
			capacity *= 2
		}
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Instance Buffer",
			Size:  uint64(capacity * common.InstanceStride),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("device: grow instance buffer to %d: %w", capacity, err)
		}
		if b.instanceBuffer != nil {
			b.instanceBuffer.Release()
		}
		b.instanceBuffer = buf
		b.instanceCapacity = capacity
	}

	b.queue.WriteBuffer(b.instanceBuffer, 0, common.SliceToBytes(b.recorder.instances))
	return nil
}

// meshFor returns the model's uploaded geometry, creating it on first use.
func (b *wgpuBackend) meshFor(m model.Model) (*gpuMesh, error) {
	if mesh, ok := b.meshes[m.Hash()]; ok {
		return mesh, nil
	}

	src := m.Mesh()
	if src == nil || len(src.Vertices) == 0 || len(src.Indices) == 0 {
		return nil, fmt.Errorf("device: model %q has no geometry", m.Name())
	}

	vertexData := common.SliceToBytes(src.Vertices)
	vertex, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: m.Name() + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("device: vertex buffer for %q: %w", m.Name(), err)
	}
	b.queue.WriteBuffer(vertex, 0, vertexData)

	indexData := common.SliceToBytes(src.Indices)
	index, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: m.Name() + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vertex.Release()
		return nil, fmt.Errorf("device: index buffer for %q: %w", m.Name(), err)
	}
	b.queue.WriteBuffer(index, 0, indexData)

	mesh := &gpuMesh{vertex: vertex, index: index, indexCount: uint32(len(src.Indices))}
	b.meshes[m.Hash()] = mesh
	return mesh, nil
}

func (b *wgpuBackend) flushReleases() {
	for _, hash := range b.pendingRelease {
		b.releaseMesh(hash)
	}
	clear(b.pendingRelease)
	b.pendingRelease = b.pendingRelease[:0]
}

// abandonFrame drops the acquired surface texture without presenting it.
func (b *wgpuBackend) abandonFrame() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.abandonFrame()
}

func (b *wgpuBackend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for hash := range b.meshes {
		b.releaseMesh(hash)
	}
	if b.instanceBuffer != nil {
		b.instanceBuffer.Release()
		b.instanceBuffer = nil
	}
	b.releaseAttachments()
	b.opaquePipeline.Release()
	b.blendPipeline.Release()
	b.cameraBindGroup.Release()
	b.cameraLayout.Release()
	b.cameraBuffer.Release()
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}
