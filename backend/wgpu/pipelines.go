//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/mesh"
)

// Target formats per backend.TargetKind.
const (
	blendFormat   = gputypes.TextureFormatR16Float
	surfaceFormat = gputypes.TextureFormatRGBA8Unorm
	exportFormat  = gputypes.TextureFormatRGBA8UnormSrgb
	copyFormat    = gputypes.TextureFormatRGBA32Float
)

// pipelines holds the shader modules, layouts and render pipelines shared
// by all passes of a device.
type pipelines struct {
	modules []hal.ShaderModule

	cameraLayout   hal.BindGroupLayout
	colormapLayout hal.BindGroupLayout
	copyLayout     hal.BindGroupLayout
	pipeLayouts    []hal.PipelineLayout

	blend           hal.RenderPipeline
	outline         hal.RenderPipeline
	outlineExport   hal.RenderPipeline
	colormapDisplay hal.RenderPipeline
	colormapOpaque  hal.RenderPipeline
	copy            hal.RenderPipeline
}

// vertexLayout matches mesh.Vertex: position (vec3<f32>) at location 0 and
// weight (u32) at location 1.
func vertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: mesh.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatUint32, Offset: 12, ShaderLocation: 1},
			},
		},
	}
}

// additiveBlend sums source and destination color. Alpha keeps the source
// value; the blend pipeline only writes the red channel anyway.
func additiveBlend() gputypes.BlendState {
	return gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorZero,
			Operation: gputypes.BlendOperationAdd,
		},
	}
}

func newPipelines(device hal.Device) (*pipelines, error) {
	p := &pipelines{}
	ok := false
	defer func() {
		if !ok {
			p.destroy(device)
		}
	}()

	blendMod, err := p.shader(device, "heatmap_blend", blendShader)
	if err != nil {
		return nil, err
	}
	outlineMod, err := p.shader(device, "heatmap_outline", outlineShader)
	if err != nil {
		return nil, err
	}
	colormapMod, err := p.shader(device, "heatmap_colormap", colormapShader)
	if err != nil {
		return nil, err
	}
	copyMod, err := p.shader(device, "heatmap_copy", copyShader)
	if err != nil {
		return nil, err
	}

	p.cameraLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "heatmap_camera_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageVertex, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create camera bind group layout: %w", err)
	}

	p.colormapLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "heatmap_colormap_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageFragment, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageFragment, Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}},
			{Binding: 2, Visibility: gputypes.ShaderStageFragment, Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create colormap bind group layout: %w", err)
	}

	p.copyLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "heatmap_copy_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageFragment, Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create copy bind group layout: %w", err)
	}

	cameraPipe, err := p.pipelineLayout(device, "heatmap_camera_pipe_layout", p.cameraLayout)
	if err != nil {
		return nil, err
	}
	colormapPipe, err := p.pipelineLayout(device, "heatmap_colormap_pipe_layout", p.colormapLayout)
	if err != nil {
		return nil, err
	}
	copyPipe, err := p.pipelineLayout(device, "heatmap_copy_pipe_layout", p.copyLayout)
	if err != nil {
		return nil, err
	}

	add := additiveBlend()
	alpha := gputypes.BlendStateAlpha()
	red, all := gputypes.ColorWriteMaskRed, gputypes.ColorWriteMaskAll
	if p.blend, err = renderPipeline(device, "heatmap_blend_pipeline", cameraPipe, blendMod, blendFormat, &add, red); err != nil {
		return nil, err
	}
	if p.outline, err = renderPipeline(device, "heatmap_outline_pipeline", cameraPipe, outlineMod, surfaceFormat, nil, all); err != nil {
		return nil, err
	}
	if p.outlineExport, err = renderPipeline(device, "heatmap_outline_export_pipeline", cameraPipe, outlineMod, exportFormat, nil, all); err != nil {
		return nil, err
	}
	if p.colormapDisplay, err = renderPipeline(device, "heatmap_colormap_pipeline", colormapPipe, colormapMod, surfaceFormat, &alpha, all); err != nil {
		return nil, err
	}
	if p.colormapOpaque, err = renderPipeline(device, "heatmap_colormap_opaque_pipeline", colormapPipe, colormapMod, exportFormat, nil, all); err != nil {
		return nil, err
	}
	if p.copy, err = renderPipeline(device, "heatmap_copy_pipeline", copyPipe, copyMod, copyFormat, nil, all); err != nil {
		return nil, err
	}
	ok = true
	return p, nil
}

func (p *pipelines) shader(device hal.Device, label, source string) (hal.ShaderModule, error) {
	m, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}
	p.modules = append(p.modules, m)
	return m, nil
}

func (p *pipelines) pipelineLayout(device hal.Device, label string, layout hal.BindGroupLayout) (hal.PipelineLayout, error) {
	pl, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	p.pipeLayouts = append(p.pipeLayouts, pl)
	return pl, nil
}

// renderPipeline builds a triangle-list pipeline with one color target.
// A nil blend replaces the destination.
func renderPipeline(device hal.Device, label string, layout hal.PipelineLayout, module hal.ShaderModule,
	format gputypes.TextureFormat, blend *gputypes.BlendState, mask gputypes.ColorWriteMask) (hal.RenderPipeline, error) {
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: vertexEntry,
			Buffers:    vertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: fragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     blend,
					WriteMask: mask,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return pipeline, nil
}

// colormap returns the outline and colormap pipelines for a pass into a
// target of the given kind. Opaque passes render to export targets only.
func (p *pipelines) colormap(kind backend.TargetKind, opaque bool) (outline, ramp hal.RenderPipeline, err error) {
	switch {
	case kind == backend.TargetExport && opaque:
		return p.outlineExport, p.colormapOpaque, nil
	case kind == backend.TargetSurface && !opaque:
		return p.outline, p.colormapDisplay, nil
	}
	return nil, nil, fmt.Errorf("%w: opaque=%v colormap pass into %s target", backend.ErrWrongTarget, opaque, kind)
}

// destroy releases all pipeline resources in reverse creation order.
func (p *pipelines) destroy(device hal.Device) {
	for _, rp := range []hal.RenderPipeline{p.copy, p.colormapOpaque, p.colormapDisplay, p.outlineExport, p.outline, p.blend} {
		if rp != nil {
			device.DestroyRenderPipeline(rp)
		}
	}
	p.copy, p.colormapOpaque, p.colormapDisplay, p.outlineExport, p.outline, p.blend = nil, nil, nil, nil, nil, nil

	for i := len(p.pipeLayouts) - 1; i >= 0; i-- {
		device.DestroyPipelineLayout(p.pipeLayouts[i])
	}
	p.pipeLayouts = nil

	for _, l := range []hal.BindGroupLayout{p.copyLayout, p.colormapLayout, p.cameraLayout} {
		if l != nil {
			device.DestroyBindGroupLayout(l)
		}
	}
	p.copyLayout, p.colormapLayout, p.cameraLayout = nil, nil, nil

	for i := len(p.modules) - 1; i >= 0; i-- {
		device.DestroyShaderModule(p.modules[i])
	}
	p.modules = nil
}
