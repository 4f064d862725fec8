//go:build !nogpu

package wgpu

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/internal/readback"
)

// surfaceBytesPerPixel is the RGBA8 pixel size used by Present.
const surfaceBytesPerPixel = 4

// use records a barrier moving t into usage. Targets start undefined.
func use(enc hal.CommandEncoder, t *target, usage gputypes.TextureUsage) {
	if t.state == usage {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: t.state,
			NewUsage: usage,
		},
	}})
	t.state = usage
}

func colorAttachment(t *target, c backend.Color) []hal.RenderPassColorAttachment {
	return []hal.RenderPassColorAttachment{{
		View:       t.view,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: gputypes.Color{R: c.R, G: c.G, B: c.B, A: c.A},
	}}
}

func drawMesh(rp hal.RenderPassEncoder, m *meshBuffer) {
	rp.SetVertexBuffer(0, m.vertices, 0)
	rp.SetIndexBuffer(m.indices, gputypes.IndexFormatUint32, 0)
	rp.DrawIndexed(m.indexCount, 1, 0, 0, 0)
}

func (d *Device) cameraBindGroup(cam *uniform) (hal.BindGroup, error) {
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "heatmap_camera_bind",
		Layout: d.pipes.cameraLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: cam.buf.NativeHandle(), Size: cam.size}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create camera bind group: %w", mapError(err))
	}
	return bg, nil
}

func (d *Device) freeBindGroup(bg hal.BindGroup) func() {
	return func() { d.device.DestroyBindGroup(bg) }
}

// BlendPass clears target and additively draws m with the blend pipeline.
func (d *Device) BlendPass(t backend.Target, camera backend.Uniform, m backend.MeshBuffer) error {
	dst, err := asTarget(t, backend.TargetBlend)
	if err != nil {
		return err
	}
	cam, err := asUniform(camera)
	if err != nil {
		return err
	}
	var mb *meshBuffer
	if m != nil {
		if mb, err = asMesh(m); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}

	var free []func()
	var bg hal.BindGroup
	draw := mb != nil && mb.indexCount > 0
	if draw {
		if bg, err = d.cameraBindGroup(cam); err != nil {
			return err
		}
		free = append(free, d.freeBindGroup(bg))
	}

	_, err = d.encode("heatmap_blend", func(enc hal.CommandEncoder) {
		use(enc, dst, gputypes.TextureUsageRenderAttachment)
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label:            "heatmap_blend_pass",
			ColorAttachments: colorAttachment(dst, backend.Transparent),
		})
		if draw {
			rp.SetPipeline(d.pipes.blend)
			rp.SetBindGroup(0, bg, nil)
			drawMesh(rp, mb)
		}
		rp.End()
		use(enc, dst, gputypes.TextureUsageTextureBinding)
	}, free...)
	return err
}

// ColormapPass draws the outline, then the colormapped quad over it.
func (d *Device) ColormapPass(desc *backend.ColormapPassDescriptor) error {
	dst, err := asTarget(desc.Target, backend.TargetSurface, backend.TargetExport)
	if err != nil {
		return err
	}
	blend, err := asTarget(desc.Blend, backend.TargetBlend)
	if err != nil {
		return err
	}
	ramp, ok := desc.Ramp.(*colormap)
	if !ok {
		return fmt.Errorf("wgpu: foreign colormap %T", desc.Ramp)
	}
	cam, err := asUniform(desc.Camera)
	if err != nil {
		return err
	}
	maxU, err := asUniform(desc.MaxWeight)
	if err != nil {
		return err
	}
	quad, err := asMesh(desc.Quad)
	if err != nil {
		return err
	}
	var outline *meshBuffer
	if desc.Outline != nil {
		if outline, err = asMesh(desc.Outline); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	outlinePipe, pipeline, err := d.pipes.colormap(dst.kind, desc.Opaque)
	if err != nil {
		return err
	}

	var free []func()
	var camBG hal.BindGroup
	drawOutline := outline != nil && outline.indexCount > 0
	if drawOutline {
		if camBG, err = d.cameraBindGroup(cam); err != nil {
			return err
		}
		free = append(free, d.freeBindGroup(camBG))
	}
	mapBG, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "heatmap_colormap_bind",
		Layout: d.pipes.colormapLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: maxU.buf.NativeHandle(), Size: maxU.size}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: blend.view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: ramp.view.NativeHandle()}},
		},
	})
	if err != nil {
		for _, f := range free {
			f()
		}
		return fmt.Errorf("wgpu: create colormap bind group: %w", mapError(err))
	}
	free = append(free, d.freeBindGroup(mapBG))

	_, err = d.encode("heatmap_colormap", func(enc hal.CommandEncoder) {
		use(enc, blend, gputypes.TextureUsageTextureBinding)
		use(enc, dst, gputypes.TextureUsageRenderAttachment)
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label:            "heatmap_colormap_pass",
			ColorAttachments: colorAttachment(dst, desc.Clear),
		})
		if drawOutline {
			rp.SetPipeline(outlinePipe)
			rp.SetBindGroup(0, camBG, nil)
			drawMesh(rp, outline)
		}
		if quad.indexCount > 0 {
			rp.SetPipeline(pipeline)
			rp.SetBindGroup(0, mapBG, nil)
			drawMesh(rp, quad)
		}
		rp.End()
	}, free...)
	return err
}

// CopyPass composites src over white into a copy target.
func (d *Device) CopyPass(s, t backend.Target, q backend.MeshBuffer, clear backend.Color) error {
	src, err := asTarget(s, backend.TargetSurface, backend.TargetExport, backend.TargetBlend)
	if err != nil {
		return err
	}
	dst, err := asTarget(t, backend.TargetCopy)
	if err != nil {
		return err
	}
	quad, err := asMesh(q)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "heatmap_copy_bind",
		Layout: d.pipes.copyLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: src.view.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create copy bind group: %w", mapError(err))
	}

	_, err = d.encode("heatmap_copy", func(enc hal.CommandEncoder) {
		use(enc, src, gputypes.TextureUsageTextureBinding)
		use(enc, dst, gputypes.TextureUsageRenderAttachment)
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label:            "heatmap_copy_pass",
			ColorAttachments: colorAttachment(dst, clear),
		})
		if quad.indexCount > 0 {
			rp.SetPipeline(d.pipes.copy)
			rp.SetBindGroup(0, bg, nil)
			drawMesh(rp, quad)
		}
		rp.End()
	}, d.freeBindGroup(bg))
	return err
}

// CopyToBuffer records a texture to buffer copy with padded rows.
func (d *Device) CopyToBuffer(s backend.Target, b backend.ReadbackBuffer) error {
	src, err := asTarget(s, backend.TargetCopy)
	if err != nil {
		return err
	}
	dst, ok := b.(*readbackBuffer)
	if !ok {
		return fmt.Errorf("wgpu: foreign readback buffer %T", b)
	}
	if dst.width != src.width || dst.height != src.height {
		return fmt.Errorf("%w: copy %dx%d into buffer for %dx%d",
			backend.ErrInvalidDimensions, src.width, src.height, dst.width, dst.height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	_, err = d.encode("heatmap_readback", func(enc hal.CommandEncoder) {
		d.recordCopy(enc, src, dst.buf, dst.bytesPerRow)
	})
	return err
}

// recordCopy copies src into buf and returns src to its attachment usage.
func (d *Device) recordCopy(enc hal.CommandEncoder, src *target, buf hal.Buffer, bytesPerRow uint32) {
	prev := src.state
	use(enc, src, gputypes.TextureUsageCopySrc)
	enc.CopyTextureToBuffer(src.tex, buf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: src.height},
		TextureBase:  hal.ImageCopyTexture{Texture: src.tex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		Size:         hal.Extent3D{Width: src.width, Height: src.height, DepthOrArrayLayers: 1},
	}})
	if prev != 0 {
		use(enc, src, prev)
	}
}

// MapRead waits for the last submission from a new goroutine, maps dst and
// passes a copy of its bytes to done. dst is destroyed afterwards.
func (d *Device) MapRead(b backend.ReadbackBuffer, done backend.MapCallback) {
	d.mu.Lock()
	closed := d.closed
	index := d.lastSubmit
	if !closed {
		d.pending.Add(1)
	}
	d.mu.Unlock()

	go func() {
		if closed {
			b.Destroy()
			done(nil, backend.ErrClosed)
			return
		}
		defer d.pending.Done()
		defer b.Destroy()

		rb, ok := b.(*readbackBuffer)
		if !ok {
			done(nil, fmt.Errorf("wgpu: foreign readback buffer %T", b))
			return
		}
		d.waitFor(index)
		data, err := d.readBuffer(rb.buf, rb.Size())
		if err != nil {
			done(nil, fmt.Errorf("wgpu: map %q: %w", rb.label, err))
			return
		}
		done(data, nil)
	}()
}

// readBuffer maps buf and copies size bytes out of it.
func (d *Device) readBuffer(buf hal.Buffer, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mapping, err := d.device.MapBuffer(buf, 0, size)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]byte, size)
	if size > 0 && mapping.Ptr != nil {
		copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	}
	if err := d.device.UnmapBuffer(buf); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Present copies the surface into a staging buffer and blocks until the
// copy completes. The staging buffer is reused across frames of one size.
func (d *Device) Present(s backend.Target) (*image.RGBA, error) {
	src, err := asTarget(s, backend.TargetSurface, backend.TargetExport)
	if err != nil {
		return nil, err
	}

	bpr := readback.AlignedBytesPerRow(src.width, surfaceBytesPerPixel)
	size := uint64(bpr) * uint64(src.height)

	d.mu.Lock()
	if err := d.checkOpen(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	staging, err := d.takeStaging(size)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	index, err := d.encode("heatmap_present", func(enc hal.CommandEncoder) {
		d.recordCopy(enc, src, staging, bpr)
	})
	if err != nil {
		d.device.DestroyBuffer(staging)
		d.mu.Unlock()
		return nil, err
	}
	d.pending.Add(1)
	d.mu.Unlock()
	defer d.pending.Done()

	d.waitFor(index)
	data, err := d.readBuffer(staging, size)
	d.putStaging(staging, size)
	if err != nil {
		return nil, fmt.Errorf("wgpu: present: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(src.width), int(src.height)))
	row := int(src.width) * surfaceBytesPerPixel
	for y := 0; y < int(src.height); y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+row], data[y*int(bpr):])
	}
	return img, nil
}

// takeStaging hands out the idle staging buffer when it has the right size
// and creates one otherwise. The caller holds d.mu.
func (d *Device) takeStaging(size uint64) (hal.Buffer, error) {
	if buf := d.staging; buf != nil {
		d.staging = nil
		if d.stagingSize == size {
			return buf, nil
		}
		d.retire(d.lastSubmit, func() { d.device.DestroyBuffer(buf) })
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "heatmap_present_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", mapError(err))
	}
	return buf, nil
}

// putStaging keeps buf for the next Present, or retires it when another
// buffer is already idle or the device is closing.
func (d *Device) putStaging(buf hal.Buffer, size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.staging == nil && !d.closed {
		d.staging, d.stagingSize = buf, size
		return
	}
	d.retire(d.lastSubmit, func() { d.device.DestroyBuffer(buf) })
}
