//go:build !nogpu

package wgpu

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/internal/readback"
	"github.com/gogpu/heatmap/mesh"
)

// target is a 2D texture with a default view. state is the usage recorded
// by the last barrier and is only touched with the device lock held.
type target struct {
	d      *Device
	label  string
	kind   backend.TargetKind
	width  uint32
	height uint32
	tex    hal.Texture
	view   hal.TextureView
	state  gputypes.TextureUsage
	once   sync.Once
}

func (t *target) Kind() backend.TargetKind { return t.kind }
func (t *target) Width() uint32            { return t.width }
func (t *target) Height() uint32           { return t.height }

func (t *target) Destroy() {
	t.once.Do(func() {
		t.d.release(func() {
			t.d.device.DestroyTextureView(t.view)
			t.d.device.DestroyTexture(t.tex)
		})
	})
}

// meshBuffer holds vertex and index buffers. Empty meshes have no buffers.
type meshBuffer struct {
	d          *Device
	label      string
	vertices   hal.Buffer
	indices    hal.Buffer
	indexCount uint32
	once       sync.Once
}

func (m *meshBuffer) IndexCount() uint32 { return m.indexCount }

func (m *meshBuffer) Destroy() {
	if m.vertices == nil {
		return
	}
	m.once.Do(func() {
		m.d.release(func() {
			m.d.device.DestroyBuffer(m.indices)
			m.d.device.DestroyBuffer(m.vertices)
		})
	})
}

type uniform struct {
	d     *Device
	label string
	buf   hal.Buffer
	size  uint64
	once  sync.Once
}

func (u *uniform) Size() uint64 { return u.size }

func (u *uniform) Destroy() {
	u.once.Do(func() {
		u.d.release(func() { u.d.device.DestroyBuffer(u.buf) })
	})
}

// readbackBuffer is a MapRead buffer sized for padded rows.
type readbackBuffer struct {
	d           *Device
	label       string
	buf         hal.Buffer
	width       uint32
	height      uint32
	bytesPerRow uint32
	once        sync.Once
}

func (b *readbackBuffer) Width() uint32       { return b.width }
func (b *readbackBuffer) Height() uint32      { return b.height }
func (b *readbackBuffer) BytesPerRow() uint32 { return b.bytesPerRow }
func (b *readbackBuffer) Size() uint64        { return uint64(b.bytesPerRow) * uint64(b.height) }

func (b *readbackBuffer) Destroy() {
	b.once.Do(func() {
		b.d.release(func() { b.d.device.DestroyBuffer(b.buf) })
	})
}

// colormap is a width x 1 RGBA8 texture.
type colormap struct {
	d     *Device
	label string
	tex   hal.Texture
	view  hal.TextureView
	once  sync.Once
}

func (c *colormap) Destroy() {
	c.once.Do(func() {
		c.d.release(func() {
			c.d.device.DestroyTextureView(c.view)
			c.d.device.DestroyTexture(c.tex)
		})
	})
}

func targetFormat(kind backend.TargetKind) (gputypes.TextureFormat, gputypes.TextureUsage) {
	switch kind {
	case backend.TargetBlend:
		return blendFormat, gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	case backend.TargetCopy:
		return copyFormat, gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc
	case backend.TargetExport:
		return exportFormat, gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc
	default:
		return surfaceFormat, gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc
	}
}

// NewTarget creates a texture and view for desc.
func (d *Device) NewTarget(desc backend.TargetDescriptor) (backend.Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	maxDim := d.limits.MaxTextureDimension2D
	if desc.Width == 0 || desc.Height == 0 || desc.Width > maxDim || desc.Height > maxDim {
		return nil, fmt.Errorf("%w: %s %dx%d", backend.ErrInvalidDimensions, desc.Label, desc.Width, desc.Height)
	}

	tex, view, err := d.createTexture(desc.Label, desc.Width, desc.Height, desc.Kind)
	if err != nil {
		return nil, err
	}
	slogger().Debug("wgpu: target created", "label", desc.Label, "kind", desc.Kind.String(),
		"width", desc.Width, "height", desc.Height)
	return &target{
		d:      d,
		label:  desc.Label,
		kind:   desc.Kind,
		width:  desc.Width,
		height: desc.Height,
		tex:    tex,
		view:   view,
	}, nil
}

func (d *Device) createTexture(label string, w, h uint32, kind backend.TargetKind) (hal.Texture, hal.TextureView, error) {
	format, usage := targetFormat(kind)
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wgpu: create texture %q: %w", label, mapError(err))
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("wgpu: create view %q: %w", label, mapError(err))
	}
	return tex, view, nil
}

// NewMeshBuffer uploads the vertices and indices of m.
func (d *Device) NewMeshBuffer(label string, m *mesh.Mesh) (backend.MeshBuffer, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("wgpu: mesh %q: %w", label, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	mb := &meshBuffer{d: d, label: label}
	if m.Empty() {
		return mb, nil
	}

	vertices, err := d.uploadBuffer(label+"_vertices", gputypes.BufferUsageVertex, m.VertexBytes())
	if err != nil {
		return nil, err
	}
	indices, err := d.uploadBuffer(label+"_indices", gputypes.BufferUsageIndex, m.IndexBytes())
	if err != nil {
		d.device.DestroyBuffer(vertices)
		return nil, err
	}
	mb.vertices, mb.indices, mb.indexCount = vertices, indices, m.IndexCount()
	slogger().Debug("wgpu: mesh uploaded", "label", label, "vertices", len(m.Vertices), "indices", mb.indexCount)
	return mb, nil
}

// uploadBuffer creates a buffer of len(data) rounded up to 4 bytes and
// writes data into it.
func (d *Device) uploadBuffer(label string, usage gputypes.BufferUsage, data []byte) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  align4(uint64(len(data))),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", label, mapError(err))
	}
	if err := d.queue.WriteBuffer(buf, 0, data); err != nil {
		d.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("wgpu: write buffer %q: %w", label, mapError(err))
	}
	return buf, nil
}

// NewUniform creates a zeroed uniform buffer.
func (d *Device) NewUniform(label string, size uint64) (backend.Uniform, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	buf, err := d.uploadBuffer(label, gputypes.BufferUsageUniform, make([]byte, size))
	if err != nil {
		return nil, err
	}
	return &uniform{d: d, label: label, buf: buf, size: size}, nil
}

// WriteUniform replaces the contents of u through the queue.
func (d *Device) WriteUniform(u backend.Uniform, data []byte) error {
	wu, ok := u.(*uniform)
	if !ok {
		return fmt.Errorf("wgpu: foreign uniform %T", u)
	}
	if uint64(len(data)) > wu.size {
		return fmt.Errorf("wgpu: uniform %q: write of %d bytes exceeds %d", wu.label, len(data), wu.size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := d.queue.WriteBuffer(wu.buf, 0, data); err != nil {
		return fmt.Errorf("wgpu: write uniform %q: %w", wu.label, mapError(err))
	}
	return nil
}

// NewReadbackBuffer creates a MapRead buffer for a copy target.
func (d *Device) NewReadbackBuffer(label string, src backend.Target) (backend.ReadbackBuffer, error) {
	if src.Kind() != backend.TargetCopy {
		return nil, fmt.Errorf("%w: readback from %s", backend.ErrWrongTarget, src.Kind())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	bpr := readback.AlignedBytesPerRow(src.Width(), readback.PixelStride)
	size := uint64(bpr) * uint64(src.Height())
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create readback buffer %q: %w", label, mapError(err))
	}
	return &readbackBuffer{
		d:           d,
		label:       label,
		buf:         buf,
		width:       src.Width(),
		height:      src.Height(),
		bytesPerRow: bpr,
	}, nil
}

// NewColormap uploads the first row of ramp as a width x 1 texture.
func (d *Device) NewColormap(label string, ramp *image.RGBA) (backend.Colormap, error) {
	b := ramp.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: colormap %q", backend.ErrInvalidDimensions, label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	w := uint32(b.Dx())
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create colormap %q: %w", label, mapError(err))
	}

	row := ramp.Pix[ramp.PixOffset(b.Min.X, b.Min.Y):][:4*w]
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, Aspect: gputypes.TextureAspectAll},
		row,
		&hal.ImageDataLayout{BytesPerRow: 4 * w, RowsPerImage: 1},
		&hal.Extent3D{Width: w, Height: 1, DepthOrArrayLayers: 1},
	)
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: upload colormap %q: %w", label, mapError(err))
	}

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create colormap view %q: %w", label, mapError(err))
	}
	return &colormap{d: d, label: label, tex: tex, view: view}, nil
}

func asTarget(t backend.Target, kinds ...backend.TargetKind) (*target, error) {
	wt, ok := t.(*target)
	if !ok {
		return nil, fmt.Errorf("wgpu: foreign target %T", t)
	}
	if len(kinds) == 0 {
		return wt, nil
	}
	for _, k := range kinds {
		if wt.kind == k {
			return wt, nil
		}
	}
	return nil, fmt.Errorf("%w: %s target %q", backend.ErrWrongTarget, wt.kind, wt.label)
}

func asMesh(m backend.MeshBuffer) (*meshBuffer, error) {
	wm, ok := m.(*meshBuffer)
	if !ok {
		return nil, fmt.Errorf("wgpu: foreign mesh buffer %T", m)
	}
	return wm, nil
}

func asUniform(u backend.Uniform) (*uniform, error) {
	wu, ok := u.(*uniform)
	if !ok {
		return nil, fmt.Errorf("wgpu: foreign uniform %T", u)
	}
	return wu, nil
}

func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}
