// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"fmt"
	"image"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/internal/readback"
	"github.com/gogpu/heatmap/mesh"
)

// MaxTextureDimension is the largest target the software device accepts.
const MaxTextureDimension = 4096

// OutlineColor is the fill color of outline meshes.
var OutlineColor = [4]float32{0.18, 0.18, 0.2, 1}

func init() {
	backend.Register(backend.BackendSoftware, func() (backend.Device, error) {
		return New(), nil
	})
}

// Device is a CPU implementation of backend.Device.
type Device struct {
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// New creates a software device.
func New() *Device {
	return &Device{}
}

// Name returns backend.BackendSoftware.
func (d *Device) Name() string { return backend.BackendSoftware }

// Limits returns the software limits.
func (d *Device) Limits() backend.Limits {
	return backend.Limits{MaxTextureDimension2D: MaxTextureDimension}
}

func (d *Device) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return backend.ErrClosed
	}
	return nil
}

// NewMeshBuffer stores the de-indexed triangles of m.
func (d *Device) NewMeshBuffer(label string, m *mesh.Mesh) (backend.MeshBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("software: mesh %q: %w", label, err)
	}
	return &meshBuffer{label: label, triangles: m.Triangles(), indexCount: m.IndexCount()}, nil
}

// NewUniform creates a zeroed uniform.
func (d *Device) NewUniform(label string, size uint64) (backend.Uniform, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return &uniform{label: label, data: make([]byte, size)}, nil
}

// NewTarget allocates a target.
func (d *Device) NewTarget(desc backend.TargetDescriptor) (backend.Target, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if desc.Width == 0 || desc.Height == 0 ||
		desc.Width > MaxTextureDimension || desc.Height > MaxTextureDimension {
		return nil, fmt.Errorf("%w: %s %dx%d", backend.ErrInvalidDimensions, desc.Label, desc.Width, desc.Height)
	}
	return newTarget(desc), nil
}

// NewReadbackBuffer allocates a buffer with padded rows for src.
func (d *Device) NewReadbackBuffer(label string, src backend.Target) (backend.ReadbackBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if src.Kind() != backend.TargetCopy {
		return nil, fmt.Errorf("%w: readback from %s", backend.ErrWrongTarget, src.Kind())
	}
	bpr := readback.AlignedBytesPerRow(src.Width(), readback.PixelStride)
	return &readbackBuffer{
		label:       label,
		width:       src.Width(),
		height:      src.Height(),
		bytesPerRow: bpr,
		data:        make([]byte, uint64(bpr)*uint64(src.Height())),
	}, nil
}

// NewColormap copies the first row of ramp, resampled to 256 texels.
func (d *Device) NewColormap(label string, ramp *image.RGBA) (backend.Colormap, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	b := ramp.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: colormap %q", backend.ErrInvalidDimensions, label)
	}
	c := &colormap{label: label}
	for i := range c.texel {
		x := b.Min.X + i*b.Dx()/rampSize
		p := ramp.RGBAAt(x, b.Min.Y)
		c.texel[i] = [4]float32{unorm(p.R), unorm(p.G), unorm(p.B), unorm(p.A)}
	}
	return c, nil
}

// WriteUniform replaces the contents of u.
func (d *Device) WriteUniform(u backend.Uniform, data []byte) error {
	su, ok := u.(*uniform)
	if !ok {
		return fmt.Errorf("software: foreign uniform %T", u)
	}
	if uint64(len(data)) > su.Size() {
		return fmt.Errorf("software: uniform %q: write of %d bytes exceeds %d", su.label, len(data), su.Size())
	}
	copy(su.data, data)
	return nil
}

func asTarget(t backend.Target, kinds ...backend.TargetKind) (*target, error) {
	st, ok := t.(*target)
	if !ok {
		return nil, fmt.Errorf("software: foreign target %T", t)
	}
	for _, k := range kinds {
		if st.kind == k {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w: %s target %q", backend.ErrWrongTarget, st.kind, st.label)
}

func asMesh(m backend.MeshBuffer) (*meshBuffer, error) {
	sm, ok := m.(*meshBuffer)
	if !ok {
		return nil, fmt.Errorf("software: foreign mesh buffer %T", m)
	}
	return sm, nil
}

func asUniform(u backend.Uniform) (*uniform, error) {
	su, ok := u.(*uniform)
	if !ok {
		return nil, fmt.Errorf("software: foreign uniform %T", u)
	}
	return su, nil
}

// BlendPass clears target and adds each covered triangle's weight to the
// red channel.
func (d *Device) BlendPass(t backend.Target, camera backend.Uniform, m backend.MeshBuffer) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	dst, err := asTarget(t, backend.TargetBlend)
	if err != nil {
		return err
	}
	cam, err := asUniform(camera)
	if err != nil {
		return err
	}

	dst.clear(backend.Transparent)
	if m == nil {
		return nil
	}
	mb, err := asMesh(m)
	if err != nil {
		return err
	}
	w := int(dst.width)
	rasterize(mb.triangles, decodeMatrix(cam.data), dst.width, dst.height, func(x, y int, weight uint32) {
		dst.f[y*w+x] += float32(weight)
	})
	return nil
}

// ColormapPass draws the outline and the normalized intensity quad.
func (d *Device) ColormapPass(desc *backend.ColormapPassDescriptor) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	dst, err := asTarget(desc.Target, backend.TargetSurface, backend.TargetExport)
	if err != nil {
		return err
	}
	if desc.Opaque != (dst.kind == backend.TargetExport) {
		return fmt.Errorf("%w: opaque=%v colormap pass into %s target", backend.ErrWrongTarget, desc.Opaque, dst.kind)
	}
	blend, err := asTarget(desc.Blend, backend.TargetBlend)
	if err != nil {
		return err
	}
	ramp, ok := desc.Ramp.(*colormap)
	if !ok {
		return fmt.Errorf("software: foreign colormap %T", desc.Ramp)
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

	dst.clear(desc.Clear)

	if desc.Outline != nil {
		outline, err := asMesh(desc.Outline)
		if err != nil {
			return err
		}
		rasterize(outline.triangles, decodeMatrix(cam.data), dst.width, dst.height, func(x, y int, _ uint32) {
			dst.store(x, y, OutlineColor)
		})
	}

	maxWeight := decodeFloat(maxU.data)
	fw, fh := float32(dst.width), float32(dst.height)
	rasterize(quad.triangles, mgl32.Ident4(), dst.width, dst.height, func(x, y int, _ uint32) {
		u, v := (float32(x)+0.5)/fw, (float32(y)+0.5)/fh
		heat := blend.sample(u, v)[0]

		var c [4]float32
		if heat > 0 && maxWeight > 0 {
			c = ramp.lookup(min(heat/maxWeight, 1))
		}
		if desc.Opaque {
			dst.store(x, y, c)
			return
		}
		dst.store(x, y, over(c, dst.load(x, y)))
	})
	return nil
}

// CopyPass composites src over white into a copy target.
func (d *Device) CopyPass(s, t backend.Target, q backend.MeshBuffer, clear backend.Color) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	src, ok := s.(*target)
	if !ok {
		return fmt.Errorf("software: foreign target %T", s)
	}
	dst, err := asTarget(t, backend.TargetCopy)
	if err != nil {
		return err
	}
	quad, err := asMesh(q)
	if err != nil {
		return err
	}

	dst.clear(clear)
	fw, fh := float32(dst.width), float32(dst.height)
	rasterize(quad.triangles, mgl32.Ident4(), dst.width, dst.height, func(x, y int, _ uint32) {
		c := src.sample((float32(x)+0.5)/fw, (float32(y)+0.5)/fh)
		dst.store(x, y, [4]float32{
			mix(1, c[0], c[3]),
			mix(1, c[1], c[3]),
			mix(1, c[2], c[3]),
			1,
		})
	})
	return nil
}

// CopyToBuffer writes src rows into dst with dst's row pitch.
func (d *Device) CopyToBuffer(s backend.Target, b backend.ReadbackBuffer) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	src, err := asTarget(s, backend.TargetCopy)
	if err != nil {
		return err
	}
	dst, ok := b.(*readbackBuffer)
	if !ok {
		return fmt.Errorf("software: foreign readback buffer %T", b)
	}
	if dst.width != src.width || dst.height != src.height {
		return fmt.Errorf("%w: copy %dx%d into buffer for %dx%d",
			backend.ErrInvalidDimensions, src.width, src.height, dst.width, dst.height)
	}

	row := int(src.width) * 4
	for y := 0; y < int(src.height); y++ {
		off := y * int(dst.bytesPerRow)
		readback.EncodeRGBA32F(dst.data[off:off:off+row*4], src.f[y*row:(y+1)*row])
	}
	return nil
}

// MapRead hands the buffer contents to done from a new goroutine. The
// buffer is empty afterwards.
func (d *Device) MapRead(b backend.ReadbackBuffer, done backend.MapCallback) {
	d.mu.Lock()
	closed := d.closed
	if !closed {
		d.pending.Add(1)
	}
	d.mu.Unlock()

	go func() {
		defer b.Destroy()
		if closed {
			done(nil, backend.ErrClosed)
			return
		}
		defer d.pending.Done()

		rb, ok := b.(*readbackBuffer)
		if !ok {
			done(nil, fmt.Errorf("software: foreign readback buffer %T", b))
			return
		}
		data := rb.data
		rb.data = nil
		done(data, nil)
	}()
}

// Present returns a copy of the surface pixels.
func (d *Device) Present(s backend.Target) (*image.RGBA, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	src, err := asTarget(s, backend.TargetSurface, backend.TargetExport)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, int(src.width), int(src.height)))
	copy(img.Pix, src.b)
	return img, nil
}

// Close waits for outstanding MapRead callbacks and rejects further work.
func (d *Device) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.pending.Wait()
}

// At returns the pixel at (x, y) of a target created by this device.
// Single-channel targets read as (r, 0, 0, 1).
func At(t backend.Target, x, y int) [4]float32 {
	return t.(*target).load(x, y)
}

func over(src, dst [4]float32) [4]float32 {
	a := src[3]
	return [4]float32{
		src[0]*a + dst[0]*(1-a),
		src[1]*a + dst[1]*(1-a),
		src[2]*a + dst[2]*(1-a),
		a + dst[3]*(1-a),
	}
}

func mix(a, b, t float32) float32 {
	return a*(1-t) + b*t
}
