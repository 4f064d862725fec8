//go:build !nogpu

package wgpu

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/camera"
	"github.com/gogpu/heatmap/internal/readback"
	"github.com/gogpu/heatmap/mesh"
)

// newNoopDevice opens a device on the noop HAL backend, which accepts every
// call and keeps buffer contents in memory.
func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	d, err := Open(noop.API{})
	if err != nil {
		t.Fatalf("Open(noop) error = %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func newTarget(t *testing.T, d *Device, kind backend.TargetKind, w, h uint32) backend.Target {
	t.Helper()
	tgt, err := d.NewTarget(backend.TargetDescriptor{Label: kind.String(), Kind: kind, Width: w, Height: h})
	if err != nil {
		t.Fatalf("NewTarget(%s) error = %v", kind, err)
	}
	return tgt
}

func TestOpenNoop(t *testing.T) {
	d := newNoopDevice(t)
	if d.Name() != backend.BackendWGPU {
		t.Errorf("Name() = %q, want %q", d.Name(), backend.BackendWGPU)
	}
	if d.Adapter() != "Noop Adapter" {
		t.Errorf("Adapter() = %q", d.Adapter())
	}
	if got, want := d.Limits().MaxTextureDimension2D, gputypes.DefaultLimits().MaxTextureDimension2D; got != want {
		t.Errorf("MaxTextureDimension2D = %d, want %d", got, want)
	}
}

func TestNewTargetDimensions(t *testing.T) {
	d := newNoopDevice(t)
	maxDim := d.Limits().MaxTextureDimension2D
	tests := []struct {
		name    string
		w, h    uint32
		wantErr bool
	}{
		{"ok", 64, 32, false},
		{"max", maxDim, 1, false},
		{"zero width", 0, 10, true},
		{"zero height", 10, 0, true},
		{"too wide", maxDim + 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt, err := d.NewTarget(backend.TargetDescriptor{Label: tt.name, Kind: backend.TargetSurface, Width: tt.w, Height: tt.h})
			if tt.wantErr {
				if !errors.Is(err, backend.ErrInvalidDimensions) {
					t.Errorf("error = %v, want ErrInvalidDimensions", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if tgt.Width() != tt.w || tgt.Height() != tt.h {
				t.Errorf("size = %dx%d, want %dx%d", tgt.Width(), tgt.Height(), tt.w, tt.h)
			}
			tgt.Destroy()
			tgt.Destroy()
		})
	}
}

func TestWrongTargetKinds(t *testing.T) {
	d := newNoopDevice(t)
	surface := newTarget(t, d, backend.TargetSurface, 8, 8)
	blend := newTarget(t, d, backend.TargetBlend, 8, 8)
	cam, err := d.NewUniform("camera", camera.UniformSize)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.BlendPass(surface, cam, nil); !errors.Is(err, backend.ErrWrongTarget) {
		t.Errorf("BlendPass(surface) error = %v, want ErrWrongTarget", err)
	}
	if _, err := d.NewReadbackBuffer("rb", blend); !errors.Is(err, backend.ErrWrongTarget) {
		t.Errorf("NewReadbackBuffer(blend) error = %v, want ErrWrongTarget", err)
	}
	if _, err := d.Present(blend); !errors.Is(err, backend.ErrWrongTarget) {
		t.Errorf("Present(blend) error = %v, want ErrWrongTarget", err)
	}
}

func TestTargetFormats(t *testing.T) {
	tests := []struct {
		kind backend.TargetKind
		want gputypes.TextureFormat
	}{
		{backend.TargetBlend, gputypes.TextureFormatR16Float},
		{backend.TargetSurface, gputypes.TextureFormatRGBA8Unorm},
		{backend.TargetExport, gputypes.TextureFormatRGBA8UnormSrgb},
		{backend.TargetCopy, gputypes.TextureFormatRGBA32Float},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got, _ := targetFormat(tt.kind); got != tt.want {
				t.Errorf("targetFormat(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestAdditiveBlendState(t *testing.T) {
	b := additiveBlend()
	want := gputypes.BlendState{
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
	if b != want {
		t.Errorf("additiveBlend() = %+v, want %+v", b, want)
	}
}

func TestWriteUniform(t *testing.T) {
	d := newNoopDevice(t)
	u, err := d.NewUniform("max", readback.UniformSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteUniform(u, readback.UniformPayload(3)); err != nil {
		t.Errorf("WriteUniform() error = %v", err)
	}
	if err := d.WriteUniform(u, make([]byte, readback.UniformSize+1)); err == nil {
		t.Error("WriteUniform() oversized write succeeded")
	}
}

func TestFramePasses(t *testing.T) {
	d := newNoopDevice(t)
	const w, h = 40, 20

	m := &mesh.Mesh{
		Vertices: []mesh.Vertex{
			{Position: [3]float32{-10, -10, 0}, Weight: 2},
			{Position: [3]float32{10, -10, 0}, Weight: 2},
			{Position: [3]float32{0, 10, 0}, Weight: 2},
		},
		Indices: []uint32{0, 1, 2},
	}
	heat, err := d.NewMeshBuffer("heat", m)
	if err != nil {
		t.Fatal(err)
	}
	if heat.IndexCount() != 3 {
		t.Errorf("IndexCount() = %d, want 3", heat.IndexCount())
	}
	empty, err := d.NewMeshBuffer("empty", &mesh.Mesh{})
	if err != nil {
		t.Fatal(err)
	}
	quad, err := d.NewMeshBuffer("quad", backend.QuadMesh())
	if err != nil {
		t.Fatal(err)
	}
	cam, _ := d.NewUniform("camera", camera.UniformSize)
	maxU, _ := d.NewUniform("max", readback.UniformSize)
	ramp, err := d.NewColormap("ramp", image.NewRGBA(image.Rect(0, 0, 256, 1)))
	if err != nil {
		t.Fatal(err)
	}

	blend := newTarget(t, d, backend.TargetBlend, w, h)
	surface := newTarget(t, d, backend.TargetSurface, w, h)
	export := newTarget(t, d, backend.TargetExport, w, h)
	cp := newTarget(t, d, backend.TargetCopy, w, h)

	if err := d.BlendPass(blend, cam, heat); err != nil {
		t.Fatalf("BlendPass() error = %v", err)
	}
	if err := d.BlendPass(blend, cam, empty); err != nil {
		t.Fatalf("BlendPass(empty) error = %v", err)
	}
	for _, dst := range []backend.Target{surface, export} {
		opaque := dst == export
		err := d.ColormapPass(&backend.ColormapPassDescriptor{
			Target: dst, Ramp: ramp, Blend: blend, MaxWeight: maxU, Camera: cam,
			Outline: heat, Quad: quad, Opaque: opaque, Clear: backend.Background,
		})
		if err != nil {
			t.Fatalf("ColormapPass(opaque=%v) error = %v", opaque, err)
		}
	}
	for _, dst := range []backend.Target{surface, export} {
		err := d.ColormapPass(&backend.ColormapPassDescriptor{
			Target: dst, Ramp: ramp, Blend: blend, MaxWeight: maxU, Camera: cam,
			Quad: quad, Opaque: dst != export, Clear: backend.Background,
		})
		if !errors.Is(err, backend.ErrWrongTarget) {
			t.Errorf("ColormapPass(%s, opaque=%v) error = %v, want ErrWrongTarget", dst.Kind(), dst != export, err)
		}
	}
	if err := d.CopyPass(surface, cp, quad, backend.White); err != nil {
		t.Fatalf("CopyPass() error = %v", err)
	}

	rb, err := d.NewReadbackBuffer("rb", cp)
	if err != nil {
		t.Fatal(err)
	}
	if want := readback.AlignedBytesPerRow(w, readback.PixelStride); rb.BytesPerRow() != want {
		t.Errorf("BytesPerRow() = %d, want %d", rb.BytesPerRow(), want)
	}
	if err := d.CopyToBuffer(cp, rb); err != nil {
		t.Fatalf("CopyToBuffer() error = %v", err)
	}

	got := make(chan int, 1)
	d.MapRead(rb, func(data []byte, err error) {
		if err != nil {
			t.Errorf("MapRead error = %v", err)
		}
		got <- len(data)
	})
	select {
	case n := <-got:
		if uint64(n) != rb.Size() {
			t.Errorf("mapped %d bytes, want %d", n, rb.Size())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("MapRead callback not called")
	}

	img, err := d.Present(surface)
	if err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, w, h) {
		t.Errorf("Present() bounds = %v", img.Bounds())
	}

	for _, r := range []interface{ Destroy() }{heat, empty, quad, cam, maxU, ramp, blend, surface, export, cp} {
		r.Destroy()
	}
}

func TestPresentReusesStaging(t *testing.T) {
	d := newNoopDevice(t)
	small := newTarget(t, d, backend.TargetSurface, 16, 8)
	large := newTarget(t, d, backend.TargetSurface, 32, 8)

	if _, err := d.Present(small); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	first := d.staging
	if first == nil {
		t.Fatal("no staging buffer kept after Present")
	}
	if _, err := d.Present(small); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if d.staging != first {
		t.Error("staging buffer replaced for an unchanged size")
	}
	if _, err := d.Present(large); err != nil {
		t.Fatalf("Present(large) error = %v", err)
	}
	if want := uint64(readback.AlignedBytesPerRow(32, surfaceBytesPerPixel)) * 8; d.stagingSize != want {
		t.Errorf("stagingSize = %d, want %d", d.stagingSize, want)
	}
}

func TestCopyToBufferSizeMismatch(t *testing.T) {
	d := newNoopDevice(t)
	small := newTarget(t, d, backend.TargetCopy, 4, 4)
	large := newTarget(t, d, backend.TargetCopy, 8, 4)
	rb, err := d.NewReadbackBuffer("rb", small)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.CopyToBuffer(large, rb); !errors.Is(err, backend.ErrInvalidDimensions) {
		t.Errorf("CopyToBuffer() error = %v, want ErrInvalidDimensions", err)
	}
}

func TestClosedDevice(t *testing.T) {
	d, err := Open(noop.API{})
	if err != nil {
		t.Fatal(err)
	}
	cp := newTarget(t, d, backend.TargetCopy, 4, 4)
	rb, err := d.NewReadbackBuffer("rb", cp)
	if err != nil {
		t.Fatal(err)
	}
	d.Close()
	d.Close()

	if _, err := d.NewTarget(backend.TargetDescriptor{Kind: backend.TargetBlend, Width: 1, Height: 1}); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("NewTarget() after Close error = %v, want ErrClosed", err)
	}
	done := make(chan error, 1)
	d.MapRead(rb, func(_ []byte, err error) { done <- err })
	if err := <-done; !errors.Is(err, backend.ErrClosed) {
		t.Errorf("MapRead() after Close error = %v, want ErrClosed", err)
	}
	cp.Destroy()
}
