// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/camera"
	"github.com/gogpu/heatmap/internal/readback"
	"github.com/gogpu/heatmap/mesh"
)

func rect(x0, y0, x1, y1 float64) [][2]float64 {
	return [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
}

// worldFixture renders at one pixel per degree: world (lon, lat) lands on
// pixel (lon+180, 90-lat).
type worldFixture struct {
	dev    *Device
	blend  backend.Target
	camera backend.Uniform
	heat   backend.MeshBuffer
	quad   backend.MeshBuffer
}

func newWorldFixture(t *testing.T) *worldFixture {
	t.Helper()
	dev := New()
	t.Cleanup(dev.Close)

	set, err := mesh.Build([][][2]float64{rect(0, 0, 10, 10), rect(5, 5, 15, 15)}, []uint64{2, 5}, []float64{0})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	f := &worldFixture{dev: dev}
	if f.blend, err = dev.NewTarget(backend.TargetDescriptor{Label: "blend", Kind: backend.TargetBlend, Width: 360, Height: 180}); err != nil {
		t.Fatal(err)
	}
	if f.camera, err = dev.NewUniform("camera", camera.UniformSize); err != nil {
		t.Fatal(err)
	}
	if f.heat, err = dev.NewMeshBuffer("heat", &set[0]); err != nil {
		t.Fatal(err)
	}
	if f.quad, err = dev.NewMeshBuffer("quad", backend.QuadMesh()); err != nil {
		t.Fatal(err)
	}

	cam := camera.New(360, 180)
	cam.EntireView()
	if err := dev.WriteUniform(f.camera, cam.UniformBytes()); err != nil {
		t.Fatal(err)
	}
	if err := dev.BlendPass(f.blend, f.camera, f.heat); err != nil {
		t.Fatalf("BlendPass() error = %v", err)
	}
	return f
}

func TestBlendPassAccumulates(t *testing.T) {
	f := newWorldFixture(t)

	tests := []struct {
		name string
		x, y int
		want float32
	}{
		{"first only", 182, 87, 2},
		{"overlap", 187, 82, 7},
		{"second only", 192, 77, 5},
		{"outside", 10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := At(f.blend, tt.x, tt.y)[0]; got != tt.want {
				t.Errorf("At(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestBlendPassNoSeams(t *testing.T) {
	// The two triangles of each rectangle share a diagonal; no pixel may be
	// counted twice.
	f := newWorldFixture(t)
	for y := 0; y < 180; y++ {
		for x := 0; x < 360; x++ {
			switch v := At(f.blend, x, y)[0]; v {
			case 0, 2, 5, 7:
			default:
				t.Fatalf("At(%d, %d) = %v, want one of 0, 2, 5, 7", x, y, v)
			}
		}
	}
}

func TestMaxWeightRoundTrip(t *testing.T) {
	f := newWorldFixture(t)
	dev := f.dev

	cp, err := dev.NewTarget(backend.TargetDescriptor{Label: "copy", Kind: backend.TargetCopy, Width: 360, Height: 180})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.CopyPass(f.blend, cp, f.quad, backend.White); err != nil {
		t.Fatalf("CopyPass() error = %v", err)
	}
	buf, err := dev.NewReadbackBuffer("readback", cp)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := buf.BytesPerRow(), readback.AlignedBytesPerRow(360, readback.PixelStride); got != want {
		t.Errorf("BytesPerRow() = %d, want %d", got, want)
	}
	if err := dev.CopyToBuffer(cp, buf); err != nil {
		t.Fatalf("CopyToBuffer() error = %v", err)
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	dev.MapRead(buf, func(data []byte, err error) { ch <- result{data, err} })
	r := <-ch
	if r.err != nil {
		t.Fatalf("MapRead() error = %v", r.err)
	}

	got, err := readback.MaxWeight(r.data)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("MaxWeight() = %v, want 7", got)
	}

	px, err := readback.Pixels(r.data, 360, 180, buf.BytesPerRow())
	if err != nil {
		t.Fatal(err)
	}
	if len(px) != 360*180*4 {
		t.Errorf("len(Pixels()) = %d, want %d", len(px), 360*180*4)
	}
}

func ramp() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 256, 1))
	for x := 0; x < 256; x++ {
		img.SetRGBA(x, 0, color.RGBA{R: uint8(x), G: 0, B: 255 - uint8(x), A: 255})
	}
	return img
}

func TestColormapPass(t *testing.T) {
	f := newWorldFixture(t)
	dev := f.dev

	surface, _ := dev.NewTarget(backend.TargetDescriptor{Label: "surface", Kind: backend.TargetSurface, Width: 360, Height: 180})
	cm, err := dev.NewColormap("ramp", ramp())
	if err != nil {
		t.Fatal(err)
	}
	maxU, _ := dev.NewUniform("max", readback.UniformSize)
	if err := dev.WriteUniform(maxU, readback.UniformPayload(7)); err != nil {
		t.Fatal(err)
	}

	desc := &backend.ColormapPassDescriptor{
		Target:    surface,
		Ramp:      cm,
		Blend:     f.blend,
		MaxWeight: maxU,
		Camera:    f.camera,
		Quad:      f.quad,
		Clear:     backend.Background,
	}
	if err := dev.ColormapPass(desc); err != nil {
		t.Fatalf("ColormapPass() error = %v", err)
	}

	img, err := dev.Present(surface)
	if err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if got := img.RGBAAt(187, 82); got.R != 255 || got.B != 0 {
		t.Errorf("overlap pixel = %v, want top of ramp", got)
	}
	if got := img.RGBAAt(10, 10); got != (color.RGBA{R: 5, G: 5, B: 5, A: 255}) {
		t.Errorf("background pixel = %v, want clear color", got)
	}
	if got := img.RGBAAt(182, 87); got.R >= got.B {
		t.Errorf("weight 2 pixel = %v, want low end of ramp", got)
	}
}

func TestColormapPassOpaqueLeavesNoHeatTransparent(t *testing.T) {
	f := newWorldFixture(t)
	dev := f.dev

	export, _ := dev.NewTarget(backend.TargetDescriptor{Label: "export", Kind: backend.TargetExport, Width: 360, Height: 180})
	cm, _ := dev.NewColormap("ramp", ramp())
	maxU, _ := dev.NewUniform("max", readback.UniformSize)
	_ = dev.WriteUniform(maxU, readback.UniformPayload(7))

	err := dev.ColormapPass(&backend.ColormapPassDescriptor{
		Target: export, Ramp: cm, Blend: f.blend, MaxWeight: maxU,
		Camera: f.camera, Quad: f.quad, Opaque: true, Clear: backend.Background,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := At(export, 10, 10)[3]; got != 0 {
		t.Errorf("alpha without heat = %v, want 0", got)
	}

	cp, _ := dev.NewTarget(backend.TargetDescriptor{Label: "copy", Kind: backend.TargetCopy, Width: 360, Height: 180})
	if err := dev.CopyPass(export, cp, f.quad, backend.White); err != nil {
		t.Fatal(err)
	}
	if got := At(cp, 10, 10); got != [4]float32{1, 1, 1, 1} {
		t.Errorf("copy without heat = %v, want white", got)
	}
}

func TestWrongTargetKinds(t *testing.T) {
	f := newWorldFixture(t)
	dev := f.dev
	surface, _ := dev.NewTarget(backend.TargetDescriptor{Kind: backend.TargetSurface, Width: 4, Height: 4})

	if err := dev.BlendPass(surface, f.camera, f.heat); !errors.Is(err, backend.ErrWrongTarget) {
		t.Errorf("BlendPass(surface) error = %v, want ErrWrongTarget", err)
	}
	if _, err := dev.NewReadbackBuffer("rb", f.blend); !errors.Is(err, backend.ErrWrongTarget) {
		t.Errorf("NewReadbackBuffer(blend) error = %v, want ErrWrongTarget", err)
	}
	if err := dev.CopyToBuffer(f.blend, nil); !errors.Is(err, backend.ErrWrongTarget) {
		t.Errorf("CopyToBuffer(blend) error = %v, want ErrWrongTarget", err)
	}
	err := dev.ColormapPass(&backend.ColormapPassDescriptor{
		Target: surface, Blend: f.blend, Camera: f.camera, Quad: f.quad, Opaque: true,
	})
	if !errors.Is(err, backend.ErrWrongTarget) {
		t.Errorf("ColormapPass(surface, opaque) error = %v, want ErrWrongTarget", err)
	}
}

func TestNewTargetDimensions(t *testing.T) {
	dev := New()
	defer dev.Close()

	tests := []struct {
		name string
		w, h uint32
	}{
		{"zero width", 0, 10},
		{"zero height", 10, 0},
		{"too wide", MaxTextureDimension + 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dev.NewTarget(backend.TargetDescriptor{Kind: backend.TargetBlend, Width: tt.w, Height: tt.h})
			if !errors.Is(err, backend.ErrInvalidDimensions) {
				t.Errorf("NewTarget() error = %v, want ErrInvalidDimensions", err)
			}
		})
	}
}

func TestClosedDevice(t *testing.T) {
	dev := New()
	cp, _ := dev.NewTarget(backend.TargetDescriptor{Kind: backend.TargetCopy, Width: 2, Height: 2})
	buf, _ := dev.NewReadbackBuffer("rb", cp)
	dev.Close()

	if _, err := dev.NewUniform("u", 4); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("NewUniform() after Close error = %v, want ErrClosed", err)
	}
	done := make(chan error, 1)
	dev.MapRead(buf, func(_ []byte, err error) { done <- err })
	if err := <-done; !errors.Is(err, backend.ErrClosed) {
		t.Errorf("MapRead() after Close error = %v, want ErrClosed", err)
	}
}

func TestWriteUniformTooLarge(t *testing.T) {
	dev := New()
	defer dev.Close()
	u, _ := dev.NewUniform("u", 4)
	if err := dev.WriteUniform(u, make([]byte, 8)); err == nil {
		t.Error("WriteUniform() with oversized payload succeeded")
	}
}
