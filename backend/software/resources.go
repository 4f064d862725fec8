// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/mesh"
)

// target stores pixels either as float32 channels (blend and copy targets)
// or as 8-bit RGBA (surface and export targets).
type target struct {
	label  string
	kind   backend.TargetKind
	width  uint32
	height uint32

	f        []float32
	channels int
	b        []uint8
}

func newTarget(desc backend.TargetDescriptor) *target {
	t := &target{label: desc.Label, kind: desc.Kind, width: desc.Width, height: desc.Height}
	n := int(desc.Width) * int(desc.Height)
	switch desc.Kind {
	case backend.TargetBlend:
		t.channels = 1
		t.f = make([]float32, n)
	case backend.TargetCopy:
		t.channels = 4
		t.f = make([]float32, n*4)
	default:
		t.b = make([]uint8, n*4)
	}
	return t
}

func (t *target) Kind() backend.TargetKind { return t.kind }
func (t *target) Width() uint32            { return t.width }
func (t *target) Height() uint32           { return t.height }

func (t *target) Destroy() {
	t.f = nil
	t.b = nil
}

// load returns the pixel at (x, y). Single-channel targets read as (r, 0, 0, 1).
func (t *target) load(x, y int) [4]float32 {
	i := y*int(t.width) + x
	switch {
	case t.b != nil:
		p := t.b[i*4 : i*4+4 : i*4+4]
		return [4]float32{unorm(p[0]), unorm(p[1]), unorm(p[2]), unorm(p[3])}
	case t.channels == 1:
		return [4]float32{t.f[i], 0, 0, 1}
	default:
		p := t.f[i*4 : i*4+4 : i*4+4]
		return [4]float32{p[0], p[1], p[2], p[3]}
	}
}

func (t *target) store(x, y int, c [4]float32) {
	i := y*int(t.width) + x
	switch {
	case t.b != nil:
		p := t.b[i*4 : i*4+4 : i*4+4]
		p[0], p[1], p[2], p[3] = quantize(c[0]), quantize(c[1]), quantize(c[2]), quantize(c[3])
	case t.channels == 1:
		t.f[i] = c[0]
	default:
		copy(t.f[i*4:i*4+4], c[:])
	}
}

func (t *target) clear(c backend.Color) {
	v := [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
	for y := 0; y < int(t.height); y++ {
		for x := 0; x < int(t.width); x++ {
			t.store(x, y, v)
		}
	}
}

// sample returns the texel nearest to the normalized coordinate (u, v).
func (t *target) sample(u, v float32) [4]float32 {
	x := clampInt(int(u*float32(t.width)), 0, int(t.width)-1)
	y := clampInt(int(v*float32(t.height)), 0, int(t.height)-1)
	return t.load(x, y)
}

func unorm(v uint8) float32 { return float32(v) / 255 }

func quantize(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// meshBuffer holds a de-indexed triangle list.
type meshBuffer struct {
	label      string
	triangles  []mesh.Vertex
	indexCount uint32
}

func (m *meshBuffer) IndexCount() uint32 { return m.indexCount }
func (m *meshBuffer) Destroy()           { m.triangles = nil }

type uniform struct {
	label string
	data  []byte
}

func (u *uniform) Size() uint64 { return uint64(len(u.data)) }
func (u *uniform) Destroy()     {}

type readbackBuffer struct {
	label       string
	width       uint32
	height      uint32
	bytesPerRow uint32
	data        []byte
}

func (r *readbackBuffer) Width() uint32       { return r.width }
func (r *readbackBuffer) Height() uint32      { return r.height }
func (r *readbackBuffer) BytesPerRow() uint32 { return r.bytesPerRow }
func (r *readbackBuffer) Size() uint64        { return uint64(len(r.data)) }
func (r *readbackBuffer) Destroy()            { r.data = nil }

// rampSize is the number of texels in a colormap ramp.
const rampSize = 256

type colormap struct {
	label string
	texel [rampSize][4]float32
}

func (c *colormap) Destroy() {}

// lookup returns the ramp color for an intensity in [0, 1].
func (c *colormap) lookup(v float32) [4]float32 {
	i := clampInt(int(v*(rampSize-1)+0.5), 0, rampSize-1)
	return c.texel[i]
}
