// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/heatmap/mesh"
)

// decodeMatrix reads a column-major float32 matrix from a camera uniform.
func decodeMatrix(data []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		if len(data) < (i+1)*4 {
			return mgl32.Ident4()
		}
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return m
}

type screenPoint struct{ x, y float64 }

// toScreen maps a vertex through mvp and the viewport transform.
// Pixel (0, 0) is the top-left corner.
func toScreen(v mesh.Vertex, mvp mgl32.Mat4, width, height uint32) screenPoint {
	clip := mvp.Mul4x1(mgl32.Vec4{v.Position[0], v.Position[1], v.Position[2], 1})
	w := clip.W()
	if w == 0 {
		w = 1
	}
	nx, ny := float64(clip.X()/w), float64(clip.Y()/w)
	return screenPoint{
		x: snap((nx + 1) * 0.5 * float64(width)),
		y: snap((1 - ny) * 0.5 * float64(height)),
	}
}

// subpixel is the vertex snapping precision, as on GPU rasterizers.
const subpixel = 256

func snap(v float64) float64 {
	return math.Round(v*subpixel) / subpixel
}

// edge is positive when p lies to the right of a->b in y-down screen space.
// The result for b->a is the exact negation, so adjacent triangles agree
// on which side of a shared edge a pixel centre falls.
func edge(a, b, p screenPoint) float64 {
	if b.x < a.x || (b.x == a.x && b.y < a.y) {
		return -edgeOrdered(b, a, p)
	}
	return edgeOrdered(a, b, p)
}

func edgeOrdered(a, b, p screenPoint) float64 {
	return (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
}

// owns reports whether a pixel centre exactly on edge a->b belongs to this
// triangle. Two triangles sharing an edge traverse it in opposite
// directions, so exactly one of them owns it.
func owns(a, b screenPoint) bool {
	dy, dx := b.y-a.y, b.x-a.x
	return dy > 0 || (dy == 0 && dx < 0)
}

func inside(e float64, a, b screenPoint) bool {
	return e > 0 || (e == 0 && owns(a, b))
}

// fragment is called once for every covered pixel centre with the weight of
// the triangle being drawn.
type fragment func(x, y int, weight uint32)

// rasterize draws a de-indexed triangle list into a width×height grid.
func rasterize(tris []mesh.Vertex, mvp mgl32.Mat4, width, height uint32, frag fragment) {
	for i := 0; i+2 < len(tris); i += 3 {
		a := toScreen(tris[i], mvp, width, height)
		b := toScreen(tris[i+1], mvp, width, height)
		c := toScreen(tris[i+2], mvp, width, height)
		area := edge(a, b, c)
		if area == 0 {
			continue
		}
		if area < 0 {
			b, c = c, b
		}
		triangle(a, b, c, width, height, tris[i].Weight, frag)
	}
}

func triangle(a, b, c screenPoint, width, height uint32, weight uint32, frag fragment) {
	minX := math.Min(a.x, math.Min(b.x, c.x))
	maxX := math.Max(a.x, math.Max(b.x, c.x))
	minY := math.Min(a.y, math.Min(b.y, c.y))
	maxY := math.Max(a.y, math.Max(b.y, c.y))

	x0 := clampInt(int(math.Ceil(minX-0.5)), 0, int(width))
	x1 := clampInt(int(math.Floor(maxX-0.5)), -1, int(width)-1)
	y0 := clampInt(int(math.Ceil(minY-0.5)), 0, int(height))
	y1 := clampInt(int(math.Floor(maxY-0.5)), -1, int(height)-1)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			p := screenPoint{float64(x) + 0.5, float64(y) + 0.5}
			if inside(edge(a, b, p), a, b) &&
				inside(edge(b, c, p), b, c) &&
				inside(edge(c, a, p), c, a) {
				frag(x, y, weight)
			}
		}
	}
}
