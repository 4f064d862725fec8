// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package colormap builds the 1-D color ramps sampled by the colormap pass.
//
// A ramp is a list of color stops interpolated with a gg linear gradient
// and rasterized into a Width×1 RGBA image, which the backend uploads as a
// texture. Intensity 0 maps to the left edge and the max weight to the
// right edge.
package colormap

import (
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
)

// Width is the number of texels in a ramp image.
const Width = 256

// Stop is one color stop of a ramp. Offset is in [0, 1].
type Stop struct {
	Offset float64
	Color  gg.RGBA
}

// Ramp is a named color ramp.
type Ramp struct {
	Name  string
	Stops []Stop
}

// Magma is the display ramp: dark purple through orange to pale yellow.
var Magma = Ramp{
	Name: "magma",
	Stops: []Stop{
		{0, gg.Hex("#000004")},
		{0.13, gg.Hex("#1c1044")},
		{0.25, gg.Hex("#3b0f70")},
		{0.38, gg.Hex("#641a80")},
		{0.5, gg.Hex("#8c2981")},
		{0.63, gg.Hex("#b73779")},
		{0.75, gg.Hex("#de4968")},
		{0.88, gg.Hex("#fe9f6d")},
		{1, gg.Hex("#fcfdbf")},
	},
}

// Export is the ramp used for exported images, which are composited onto
// a white background.
var Export = Ramp{
	Name: "export",
	Stops: []Stop{
		{0, gg.Hex("#ffffb2")},
		{0.25, gg.Hex("#fecc5c")},
		{0.5, gg.Hex("#fd8d3c")},
		{0.75, gg.Hex("#f03b20")},
		{1, gg.Hex("#bd0026")},
	},
}

var ramps = map[string]Ramp{
	Magma.Name:  Magma,
	Export.Name: Export,
}

// ByName returns a built-in ramp.
func ByName(name string) (Ramp, bool) {
	r, ok := ramps[name]
	return r, ok
}

func (r Ramp) gradient() *gg.LinearGradientBrush {
	return r.Brush(0, 0, Width-1, 0)
}

// Brush returns the ramp as a gradient brush running from (x0, y0) to
// (x1, y1), for drawing legends.
func (r Ramp) Brush(x0, y0, x1, y1 float64) *gg.LinearGradientBrush {
	g := gg.NewLinearGradientBrush(x0, y0, x1, y1)
	for _, s := range r.Stops {
		g.AddColorStop(s.Offset, s.Color)
	}
	return g
}

// At returns the ramp color at t in [0, 1]. Values outside are clamped.
func (r Ramp) At(t float64) gg.RGBA {
	return r.gradient().ColorAt(t*(Width-1), 0)
}

// Image rasterizes the ramp into a Width×1 image.
func (r Ramp) Image() *image.RGBA {
	g := r.gradient()
	img := image.NewRGBA(image.Rect(0, 0, Width, 1))
	for x := 0; x < Width; x++ {
		img.SetRGBA(x, 0, toRGBA(g.ColorAt(float64(x), 0)))
	}
	return img
}

func toRGBA(c gg.RGBA) color.RGBA {
	return color.RGBA{R: channel(c.R * c.A), G: channel(c.G * c.A), B: channel(c.B * c.A), A: channel(c.A)}
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
