// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package camera maps pan and zoom gestures onto an orthographic viewport
// over longitude/latitude space.
//
// The camera position is the top-left corner of the viewport in degrees.
// The visible area spans width/zoom degrees horizontally and height/zoom
// degrees vertically, and is kept inside longitude [-180, 180] and
// latitude [-90, 80] by Zoom and Translate.
package camera

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// World bounds enforced by Translate, in degrees.
const (
	MaxLongitude = 180.0
	MinLongitude = -180.0
	MaxLatitude  = 80.0
	MinLatitude  = -90.0
)

// Largest viewport extent allowed by Zoom, in degrees.
const (
	MaxViewWidth  = 360.0
	MaxViewHeight = 170.0
)

// minZoom is the zoom a negative zoom request is clamped to.
const minZoom = 0.001

// zoomSensitivity scales accumulated scroll into a zoom delta.
const zoomSensitivity = 0.001

// UniformSize is the size of the view-projection uniform in bytes.
const UniformSize = 64

// Entire-view framing used for max-weight readback and export.
var (
	entireViewPosition = mgl64.Vec2{-180, 90}
	entireViewZoom     = 5.0
	entireViewWidth    = 1800.0
	entireViewHeight   = 900.0
)

// Camera is an orthographic 2D camera with geographic clamping.
// The zero value is not usable; create one with New.
type Camera struct {
	position mgl64.Vec2
	zoom     float64
	width    float64
	height   float64
	aspect   float64

	viewProj mgl64.Mat4
}

// State is a saved camera, used to restore the user's view after an
// entire-view override.
type State struct {
	Position mgl64.Vec2
	Zoom     float64
	Width    float64
	Height   float64
}

// New creates a camera for a viewport of the given size in pixels, at the
// origin with zoom 1 or the smallest zoom that keeps the viewport inside
// the world.
func New(width, height float64) *Camera {
	c := &Camera{zoom: 1}
	c.Resize(width, height)
	return c
}

// Position returns the top-left corner of the viewport in degrees.
func (c *Camera) Position() mgl64.Vec2 { return c.position }

// ZoomLevel returns the current zoom (pixels per degree).
func (c *Camera) ZoomLevel() float64 { return c.zoom }

// Size returns the viewport size in pixels.
func (c *Camera) Size() (width, height float64) { return c.width, c.height }

// Aspect returns width/height.
func (c *Camera) Aspect() float64 { return c.aspect }

// Resize updates the viewport extents and aspect ratio, then zooms in and
// moves the camera as needed to keep the viewport inside the world.
func (c *Camera) Resize(width, height float64) {
	c.setSize(width, height)
	c.Zoom(0, mgl64.Vec2{})
}

func (c *Camera) setSize(width, height float64) {
	c.width = width
	c.height = height
	if height != 0 {
		c.aspect = width / height
	}
	c.rebuild()
}

// MouseConvert converts a screen-space delta into world space: the x axis
// is negated and both axes are divided by the zoom.
func (c *Camera) MouseConvert(d mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{-d.X() / c.zoom, d.Y() / c.zoom}
}

// Zoom adds delta to the zoom, keeping the point under anchor (screen
// pixels) fixed.
//
// delta is reduced so the viewport never exceeds MaxViewWidth by
// MaxViewHeight degrees, and so the zoom stays positive.
func (c *Camera) Zoom(delta float64, anchor mgl64.Vec2) {
	// The positivity guard runs before the size clamps as well as after,
	// so a large negative delta cannot leave an oversized viewport.
	if c.zoom+delta <= 0 {
		delta = -c.zoom + minZoom
	}

	w := c.width / (c.zoom + delta)
	h := c.height / (c.zoom + delta)
	if w > MaxViewWidth {
		delta = c.width/MaxViewWidth - c.zoom
	}
	if h > MaxViewHeight {
		delta = math.Max(delta, c.height/MaxViewHeight-c.zoom)
	}
	if c.zoom+delta <= 0 {
		delta = -c.zoom + minZoom
	}

	scale := (c.zoom + delta) / c.zoom
	c.zoom += delta

	p := c.MouseConvert(anchor)
	c.Translate(p.Sub(p.Mul(scale)))
}

// Translate moves the camera by delta degrees.
//
// Each axis is clamped independently. When a bound would be crossed the
// position snaps to that bound and the axis's movement is discarded.
func (c *Camera) Translate(delta mgl64.Vec2) {
	extent := mgl64.Vec2{c.width / c.zoom, -c.height / c.zoom}
	upper := c.position.Add(delta).Add(extent)
	lower := c.position.Add(delta)

	if upper.X() > MaxLongitude {
		delta[0] = 0
		c.position[0] = MaxLongitude - c.width/c.zoom
	}
	if upper.Y() < MinLatitude {
		delta[1] = 0
		c.position[1] = MinLatitude + c.height/c.zoom
	}
	if lower.Y() > MaxLatitude {
		delta[1] = 0
		c.position[1] = MaxLatitude
	}
	if lower.X() < MinLongitude {
		delta[0] = 0
		c.position[0] = MinLongitude
	}

	c.position = c.position.Add(delta)
	c.rebuild()
}

// Apply runs one frame of gesture input: scroll (accumulated wheel units)
// zooms around cursor, then drag (screen pixels) pans.
func (c *Camera) Apply(scroll float64, cursor, drag mgl64.Vec2) {
	c.Zoom(scroll*c.zoom*zoomSensitivity, cursor)
	c.Translate(c.MouseConvert(drag))
}

// EntireView forces the canonical whole-world framing. No clamping is
// applied.
func (c *Camera) EntireView() {
	c.position = entireViewPosition
	c.zoom = entireViewZoom
	c.setSize(entireViewWidth, entireViewHeight)
}

// Snapshot saves the current camera.
func (c *Camera) Snapshot() State {
	return State{Position: c.position, Zoom: c.zoom, Width: c.width, Height: c.height}
}

// Restore replaces the camera with a saved state as is.
func (c *Camera) Restore(s State) {
	c.position = s.Position
	c.zoom = s.Zoom
	c.setSize(s.Width, s.Height)
}

// Bounds returns the visible world rectangle in degrees.
func (c *Camera) Bounds() (left, right, bottom, top float64) {
	return c.position.X(), c.position.X() + c.width/c.zoom,
		c.position.Y() - c.height/c.zoom, c.position.Y()
}

// ViewProjection returns ortho(0, w, -h, 0, -1, 1) * scale(zoom) * translate(-position).
func (c *Camera) ViewProjection() mgl64.Mat4 { return c.viewProj }

func (c *Camera) rebuild() {
	proj := mgl64.Ortho(0, c.width, -c.height, 0, -1, 1)
	view := mgl64.Scale3D(c.zoom, c.zoom, c.zoom).
		Mul4(mgl64.Translate3D(-c.position.X(), -c.position.Y(), 0))
	c.viewProj = proj.Mul4(view)
}

// UniformBytes returns the view-projection as 16 little-endian float32
// values in column-major order.
func (c *Camera) UniformBytes() []byte {
	buf := make([]byte, 0, UniformSize)
	for _, v := range c.viewProj {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
	}
	return buf
}
