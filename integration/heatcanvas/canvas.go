// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package heatcanvas

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/heatmap"
)

// Common errors returned by Canvas operations.
var (
	// ErrCanvasClosed is returned when operations are attempted on a closed canvas.
	ErrCanvasClosed = errors.New("heatcanvas: canvas is closed")

	// ErrInvalidRenderer is returned when the drawer has no texture creator.
	ErrInvalidRenderer = errors.New("heatcanvas: drawer has no texture creator")
)

// dimAlpha is the opacity of the black overlay drawn by SetDimmed.
const dimAlpha = 0.55

// textureDestroyer matches gogpu.Texture.Destroy.
type textureDestroyer interface {
	Destroy()
}

var _ heatmap.Presenter = (*Canvas)(nil)

// Canvas holds the most recent frame and uploads it on demand.
//
// Present may be called from any goroutine. RenderTo and Close must be
// called from the window's draw thread.
type Canvas struct {
	mu        sync.Mutex
	frame     *image.RGBA
	dirty     bool
	dimmed    bool
	closed    bool
	presented int

	// Draw thread only.
	ctx        *gg.Context
	texture    gpucontext.Texture
	oldTexture gpucontext.Texture
	width      int
	height     int
}

// New creates an empty canvas.
func New() *Canvas {
	return &Canvas{}
}

// Present stores img as the next frame. img must not be modified afterwards.
func (c *Canvas) Present(img *image.RGBA) error {
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCanvasClosed
	}
	c.frame = img
	c.dirty = true
	c.presented++
	return nil
}

// Presented returns the number of frames received.
func (c *Canvas) Presented() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presented
}

// SetDimmed darkens the displayed frame, typically while a dataset loads.
func (c *Canvas) SetDimmed(dimmed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimmed != dimmed {
		c.dimmed = dimmed
		c.dirty = true
	}
}

// Size returns the size of the last uploaded frame.
func (c *Canvas) Size() (width, height int) {
	return c.width, c.height
}

// Texture returns the current texture, or nil before the first upload.
func (c *Canvas) Texture() gpucontext.Texture {
	return c.texture
}

// RenderTo uploads the latest frame if it changed and draws it at (0, 0).
// Nothing is drawn before the first Present.
func (c *Canvas) RenderTo(dc gpucontext.TextureDrawer) error {
	return c.RenderToPosition(dc, 0, 0)
}

// RenderToPosition is RenderTo at an offset in window pixels.
func (c *Canvas) RenderToPosition(dc gpucontext.TextureDrawer, x, y float32) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCanvasClosed
	}
	frame, dirty, dimmed := c.frame, c.dirty, c.dimmed
	c.dirty = false
	c.mu.Unlock()

	if frame == nil {
		return nil
	}
	if dirty || c.texture == nil {
		if err := c.upload(dc, frame, dimmed); err != nil {
			c.mu.Lock()
			c.dirty = true
			c.mu.Unlock()
			return err
		}
	}
	return dc.DrawTexture(c.texture, x, y)
}

// upload composes frame into the gg context and copies it to the texture,
// recreating the texture when the size changed.
func (c *Canvas) upload(dc gpucontext.TextureDrawer, frame *image.RGBA, dimmed bool) error {
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()
	sizeChanged := w != c.width || h != c.height
	if c.ctx == nil {
		c.ctx = gg.NewContext(w, h)
	} else if sizeChanged {
		if err := c.ctx.Resize(w, h); err != nil {
			return fmt.Errorf("heatcanvas: context resize failed: %w", err)
		}
	}
	c.width, c.height = w, h

	c.ctx.DrawImage(gg.ImageBufFromImage(frame), 0, 0)
	if dimmed {
		c.ctx.SetRGBA(0, 0, 0, dimAlpha)
		c.ctx.DrawRectangle(0, 0, float64(w), float64(h))
		if err := c.ctx.Fill(); err != nil {
			return fmt.Errorf("heatcanvas: dim overlay: %w", err)
		}
	}
	data := c.ctx.ResizeTarget().Data()

	if c.texture != nil && !sizeChanged {
		if updater, ok := c.texture.(gpucontext.TextureUpdater); ok {
			if err := updater.UpdateData(data); err != nil {
				return fmt.Errorf("heatcanvas: texture update failed: %w", err)
			}
			return nil
		}
	}

	creator := dc.TextureCreator()
	if creator == nil {
		return ErrInvalidRenderer
	}
	tex, err := creator.NewTextureFromRGBA(w, h, data)
	if err != nil {
		return fmt.Errorf("heatcanvas: NewTextureFromRGBA failed: %w", err)
	}
	if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}

	// The previous texture may still be referenced by in-flight draws; it is
	// destroyed one upload later.
	destroy(c.oldTexture)
	c.oldTexture = c.texture
	c.texture = tex
	heatmap.Logger().Debug("heatcanvas: texture created", "width", w, "height", h)
	return nil
}

func destroy(tex gpucontext.Texture) {
	if d, ok := tex.(textureDestroyer); ok {
		d.Destroy()
	}
}

// Close releases the textures and the drawing context. Close is idempotent.
func (c *Canvas) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.frame = nil
	c.mu.Unlock()

	destroy(c.oldTexture)
	destroy(c.texture)
	c.oldTexture, c.texture = nil, nil
	if c.ctx != nil {
		_ = c.ctx.Close()
		c.ctx = nil
	}
	return nil
}
