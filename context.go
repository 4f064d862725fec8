// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package heatmap

import (
	"fmt"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/camera"
	"github.com/gogpu/heatmap/colormap"
	"github.com/gogpu/heatmap/internal/readback"
)

// RenderContext owns the device-side resources that outlive a dataset:
// uniforms, render targets and color ramps. It is created once the surface
// first reports a nonzero size and is resized in place afterwards.
type RenderContext struct {
	Device backend.Device
	Limits backend.Limits

	// Width and Height are the current target size in pixels.
	Width, Height uint32

	Camera    backend.Uniform
	MaxWeight backend.Uniform

	Blend   backend.Target
	Surface backend.Target
	Copy    backend.Target

	DisplayRamp backend.Colormap
	ExportRamp  backend.Colormap

	// export is created on demand at the current size while exporting.
	export backend.Target
}

func newRenderContext(dev backend.Device, width, height uint32) (*RenderContext, error) {
	c := &RenderContext{Device: dev, Limits: dev.Limits()}

	var err error
	if c.Camera, err = dev.NewUniform("camera uniform", camera.UniformSize); err != nil {
		return nil, fmt.Errorf("heatmap: create camera uniform: %w", err)
	}
	if c.MaxWeight, err = dev.NewUniform("max weight uniform", readback.UniformSize); err != nil {
		c.Release()
		return nil, fmt.Errorf("heatmap: create max weight uniform: %w", err)
	}
	if c.DisplayRamp, err = dev.NewColormap("display colormap", colormap.Magma.Image()); err != nil {
		c.Release()
		return nil, fmt.Errorf("heatmap: create display colormap: %w", err)
	}
	if c.ExportRamp, err = dev.NewColormap("export colormap", colormap.Export.Image()); err != nil {
		c.Release()
		return nil, fmt.Errorf("heatmap: create export colormap: %w", err)
	}
	if err := c.Resize(width, height); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

// clampSize limits a size to the device's texture dimension.
func (c *RenderContext) clampSize(width, height uint32) (uint32, uint32) {
	if m := c.Limits.MaxTextureDimension2D; m > 0 {
		width, height = min(width, m), min(height, m)
	}
	return max(width, 1), max(height, 1)
}

// Resize recreates the blend, surface and copy targets at the given size.
// Sizes beyond the device limit are clamped.
func (c *RenderContext) Resize(width, height uint32) error {
	width, height = c.clampSize(width, height)
	if c.Blend != nil && width == c.Width && height == c.Height {
		return nil
	}

	targets := []struct {
		dst  *backend.Target
		kind backend.TargetKind
		name string
	}{
		{&c.Blend, backend.TargetBlend, "blend texture"},
		{&c.Surface, backend.TargetSurface, "surface"},
		{&c.Copy, backend.TargetCopy, "copy texture"},
	}
	for _, t := range targets {
		next, err := c.Device.NewTarget(backend.TargetDescriptor{
			Label: t.name, Kind: t.kind, Width: width, Height: height,
		})
		if err != nil {
			return fmt.Errorf("heatmap: create %s: %w", t.name, err)
		}
		if *t.dst != nil {
			(*t.dst).Destroy()
		}
		*t.dst = next
	}
	c.releaseExport()
	c.Width, c.Height = width, height
	Logger().Debug("heatmap: targets resized", "width", width, "height", height)
	return nil
}

// exportTarget returns the export texture at the current size.
func (c *RenderContext) exportTarget() (backend.Target, error) {
	if c.export != nil && c.export.Width() == c.Width && c.export.Height() == c.Height {
		return c.export, nil
	}
	c.releaseExport()
	t, err := c.Device.NewTarget(backend.TargetDescriptor{
		Label: "export texture", Kind: backend.TargetExport, Width: c.Width, Height: c.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("heatmap: create export texture: %w", err)
	}
	c.export = t
	return t, nil
}

func (c *RenderContext) releaseExport() {
	if c.export != nil {
		c.export.Destroy()
		c.export = nil
	}
}

// Release destroys all resources. The device itself is not closed.
func (c *RenderContext) Release() {
	c.releaseExport()
	for _, t := range []backend.Target{c.Blend, c.Surface, c.Copy} {
		if t != nil {
			t.Destroy()
		}
	}
	for _, u := range []backend.Uniform{c.Camera, c.MaxWeight} {
		if u != nil {
			u.Destroy()
		}
	}
	for _, r := range []backend.Colormap{c.DisplayRamp, c.ExportRamp} {
		if r != nil {
			r.Destroy()
		}
	}
	c.Blend, c.Surface, c.Copy = nil, nil, nil
}
