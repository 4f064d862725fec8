// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package heatcanvas shows heatmap frames in a gogpu window.
//
// A Canvas is a heatmap.Presenter. The renderer hands it each finished
// frame from its own goroutine; the window's draw callback then uploads the
// latest frame to a texture and draws it:
//
//	canvas := heatcanvas.New()
//	r, err := heatmap.New(heatmap.WithPresenter(canvas))
//	...
//	app.OnDraw(func(dc *gogpu.Context) {
//	    _ = canvas.RenderTo(dc.AsTextureDrawer())
//	})
//
// Frames are composed through a gg.Context so the canvas can dim the
// picture while a dataset is loading (see SetDimmed). Textures are created
// lazily through the drawer's gpucontext.TextureCreator and updated in place
// when the frame size is unchanged.
package heatcanvas
