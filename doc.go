// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package heatmap renders weighted polygon coverage as a pannable, zoomable
// world heatmap and exports it at high resolution.
//
// # Overview
//
// Polygons and weights are meshed into levels of detail by package mesh
// and installed with an IncomingData message. Each frame the Renderer
//
//   - accumulates the zoom-selected heat mesh into a single-channel float
//     texture with additive blending (the blend pass),
//   - on the first frame of a dataset copies that texture back to the host
//     to find the maximum weight (the max-weight readback),
//   - maps intensity / max weight through a color ramp onto the surface or
//     an export texture (the colormap pass),
//   - and, when an export was requested, copies the export texture back to
//     the host and hands it to an ExportSink.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/heatmap"
//	    _ "github.com/gogpu/heatmap/backend/software"
//	)
//
//	r, err := heatmap.New(heatmap.WithExportSink(sink))
//	go r.Run(ctx)
//	r.Bus().Post(heatmap.Resized{Width: 1280, Height: 720})
//	r.Bus().Post(heatmap.IncomingData{Dataset: ds})
//	r.Redraw()
//
// # Concurrency
//
// A single dispatcher goroutine (Run) owns the State. Device readbacks
// complete on backend goroutines and post MaxWeightMapped or ExportMapped
// messages tagged with a generation; completions whose generation was
// superseded by a newer dataset or export are dropped.
//
// # Logging
//
// Nothing is logged by default. Use SetLogger to enable log/slog output
// for the renderer, the mesh builder and the GPU backend.
package heatmap
