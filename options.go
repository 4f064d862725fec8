// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package heatmap

import "github.com/gogpu/heatmap/backend"

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := heatmap.New(
//	    heatmap.WithBackend(backend.BackendSoftware),
//	    heatmap.WithExportSize(3200, 1600),
//	    heatmap.WithExportSink(sink),
//	)
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	backend   string
	device    backend.Device
	exportSet bool
	exportW   uint32
	exportH   uint32
	lods      []LODThreshold
	sink      ExportSink
	presenter Presenter
	busSize   int
	readyFunc func(bool)
}

// defaultBusSize is the message bus capacity.
const defaultBusSize = 64

func defaultOptions() options {
	return options{
		lods:    DefaultLODThresholds,
		busSize: defaultBusSize,
	}
}

// WithBackend selects a registered backend by name. The empty name picks
// the best available backend (wgpu, then software).
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithDevice supplies an already opened device. The renderer does not close
// devices it did not open.
func WithDevice(d backend.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithExportSize sets the export resolution. By default exports are as wide
// as the largest texture the device supports, with a 16:9 aspect.
// Sizes beyond the device limit are clamped.
func WithExportSize(width, height uint32) Option {
	return func(o *options) {
		o.exportSet = true
		o.exportW, o.exportH = width, height
	}
}

// WithLODThresholds replaces the zoom to level-of-detail table.
func WithLODThresholds(table []LODThreshold) Option {
	return func(o *options) {
		o.lods = table
	}
}

// WithExportSink sets the receiver of finished exports.
func WithExportSink(s ExportSink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithPresenter sets the receiver of presented frames.
func WithPresenter(p Presenter) Option {
	return func(o *options) {
		o.presenter = p
	}
}

// WithBusSize sets the message bus capacity.
func WithBusSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.busSize = n
		}
	}
}

// WithReadyFunc registers a callback for changes of the ready signal.
// It is called from the dispatcher goroutine.
func WithReadyFunc(fn func(ready bool)) Option {
	return func(o *options) {
		o.readyFunc = fn
	}
}
