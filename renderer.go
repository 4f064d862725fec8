// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package heatmap

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/camera"
	"github.com/gogpu/heatmap/internal/readback"
)

// exportAspect is the width:height ratio of default-size exports.
const exportAspect = 16.0 / 9.0

// ExportImage is a finished export: Width*Height RGBA pixels as float32 in
// [0, 1], row-major from the top-left corner, composited over white.
type ExportImage struct {
	Pixels    []float32
	Width     uint32
	Height    uint32
	MaxWeight float32
}

// ExportSink receives finished exports on the dispatcher goroutine.
type ExportSink interface {
	Export(img ExportImage) error
}

// ExportSinkFunc adapts a function to ExportSink.
type ExportSinkFunc func(img ExportImage) error

// Export calls f(img).
func (f ExportSinkFunc) Export(img ExportImage) error { return f(img) }

// Presenter receives each presented frame on the dispatcher goroutine.
type Presenter interface {
	Present(img *image.RGBA) error
}

// Renderer sequences the heatmap passes. All state changes happen on the
// goroutine that calls Dispatch (normally Run); other goroutines talk to
// it through the Bus, the Input accumulator and the ready signal.
type Renderer struct {
	opts  options
	bus   *Bus
	input Input

	state   State
	device  backend.Device
	owned   bool
	opening bool
	width   uint32
	height  uint32
	pending *IncomingData

	dataGen   uint64
	exportGen uint64

	// loads issues load tickets; awaiting is the newest ticket whose
	// dataset has not arrived, or zero.
	loads    atomic.Uint64
	awaiting uint64

	ready   atomic.Bool
	readyCh chan bool

	closeOnce sync.Once
}

// New creates a renderer in the Uninitialized state. The device is
// acquired after the first nonzero Resized message.
func New(opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := checkLODTable(o.lods); err != nil {
		return nil, err
	}
	if o.exportSet && (o.exportW == 0 || o.exportH == 0) {
		return nil, ErrExportSize
	}
	return &Renderer{
		opts:    o,
		bus:     NewBus(o.busSize),
		state:   Uninitialized{},
		readyCh: make(chan bool, 1),
	}, nil
}

// Bus returns the renderer's message bus.
func (r *Renderer) Bus() *Bus { return r.bus }

// Input returns the pointer accumulator drained once per frame.
func (r *Renderer) Input() *Input { return &r.input }

// State returns the current state. It must only be called from the
// dispatcher goroutine.
func (r *Renderer) State() State { return r.state }

// IsReady reports whether geometry for the latest dataset is installed.
func (r *Renderer) IsReady() bool { return r.ready.Load() }

// Ready delivers the latest value of the ready signal whenever it changes.
// Only the most recent value is buffered.
func (r *Renderer) Ready() <-chan bool { return r.readyCh }

// BeginLoad posts LoadStarted with a fresh load ticket and returns the
// ticket. Call it when a dataset starts meshing and tag the resulting
// IncomingData or LoadFailed with the ticket. It is safe from any
// goroutine.
func (r *Renderer) BeginLoad() uint64 {
	load := r.loads.Add(1)
	r.bus.Post(LoadStarted{Load: load})
	return load
}

// RequestExport asks for an export. It is safe from any goroutine.
func (r *Renderer) RequestExport() bool { return r.bus.Post(ExportRequested{}) }

// Redraw asks for a frame. It is safe from any goroutine.
func (r *Renderer) Redraw() bool { return r.bus.Post(RedrawRequested{}) }

func (r *Renderer) setReady(v bool) {
	if r.ready.Swap(v) == v {
		return
	}
	select {
	case <-r.readyCh:
	default:
	}
	select {
	case r.readyCh <- v:
	default:
	}
	if r.opts.readyFunc != nil {
		r.opts.readyFunc(v)
	}
}

// Run dispatches bus messages until ctx is done or a fatal error occurs,
// then closes the renderer.
func (r *Renderer) Run(ctx context.Context) error {
	defer r.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.bus.Done():
			return ErrClosed
		case msg := <-r.bus.Messages():
			if err := r.Dispatch(msg); err != nil {
				return err
			}
		}
	}
}

// Close releases the state's resources and the device if the renderer
// opened it. It is idempotent.
func (r *Renderer) Close() {
	r.closeOnce.Do(func() {
		r.bus.Close()
		if s, ok := r.state.(Ready); ok {
			if s.Geometry != nil {
				s.Geometry.Release()
			}
			s.Context.Release()
		}
		r.state = Uninitialized{}
		if r.device != nil {
			devices.remove(r.device)
			if r.owned {
				r.device.Close()
			}
			r.device = nil
		}
	})
}

// Dispatch handles one message. A non-nil error is fatal for the session.
func (r *Renderer) Dispatch(msg Message) error {
	switch m := msg.(type) {
	case Resized:
		return r.onResized(m)
	case ContextReady:
		return r.onContextReady(m)
	case LoadStarted:
		r.awaiting = max(r.awaiting, m.Load)
		r.setReady(false)
		return nil
	case LoadFailed:
		if m.Load >= r.awaiting {
			r.awaiting = 0
			s, ok := r.state.(Ready)
			r.setReady(ok && s.Geometry != nil)
		}
		return nil
	case IncomingData:
		return r.onIncomingData(m)
	case MaxWeightMapped:
		return r.onMaxWeightMapped(m)
	case ExportMapped:
		return r.onExportMapped(m)
	case RedrawRequested:
		return r.RenderFrame()
	case ExportRequested:
		return r.onExportRequested()
	default:
		return fmt.Errorf("heatmap: unknown message %T", msg)
	}
}

func (r *Renderer) onResized(m Resized) error {
	if m.Width == 0 || m.Height == 0 {
		return nil
	}
	switch s := r.state.(type) {
	case Uninitialized:
		r.width, r.height = m.Width, m.Height
		if !r.opening {
			r.opening = true
			r.acquireDevice()
		}
		return nil
	case Ready:
		if s.Exporting() {
			s.export.restoreW, s.export.restoreH = m.Width, m.Height
			r.state = s
			return nil
		}
		if err := s.Context.Resize(m.Width, m.Height); err != nil {
			return err
		}
		if s.saved == nil {
			s.Camera.Resize(float64(s.Context.Width), float64(s.Context.Height))
		}
		r.state = s
	}
	return nil
}

// acquireDevice opens the device on its own goroutine and reports the
// result as ContextReady.
func (r *Renderer) acquireDevice() {
	go func() {
		dev, err := r.opts.device, error(nil)
		if dev == nil {
			dev, err = backend.Open(r.opts.backend)
		}
		if !r.bus.Post(ContextReady{Device: dev, Err: err}) && err == nil && r.opts.device == nil {
			dev.Close()
		}
	}()
}

func (r *Renderer) onContextReady(m ContextReady) error {
	if _, ok := r.state.(Uninitialized); !ok {
		Logger().Debug("heatmap: duplicate context ready ignored")
		return nil
	}
	if m.Err != nil {
		return fmt.Errorf("heatmap: acquire device: %w", m.Err)
	}

	r.device, r.owned = m.Device, r.opts.device == nil
	devices.add(r.device)
	propagateLogger(r.device, Logger())

	ctx, err := newRenderContext(r.device, r.width, r.height)
	if err != nil {
		return err
	}
	r.state = Ready{
		Context: ctx,
		Camera:  camera.New(float64(ctx.Width), float64(ctx.Height)),
	}
	Logger().Info("heatmap: context ready",
		"backend", r.device.Name(), "width", ctx.Width, "height", ctx.Height,
		"max_texture", ctx.Limits.MaxTextureDimension2D)

	if r.pending != nil {
		m := *r.pending
		r.pending = nil
		return r.onIncomingData(m)
	}
	return nil
}

func (r *Renderer) onIncomingData(m IncomingData) error {
	s, ok := r.state.(Ready)
	if !ok {
		r.pending = &m
		return nil
	}

	geom, err := newGeometry(s.Context.Device, m.Dataset)
	if err != nil {
		return fmt.Errorf("heatmap: upload geometry: %w", err)
	}
	if s.Geometry != nil {
		s.Geometry.Release()
	}
	s.Geometry = geom
	s.MaxWeight = MaxWeightEmpty
	s.Peak = 0
	r.dataGen++

	if s, err = r.cancelExport(s); err != nil {
		return err
	}
	r.state = s
	if m.Load >= r.awaiting {
		r.awaiting = 0
		r.setReady(true)
	} else {
		Logger().Debug("heatmap: newer dataset still meshing", "load", m.Load, "awaiting", r.awaiting)
	}
	Logger().Info("heatmap: dataset installed",
		"generation", r.dataGen, "heat_lods", len(geom.Heat), "outline_lods", len(geom.Outline))
	return nil
}

func (r *Renderer) onExportRequested() error {
	s, ok := r.state.(Ready)
	if !ok {
		Logger().Debug("heatmap: export requested before context ready")
		return nil
	}
	s.export.requested = true
	r.state = s
	return nil
}

// cancelExport drops any requested or running export and restores the
// viewport size.
func (r *Renderer) cancelExport(s Ready) (Ready, error) {
	if !s.export.requested && !s.Exporting() {
		return s, nil
	}
	if s.Exporting() {
		if err := s.Context.Resize(s.export.restoreW, s.export.restoreH); err != nil {
			return s, err
		}
		Logger().Debug("heatmap: export discarded", "generation", r.exportGen)
	}
	s.export = exportState{}
	return s, nil
}

// finishExport ends the running export and restores the viewport size.
// The user camera is restored by the next frame.
func (r *Renderer) finishExport(s Ready) (Ready, error) {
	err := s.Context.Resize(s.export.restoreW, s.export.restoreH)
	s.Context.releaseExport()
	s.export = exportState{}
	return s, err
}

func (r *Renderer) onMaxWeightMapped(m MaxWeightMapped) error {
	s, ok := r.state.(Ready)
	if !ok || m.Generation != r.dataGen || s.MaxWeight != MaxWeightInProgress {
		Logger().Debug("heatmap: stale max weight readback dropped",
			"generation", m.Generation, "current", r.dataGen)
		return nil
	}
	if m.Err != nil {
		return fmt.Errorf("heatmap: map max weight buffer: %w", m.Err)
	}

	v, err := readback.MaxWeight(m.Data)
	if err != nil {
		return fmt.Errorf("heatmap: decode max weight: %w", err)
	}
	if err := s.Context.Device.WriteUniform(s.Context.MaxWeight, readback.UniformPayload(v)); err != nil {
		return fmt.Errorf("heatmap: write max weight: %w", err)
	}
	s.MaxWeight = MaxWeightCompleted
	s.Peak = v
	r.state = s
	Logger().Info("heatmap: max weight", "value", v, "generation", m.Generation)
	return nil
}

func (r *Renderer) onExportMapped(m ExportMapped) error {
	s, ok := r.state.(Ready)
	if !ok || m.Generation != r.exportGen || s.export.phase != exportMapping {
		Logger().Debug("heatmap: stale export readback dropped",
			"generation", m.Generation, "current", r.exportGen)
		return nil
	}
	if m.Err != nil {
		return fmt.Errorf("heatmap: map export buffer: %w", m.Err)
	}

	px, err := readback.Pixels(m.Data, m.Width, m.Height, m.BytesPerRow)
	if err != nil {
		return fmt.Errorf("heatmap: decode export: %w", err)
	}
	s, err = r.finishExport(s)
	r.state = s
	if err != nil {
		return err
	}

	Logger().Info("heatmap: export done", "width", m.Width, "height", m.Height)
	if r.opts.sink != nil {
		img := ExportImage{Pixels: px, Width: m.Width, Height: m.Height, MaxWeight: s.Peak}
		if err := r.opts.sink.Export(img); err != nil {
			Logger().Warn("heatmap: export sink failed", "err", err)
		}
	}
	return nil
}

// exportSize returns the configured export size, or the widest 16:9 size
// the device supports.
func (r *Renderer) exportSize(limits backend.Limits) (uint32, uint32) {
	maxDim := limits.MaxTextureDimension2D
	if r.opts.exportSet {
		return min(r.opts.exportW, maxDim), min(r.opts.exportH, maxDim)
	}
	return maxDim, uint32(float64(maxDim) / exportAspect)
}

// RenderFrame runs the passes for one frame. It must be called from the
// dispatcher goroutine; Dispatch calls it for RedrawRequested.
func (r *Renderer) RenderFrame() error {
	s, ok := r.state.(Ready)
	if !ok {
		return nil
	}
	s, err := r.renderFrame(s)
	r.state = s
	return err
}

func (r *Renderer) renderFrame(s Ready) (Ready, error) {
	ctx := s.Context
	if s.Geometry == nil || s.export.phase == exportMapping {
		return s, nil
	}

	if s.ExportPending() {
		w, h := r.exportSize(ctx.Limits)
		s.export = exportState{phase: exportRendering, restoreW: ctx.Width, restoreH: ctx.Height}
		r.exportGen++
		if err := ctx.Resize(w, h); err != nil {
			return s, fmt.Errorf("heatmap: resize for export: %w", err)
		}
		Logger().Info("heatmap: export started", "width", ctx.Width, "height", ctx.Height, "generation", r.exportGen)
	}
	exporting := s.Exporting()

	lod, err := r.blendPass(&s)
	if err != nil {
		return s, err
	}

	if s.MaxWeight == MaxWeightEmpty {
		if err := r.maxWeightPass(ctx, s.Geometry); err != nil {
			return s, err
		}
		s.MaxWeight = MaxWeightInProgress
	}

	if s.MaxWeight != MaxWeightCompleted {
		return s, nil
	}

	desc := backend.ColormapPassDescriptor{
		Target:    ctx.Surface,
		Ramp:      ctx.DisplayRamp,
		Blend:     ctx.Blend,
		MaxWeight: ctx.MaxWeight,
		Camera:    ctx.Camera,
		Outline:   s.Geometry.outline(lod),
		Quad:      s.Geometry.Quad,
		Clear:     backend.Background,
	}
	if exporting {
		t, err := ctx.exportTarget()
		if err != nil {
			return s, err
		}
		desc.Target, desc.Ramp, desc.Opaque = t, ctx.ExportRamp, true
	}
	if err := ctx.Device.ColormapPass(&desc); err != nil {
		return s, fmt.Errorf("heatmap: colormap pass: %w", err)
	}

	if !exporting {
		return s, r.present(ctx)
	}
	if err := r.exportPass(ctx, s.Geometry, desc.Target); err != nil {
		return s, err
	}
	s.export.phase = exportMapping
	return s, nil
}

// blendPass applies input to the camera, overrides it with the entire
// view while statistics or an export are computed, and accumulates the
// selected heat level. It returns the selected level.
func (r *Renderer) blendPass(s *Ready) (int, error) {
	ctx := s.Context
	scroll, cursor, drag := r.input.drain()
	s.Camera.Apply(scroll, cursor, drag)

	if s.MaxWeight != MaxWeightCompleted || s.Exporting() {
		if s.saved == nil {
			saved := s.Camera.Snapshot()
			s.saved = &saved
		}
		s.Camera.EntireView()
	} else if s.saved != nil {
		s.Camera.Restore(*s.saved)
		s.Camera.Resize(float64(ctx.Width), float64(ctx.Height))
		s.saved = nil
	}

	if err := ctx.Device.WriteUniform(ctx.Camera, s.Camera.UniformBytes()); err != nil {
		return 0, fmt.Errorf("heatmap: write camera: %w", err)
	}
	lod := SelectLOD(r.opts.lods, s.Camera.ZoomLevel())
	if err := ctx.Device.BlendPass(ctx.Blend, ctx.Camera, s.Geometry.heat(lod)); err != nil {
		return 0, fmt.Errorf("heatmap: blend pass: %w", err)
	}
	return lod, nil
}

// maxWeightPass copies the blend texture to a buffer and maps it. The
// completion arrives as MaxWeightMapped.
func (r *Renderer) maxWeightPass(ctx *RenderContext, g *Geometry) error {
	if err := ctx.Device.CopyPass(ctx.Blend, ctx.Copy, g.Quad, backend.Transparent); err != nil {
		return fmt.Errorf("heatmap: max weight pass: %w", err)
	}
	buf, err := r.copyOut(ctx, "max weight readback")
	if err != nil {
		return err
	}
	gen := r.dataGen
	ctx.Device.MapRead(buf, func(data []byte, err error) {
		r.bus.Post(MaxWeightMapped{Generation: gen, Data: data, Err: err})
	})
	Logger().Debug("heatmap: max weight readback issued", "generation", gen, "bytes", buf.Size())
	return nil
}

// exportPass copies the export texture over white to a buffer and maps
// it. The completion arrives as ExportMapped.
func (r *Renderer) exportPass(ctx *RenderContext, g *Geometry, export backend.Target) error {
	if err := ctx.Device.CopyPass(export, ctx.Copy, g.Quad, backend.White); err != nil {
		return fmt.Errorf("heatmap: export copy pass: %w", err)
	}
	buf, err := r.copyOut(ctx, "export readback")
	if err != nil {
		return err
	}
	gen := r.exportGen
	w, h, bpr := buf.Width(), buf.Height(), buf.BytesPerRow()
	ctx.Device.MapRead(buf, func(data []byte, err error) {
		r.bus.Post(ExportMapped{Generation: gen, Data: data, Err: err, Width: w, Height: h, BytesPerRow: bpr})
	})
	Logger().Debug("heatmap: export readback issued", "generation", gen, "bytes", buf.Size())
	return nil
}

func (r *Renderer) copyOut(ctx *RenderContext, label string) (backend.ReadbackBuffer, error) {
	buf, err := ctx.Device.NewReadbackBuffer(label, ctx.Copy)
	if err != nil {
		return nil, fmt.Errorf("heatmap: create %s: %w", label, err)
	}
	if err := ctx.Device.CopyToBuffer(ctx.Copy, buf); err != nil {
		buf.Destroy()
		return nil, fmt.Errorf("heatmap: copy to %s: %w", label, err)
	}
	return buf, nil
}

// present hands the surface to the presenter. Out of memory is fatal;
// other surface errors skip the frame.
func (r *Renderer) present(ctx *RenderContext) error {
	img, err := ctx.Device.Present(ctx.Surface)
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrOutOfMemory):
		return fmt.Errorf("heatmap: present: %w", err)
	case errors.Is(err, backend.ErrSurfaceLost),
		errors.Is(err, backend.ErrSurfaceOutdated),
		errors.Is(err, backend.ErrSurfaceTimeout):
		Logger().Warn("heatmap: frame skipped", "err", err)
		return nil
	default:
		return fmt.Errorf("heatmap: present: %w", err)
	}

	if r.opts.presenter != nil {
		if err := r.opts.presenter.Present(img); err != nil {
			Logger().Warn("heatmap: presenter failed", "err", err)
		}
	}
	return nil
}
