// Command heatview shows a GeoJSON heat dataset in a gogpu window.
//
// Drag with the left button to pan, scroll to zoom around the cursor.
// Press E to export the current view to a PNG file and Space to pause
// rendering. The window is dimmed while a dataset is meshing.
//
// Settings are read from flags, falling back to the HEATMAP_* environment
// variables understood by the heatmap command.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/gogpu/gogpu"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/backend/software"
	"github.com/gogpu/heatmap/backend/wgpu"
	"github.com/gogpu/heatmap/export"
	"github.com/gogpu/heatmap/ingest"
	"github.com/gogpu/heatmap/integration/heatcanvas"
)

func main() {
	_ = godotenv.Load(".env")

	var (
		width   = flag.Int("width", 1280, "window width")
		height  = flag.Int("height", 720, "window height")
		data    = flag.String("data", os.Getenv("HEATMAP_DATA"), "heat GeoJSON file")
		outline = flag.String("outline", os.Getenv("HEATMAP_OUTLINE"), "outline GeoJSON file")
		out     = flag.String("out", envOr("HEATMAP_OUT", "heatmap.png"), "export PNG file")
		title   = flag.String("title", "", "export footer title")
		soft    = flag.Bool("software", os.Getenv("HEATMAP_BACKEND") == backend.BackendSoftware, "render on the CPU")
	)
	flag.Parse()

	heatmap.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *data == "" {
		log.Fatalf("no heat dataset: set -data or HEATMAP_DATA")
	}

	comp, err := export.NewCompositor(export.WithPath(*out), export.WithTitle(*title))
	if err != nil {
		log.Fatalf("Failed to create compositor: %v", err)
	}

	app := gogpu.NewApp(gogpu.DefaultConfig().
		WithTitle("heatview").
		WithSize(*width, *height).
		WithContinuousRender(false))

	canvas := heatcanvas.New()
	ctx, cancel := context.WithCancel(context.Background())

	var (
		r         *heatmap.Renderer
		dev       backend.Device
		runDone   chan struct{}
		animToken *gogpu.AnimationToken
		lastW     int
		lastH     int
		paused    bool
	)

	start := func(provider gpucontext.DeviceProvider) {
		dev = openDevice(provider, *soft)
		sink := heatmap.ExportSinkFunc(func(img heatmap.ExportImage) error {
			if err := comp.Export(img); err != nil {
				return err
			}
			log.Printf("Exported %s (%dx%d)", *out, img.Width, img.Height)
			return nil
		})
		r, err = heatmap.New(
			heatmap.WithDevice(dev),
			heatmap.WithPresenter(canvas),
			heatmap.WithExportSink(sink),
			heatmap.WithReadyFunc(func(ready bool) { canvas.SetDimmed(!ready) }),
		)
		if err != nil {
			log.Fatalf("Failed to create renderer: %v", err)
		}

		runDone = make(chan struct{})
		go func() {
			defer close(runDone)
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Renderer stopped: %v", err)
			}
		}()

		go func() {
			loader := ingest.NewLoader(r)
			if err := loader.LoadFiles(ctx, *data, *outline); err != nil {
				log.Printf("Failed to load dataset: %v", err)
			}
		}()
	}

	app.OnDraw(func(dc *gogpu.Context) {
		w, h := dc.Width(), dc.Height()
		if w <= 0 || h <= 0 {
			return
		}
		if r == nil {
			provider := app.GPUContextProvider()
			if provider == nil && !*soft {
				return
			}
			log.Printf("Window backend: %s", dc.Backend())
			start(provider)
			animToken = app.StartAnimation()
		}

		if w != lastW || h != lastH {
			r.Bus().Post(heatmap.Resized{Width: uint32(w), Height: uint32(h)})
			lastW, lastH = w, h
		}
		r.Redraw()

		if err := canvas.RenderTo(dc.AsTextureDrawer()); err != nil {
			log.Printf("Render error: %v", err)
		}
	})

	events := app.EventSource()
	events.OnMouseMove(func(x, y float64) {
		if r != nil {
			r.Input().CursorMoved(x, y)
		}
	})
	events.OnMousePress(func(button gpucontext.MouseButton, _, _ float64) {
		if r != nil && button == gpucontext.MouseButtonLeft {
			r.Input().PrimaryButton(true)
		}
	})
	events.OnMouseRelease(func(button gpucontext.MouseButton, _, _ float64) {
		if r != nil && button == gpucontext.MouseButtonLeft {
			r.Input().PrimaryButton(false)
		}
	})
	events.OnScroll(func(_, dy float64) {
		if r != nil {
			r.Input().ScrollLines(dy)
		}
	})
	events.OnKeyPress(func(key gpucontext.Key, _ gpucontext.Modifiers) {
		switch key {
		case gpucontext.KeyE:
			if r != nil && !r.RequestExport() {
				log.Printf("Export not queued: renderer closed")
			}
		case gpucontext.KeySpace:
			paused = !paused
			if paused {
				if animToken != nil {
					animToken.Stop()
					animToken = nil
				}
				return
			}
			animToken = app.StartAnimation()
		}
	})

	app.OnClose(func() {
		if animToken != nil {
			animToken.Stop()
		}
		cancel()
		if runDone != nil {
			<-runDone
		}
		if err := canvas.Close(); err != nil {
			log.Printf("Canvas close: %v", err)
		}
		if dev != nil {
			dev.Close()
		}
	})

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}

// openDevice borrows the window's GPU device, falling back to the
// software rasterizer.
func openDevice(provider gpucontext.DeviceProvider, soft bool) backend.Device {
	if !soft && provider != nil {
		d, err := wgpu.NewFromProvider(provider)
		if err == nil {
			return d
		}
		log.Printf("GPU device unavailable, using software: %v", err)
	}
	return software.New()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
