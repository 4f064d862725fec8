// Command heatmap renders a GeoJSON heat dataset headlessly and writes a
// PNG export with a colormap legend.
//
// Settings are read from flags, falling back to HEATMAP_* environment
// variables, which may also be placed in a .env file:
//
//	HEATMAP_BACKEND  backend name (wgpu, software; empty picks the best)
//	HEATMAP_DATA     heat GeoJSON file
//	HEATMAP_OUTLINE  outline GeoJSON file (optional)
//	HEATMAP_OUT      output PNG path
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/gogpu/heatmap"
	_ "github.com/gogpu/heatmap/backend/software"
	_ "github.com/gogpu/heatmap/backend/wgpu"
	"github.com/gogpu/heatmap/colormap"
	"github.com/gogpu/heatmap/export"
	"github.com/gogpu/heatmap/ingest"
)

// redrawInterval paces the frames requested while waiting for an export.
const redrawInterval = 10 * time.Millisecond

type config struct {
	backend string
	data    string
	outline string
	out     string
	weight  string
	title   string
	ramp    string
	lang    string
	width   uint
	height  uint
	viewW   uint
	viewH   uint
	timeout time.Duration
	verbose bool
}

func main() {
	_ = godotenv.Load(".env")

	var cfg config
	flag.StringVar(&cfg.backend, "backend", os.Getenv("HEATMAP_BACKEND"), "backend name")
	flag.StringVar(&cfg.data, "data", os.Getenv("HEATMAP_DATA"), "heat GeoJSON file")
	flag.StringVar(&cfg.outline, "outline", os.Getenv("HEATMAP_OUTLINE"), "outline GeoJSON file")
	flag.StringVar(&cfg.out, "out", envOr("HEATMAP_OUT", "heatmap.png"), "output PNG file")
	flag.StringVar(&cfg.weight, "weight", ingest.DefaultWeightProperty, "feature property holding weights")
	flag.StringVar(&cfg.title, "title", "", "footer title")
	flag.StringVar(&cfg.ramp, "ramp", colormap.Export.Name, "colormap ramp")
	flag.StringVar(&cfg.lang, "lang", "en", "number formatting language")
	flag.UintVar(&cfg.width, "width", 3200, "export width")
	flag.UintVar(&cfg.height, "height", 1800, "export height")
	flag.UintVar(&cfg.viewW, "view-width", 1280, "viewport width")
	flag.UintVar(&cfg.viewH, "view-height", 720, "viewport height")
	flag.DurationVar(&cfg.timeout, "timeout", 2*time.Minute, "overall deadline")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	heatmap.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if cfg.data == "" {
		log.Fatalf("no heat dataset: set -data or HEATMAP_DATA")
	}

	start := time.Now()
	if err := run(cfg); err != nil {
		log.Fatalf("Failed to export: %v", err)
	}
	log.Printf("Heatmap saved to %s (%dx%d) in %v\n", cfg.out, cfg.width, cfg.height, time.Since(start).Round(time.Millisecond))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(cfg config) error {
	ramp, ok := colormap.ByName(cfg.ramp)
	if !ok {
		return fmt.Errorf("unknown ramp %q", cfg.ramp)
	}
	tag, err := language.Parse(cfg.lang)
	if err != nil {
		return fmt.Errorf("language %q: %w", cfg.lang, err)
	}

	comp, err := export.NewCompositor(
		export.WithPath(cfg.out),
		export.WithTitle(cfg.title),
		export.WithLanguage(tag),
		export.WithRamp(ramp),
	)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	sink := heatmap.ExportSinkFunc(func(img heatmap.ExportImage) error {
		err := comp.Export(img)
		select {
		case done <- err:
		default:
		}
		return err
	})

	r, err := heatmap.New(
		heatmap.WithBackend(cfg.backend),
		heatmap.WithExportSize(uint32(cfg.width), uint32(cfg.height)),
		heatmap.WithExportSink(sink),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	runCtx, stopRun := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(runCtx) }()
	defer func() {
		stopRun()
		<-runErr
	}()

	r.Bus().Post(heatmap.Resized{Width: uint32(cfg.viewW), Height: uint32(cfg.viewH)})

	loader := ingest.NewLoader(r, ingest.WithWeightProperty(cfg.weight))
	if err := loader.LoadFiles(ctx, cfg.data, cfg.outline); err != nil {
		return err
	}

	if err := waitReady(ctx, r, runErr); err != nil {
		return err
	}
	if !r.RequestExport() {
		return heatmap.ErrClosed
	}

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case err := <-runErr:
			runErr <- err
			return fmt.Errorf("renderer stopped: %w", err)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Redraw()
		}
	}
}

// waitReady blocks until geometry for the loaded dataset is installed.
func waitReady(ctx context.Context, r *heatmap.Renderer, runErr chan error) error {
	for {
		select {
		case ready := <-r.Ready():
			if ready {
				return nil
			}
		case err := <-runErr:
			runErr <- err
			if err == nil {
				err = errors.New("renderer exited")
			}
			return fmt.Errorf("renderer stopped: %w", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
