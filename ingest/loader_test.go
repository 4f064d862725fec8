package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/backend/software"
	"github.com/gogpu/heatmap/mesh"
)

func newRenderer(t *testing.T) *heatmap.Renderer {
	t.Helper()
	dev := software.New()
	t.Cleanup(dev.Close)
	r, err := heatmap.New(heatmap.WithDevice(dev))
	if err != nil {
		t.Fatalf("heatmap.New() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestLoaderPostsDataset(t *testing.T) {
	r := newRenderer(t)
	heatPath := filepath.Join(t.TempDir(), "heat.geojson")
	if err := os.WriteFile(heatPath, []byte(collection), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(r, WithTolerances([]float64{0, 1}, []float64{0}))
	if err := l.LoadFiles(context.Background(), heatPath, ""); err != nil {
		t.Fatalf("LoadFiles() error = %v", err)
	}
	if r.IsReady() {
		t.Error("IsReady() = true while the dataset is not installed")
	}

	msg := <-r.Bus().Messages()
	started, ok := msg.(heatmap.LoadStarted)
	if !ok || started.Load == 0 {
		t.Fatalf("posted %#v first, want heatmap.LoadStarted with a ticket", msg)
	}
	msg = <-r.Bus().Messages()
	data, ok := msg.(heatmap.IncomingData)
	if !ok {
		t.Fatalf("posted %T, want heatmap.IncomingData", msg)
	}
	if data.Load != started.Load {
		t.Errorf("IncomingData.Load = %d, want %d", data.Load, started.Load)
	}
	if len(data.Dataset.Heat) != 2 || len(data.Dataset.Outline) != 1 {
		t.Errorf("levels = %d heat, %d outline, want 2, 1",
			len(data.Dataset.Heat), len(data.Dataset.Outline))
	}
	if data.Dataset.Heat[0].Empty() {
		t.Error("finest heat level is empty")
	}
	if !data.Dataset.Outline[0].Empty() {
		t.Error("outline level is not empty without an outline file")
	}
}

func TestLoaderErrors(t *testing.T) {
	r := newRenderer(t)
	heat := mesh.Source{
		Positions: [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		Weights:   []uint64{1},
	}

	l := NewLoader(r, WithTolerances([]float64{1, 0}, mesh.OutlineTolerances))
	if err := l.Load(context.Background(), heat, mesh.Source{}); !errors.Is(err, mesh.ErrTolerances) {
		t.Errorf("Load(descending) error = %v, want mesh.ErrTolerances", err)
	}
	<-r.Bus().Messages()
	if msg := <-r.Bus().Messages(); msg != (heatmap.LoadFailed{Load: 1}) {
		t.Errorf("posted %#v after a failed load, want LoadFailed{Load: 1}", msg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewLoader(r).Load(ctx, heat, mesh.Source{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load(cancelled) error = %v, want context.Canceled", err)
	}

	r.Close()
	if err := NewLoader(r).Load(context.Background(), heat, mesh.Source{}); !errors.Is(err, heatmap.ErrClosed) {
		t.Errorf("Load(closed) error = %v, want heatmap.ErrClosed", err)
	}

	if err := NewLoader(r).LoadFiles(context.Background(), "missing.geojson", ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFiles(missing) error = %v", err)
	}
}
