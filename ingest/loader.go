package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/mesh"
)

// Option configures a Loader.
type Option func(*Loader)

// WithTolerances sets the simplification tolerances, in degrees, of the
// heat and outline LOD sets. Each sequence must be non-negative and
// ascending. Defaults are mesh.HeatmapTolerances and
// mesh.OutlineTolerances.
func WithTolerances(heat, outline []float64) Option {
	return func(l *Loader) {
		l.heatTol = heat
		l.outlineTol = outline
	}
}

// WithWeightProperty sets the feature property holding heat weights.
func WithWeightProperty(name string) Option {
	return func(l *Loader) {
		l.property = name
	}
}

// Loader meshes datasets and installs them on a renderer.
type Loader struct {
	r          *heatmap.Renderer
	heatTol    []float64
	outlineTol []float64
	property   string
}

// NewLoader creates a Loader posting to r.
func NewLoader(r *heatmap.Renderer, opts ...Option) *Loader {
	l := &Loader{
		r:          r,
		heatTol:    mesh.HeatmapTolerances,
		outlineTol: mesh.OutlineTolerances,
		property:   DefaultWeightProperty,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds the LOD sets of heat and outline and posts them to the
// renderer under a fresh load ticket. The renderer stops reporting ready
// until the dataset is installed, or reports its previous dataset again if
// meshing fails. Load blocks while meshing; it is safe to call from any
// goroutine except the dispatcher.
func (l *Loader) Load(ctx context.Context, heat, outline mesh.Source) error {
	load := l.r.BeginLoad()

	start := time.Now()
	ds, err := mesh.BuildDataset(ctx, heat, outline, l.heatTol, l.outlineTol)
	if err != nil {
		l.r.Bus().Post(heatmap.LoadFailed{Load: load})
		return fmt.Errorf("ingest: build dataset: %w", err)
	}
	heatmap.Logger().Info("ingest: dataset meshed",
		"load", load, "levels", len(ds.Heat), "polygons", len(heat.Positions), "elapsed", time.Since(start))

	if !l.r.Bus().Post(heatmap.IncomingData{Dataset: ds, Load: load}) {
		return heatmap.ErrClosed
	}
	return nil
}

// LoadFiles decodes the heat and outline GeoJSON files and loads them.
// An empty outlinePath loads the dataset without an outline.
func (l *Loader) LoadFiles(ctx context.Context, heatPath, outlinePath string) error {
	heat, err := ReadFile(heatPath, l.property)
	if err != nil {
		return err
	}
	var outline mesh.Source
	if outlinePath != "" {
		outline, err = ReadFile(outlinePath, "")
		if err != nil {
			return err
		}
	}
	return l.Load(ctx, heat, outline)
}
