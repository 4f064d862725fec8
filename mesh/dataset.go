package mesh

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Source is one polygon set with its weights.
type Source struct {
	Positions [][][2]float64
	Weights   []uint64
}

// Dataset is the pair of LOD sets installed together on the GPU.
type Dataset struct {
	Heat    LODSet
	Outline LODSet
}

// BuildDataset meshes the heatmap and outline polygon sets concurrently,
// one goroutine per level. Outline weights are ignored.
//
// The context is checked before each level starts; a cancelled build
// returns ctx.Err() and no partial result.
func BuildDataset(ctx context.Context, heat, outline Source, heatTol, outlineTol []float64) (Dataset, error) {
	if len(heat.Weights) < len(heat.Positions) {
		return Dataset{}, fmt.Errorf("%w: %d weights for %d polygons",
			ErrWeightMismatch, len(heat.Weights), len(heat.Positions))
	}
	if err := checkTolerances(heatTol); err != nil {
		return Dataset{}, err
	}
	if err := checkTolerances(outlineTol); err != nil {
		return Dataset{}, err
	}

	ds := Dataset{
		Heat:    make(LODSet, len(heatTol)),
		Outline: make(LODSet, len(outlineTol)),
	}
	outlineWeights := make([]uint64, len(outline.Positions))

	g, ctx := errgroup.WithContext(ctx)
	for i, tol := range heatTol {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ds.Heat[i] = buildLevel(heat.Positions, heat.Weights, tol)
			return nil
		})
	}
	for i, tol := range outlineTol {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ds.Outline[i] = buildLevel(outline.Positions, outlineWeights, tol)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	slogger().Debug("mesh: dataset built",
		"heat_polygons", len(heat.Positions), "outline_polygons", len(outline.Positions))
	return ds, nil
}
