// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	geojson "github.com/paulmach/go.geojson"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/mesh"
)

// DefaultWeightProperty is the feature property read as the polygon weight.
const DefaultWeightProperty = "weight"

// Errors returned while decoding.
var (
	// ErrWeight is returned for a missing, negative or non-integral weight.
	ErrWeight = errors.New("ingest: invalid weight")

	// ErrRing is returned for an exterior ring with fewer than four
	// positions or a position with fewer than two coordinates.
	ErrRing = errors.New("ingest: invalid ring")
)

// Decode reads a FeatureCollection of weighted polygons.
//
// If property is empty no weights are read and every polygon gets weight
// zero, which is how outline datasets are decoded. Features without a
// polygonal geometry are skipped.
func Decode(r io.Reader, property string) (mesh.Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return mesh.Source{}, fmt.Errorf("ingest: read: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return mesh.Source{}, fmt.Errorf("ingest: decode: %w", err)
	}

	var src mesh.Source
	skipped, holes := 0, 0
	for i, f := range fc.Features {
		var polygons [][][][]float64
		switch {
		case f.Geometry == nil:
			skipped++
			continue
		case f.Geometry.IsPolygon():
			polygons = [][][][]float64{f.Geometry.Polygon}
		case f.Geometry.IsMultiPolygon():
			polygons = f.Geometry.MultiPolygon
		default:
			skipped++
			continue
		}

		var weight uint64
		if property != "" {
			weight, err = featureWeight(f, property)
			if err != nil {
				return mesh.Source{}, fmt.Errorf("feature %d: %w", i, err)
			}
		}

		for _, poly := range polygons {
			if len(poly) == 0 {
				continue
			}
			holes += len(poly) - 1
			ring, err := exteriorRing(poly[0])
			if err != nil {
				return mesh.Source{}, fmt.Errorf("feature %d: %w", i, err)
			}
			src.Positions = append(src.Positions, ring)
			src.Weights = append(src.Weights, weight)
		}
	}

	heatmap.Logger().Debug("ingest: decoded",
		"polygons", len(src.Positions), "skipped_features", skipped, "ignored_holes", holes)
	return src, nil
}

// ReadFile decodes the dataset at path. See Decode.
func ReadFile(path, property string) (mesh.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return mesh.Source{}, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	src, err := Decode(f, property)
	if err != nil {
		return mesh.Source{}, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

func featureWeight(f *geojson.Feature, property string) (uint64, error) {
	v, err := f.PropertyFloat64(property)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrWeight, property, err)
	}
	if v < 0 || v != math.Trunc(v) || v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %q = %v", ErrWeight, property, v)
	}
	return uint64(v), nil
}

// exteriorRing converts a GeoJSON ring to closed lon/lat pairs. Altitude is
// dropped. An unclosed ring is closed.
func exteriorRing(ring [][]float64) ([][2]float64, error) {
	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: %d positions", ErrRing, len(ring))
	}
	out := make([][2]float64, 0, len(ring)+1)
	for _, p := range ring {
		if len(p) < 2 {
			return nil, fmt.Errorf("%w: position with %d coordinates", ErrRing, len(p))
		}
		out = append(out, [2]float64{p[0], p[1]})
	}
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	if len(out) < 4 {
		return nil, fmt.Errorf("%w: %d positions", ErrRing, len(out))
	}
	return out, nil
}
