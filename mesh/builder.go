// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package mesh

import (
	"errors"
	"fmt"
)

// Errors returned by the builder.
var (
	// ErrWeightMismatch is returned when fewer weights than polygons are
	// supplied. This is a caller bug, never a data problem.
	ErrWeightMismatch = errors.New("mesh: weights was not equal to the number of polygons")

	// ErrTolerances is returned for an empty, negative or descending
	// tolerance sequence.
	ErrTolerances = errors.New("mesh: tolerances must be non-negative and ascending")

	// ErrInvalidMesh is returned by Mesh.Validate.
	ErrInvalidMesh = errors.New("mesh: invalid mesh")
)

// Default simplification tolerances in degrees, one per LOD.
var (
	HeatmapTolerances = []float64{0.0, 0.2, 0.4}
	OutlineTolerances = []float64{0.0, 0.5, 1.0}
)

// Build meshes weighted polygons at every tolerance.
//
// positions holds one closed ring per polygon (first point repeated at the
// end); weights holds one weight per polygon. The result has one Mesh per
// tolerance, in the order given. Polygons that collapse below three
// vertices at a level are dropped from that level only.
func Build(positions [][][2]float64, weights []uint64, tolerances []float64) (LODSet, error) {
	if len(weights) < len(positions) {
		return nil, fmt.Errorf("%w: %d weights for %d polygons", ErrWeightMismatch, len(weights), len(positions))
	}
	if err := checkTolerances(tolerances); err != nil {
		return nil, err
	}

	set := make(LODSet, len(tolerances))
	for i, tol := range tolerances {
		set[i] = buildLevel(positions, weights, tol)
	}
	return set, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(positions [][][2]float64, weights []uint64, tolerances []float64) LODSet {
	set, err := Build(positions, weights, tolerances)
	if err != nil {
		panic(err)
	}
	return set
}

// BuildOutline meshes the static world outline. Every vertex gets weight 0.
func BuildOutline(positions [][][2]float64, tolerances []float64) (LODSet, error) {
	return Build(positions, make([]uint64, len(positions)), tolerances)
}

func checkTolerances(tolerances []float64) error {
	if len(tolerances) == 0 {
		return ErrTolerances
	}
	for i, t := range tolerances {
		if t < 0 || (i > 0 && t < tolerances[i-1]) {
			return fmt.Errorf("%w: %v", ErrTolerances, tolerances)
		}
	}
	return nil
}

// buildLevel meshes every polygon at a single tolerance.
func buildLevel(positions [][][2]float64, weights []uint64, tolerance float64) Mesh {
	var m Mesh
	dropped := 0
	for p, ring := range positions {
		pts := simplifyRing(openRing(ring), tolerance)
		if len(pts) < 3 {
			dropped++
			continue
		}

		local := Triangulate(pts)
		if len(local) == 0 {
			dropped++
			continue
		}

		offset := uint32(len(m.Vertices)) //nolint:gosec // vertex counts fit in uint32
		for _, idx := range local {
			m.Indices = append(m.Indices, idx+offset)
		}

		weight := uint32(weights[p]) //nolint:gosec // truncation to 32 bits is intended
		for _, pt := range pts {
			m.Vertices = append(m.Vertices, Vertex{
				Position: [3]float32{float32(pt[0]), float32(pt[1]), 0},
				Weight:   weight,
			})
		}
	}

	if dropped > 0 {
		slogger().Debug("mesh: dropped degenerate polygons",
			"tolerance", tolerance, "dropped", dropped, "total", len(positions))
	}
	return m
}
