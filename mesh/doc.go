// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package mesh converts weighted geographic polygons into GPU-ready triangle
// meshes at several levels of detail.
//
// Each polygon ring is simplified with Douglas-Peucker at a per-level
// tolerance (in degrees), triangulated by ear clipping, and appended to a
// flat vertex/index list. Every vertex carries the weight of the polygon it
// came from, so additive blending of the mesh accumulates coverage counts.
//
// The package has no GPU dependency. Build and BuildOutline are pure
// functions that can run on any goroutine.
//
//	set, err := mesh.Build(positions, weights, mesh.HeatmapTolerances)
//	if err != nil {
//	    return err
//	}
//	for i, m := range set {
//	    fmt.Printf("LOD %d: %d triangles\n", i, m.IndexCount()/3)
//	}
package mesh
