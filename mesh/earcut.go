// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package mesh

import (
	"github.com/paulmach/orb"
	"github.com/rclancey/earcut"
)

// Triangulate splits a simple polygon (no holes, no closing point) into
// triangles with earcut.
//
// The returned indices refer to pts and come in groups of three. Rings of
// either winding are accepted. Collinear and repeated vertices emit no
// triangles, and self-intersecting rings are split until every piece is
// clipped, so the call always terminates.
func Triangulate(pts []orb.Point) []uint32 {
	if len(pts) < 3 {
		return nil
	}
	flat := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		flat = append(flat, p[0], p[1])
	}

	local, err := earcut.Earcut(flat, nil, 2)
	if err != nil {
		slogger().Debug("mesh: earcut failed", "points", len(pts), "err", err)
		return nil
	}
	indices := make([]uint32, len(local))
	for i, v := range local {
		indices[i] = uint32(v) //nolint:gosec // indices are below len(pts)
	}
	return indices
}
