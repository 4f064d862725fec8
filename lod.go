package heatmap

import "math"

// LODThreshold maps zooms below MaxZoom to a mesh level of detail.
type LODThreshold struct {
	MaxZoom float64
	LOD     int
}

// DefaultLODThresholds selects the coarsest level when zoomed out and the
// exact mesh when zoomed in.
var DefaultLODThresholds = []LODThreshold{
	{MaxZoom: 15, LOD: 2},
	{MaxZoom: 30, LOD: 1},
	{MaxZoom: math.Inf(1), LOD: 0},
}

// SelectLOD returns the level of the first entry with zoom < MaxZoom, or
// the last entry's level when zoom is beyond the table.
func SelectLOD(table []LODThreshold, zoom float64) int {
	for _, t := range table {
		if zoom < t.MaxZoom {
			return t.LOD
		}
	}
	if len(table) == 0 {
		return 0
	}
	return table[len(table)-1].LOD
}

func checkLODTable(table []LODThreshold) error {
	if len(table) == 0 {
		return ErrLODTable
	}
	for i := 1; i < len(table); i++ {
		if table[i].MaxZoom <= table[i-1].MaxZoom || table[i].LOD > table[i-1].LOD {
			return ErrLODTable
		}
	}
	for _, t := range table {
		if t.LOD < 0 {
			return ErrLODTable
		}
	}
	return nil
}
