package heatmap

import (
	"fmt"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/mesh"
)

// Geometry holds the device buffers of one dataset: every heat and outline
// level of detail plus the full-viewport quad. Levels with no triangles
// are nil.
type Geometry struct {
	Heat    []backend.MeshBuffer
	Outline []backend.MeshBuffer
	Quad    backend.MeshBuffer
}

func newGeometry(dev backend.Device, ds mesh.Dataset) (*Geometry, error) {
	g := &Geometry{}
	upload := func(kind string, set mesh.LODSet) ([]backend.MeshBuffer, error) {
		bufs := make([]backend.MeshBuffer, len(set))
		for i := range set {
			if set[i].Empty() {
				continue
			}
			b, err := dev.NewMeshBuffer(fmt.Sprintf("%s lod %d", kind, i), &set[i])
			if err != nil {
				return bufs, fmt.Errorf("%s lod %d: %w", kind, i, err)
			}
			bufs[i] = b
		}
		return bufs, nil
	}

	var err error
	if g.Heat, err = upload("heat", ds.Heat); err != nil {
		g.Release()
		return nil, err
	}
	if g.Outline, err = upload("outline", ds.Outline); err != nil {
		g.Release()
		return nil, err
	}
	if g.Quad, err = dev.NewMeshBuffer("quad", backend.QuadMesh()); err != nil {
		g.Release()
		return nil, fmt.Errorf("quad: %w", err)
	}
	return g, nil
}

func level(bufs []backend.MeshBuffer, lod int) backend.MeshBuffer {
	if len(bufs) == 0 {
		return nil
	}
	return bufs[max(0, min(lod, len(bufs)-1))]
}

// heat returns the heat buffer for lod, clamped to the available levels.
func (g *Geometry) heat(lod int) backend.MeshBuffer { return level(g.Heat, lod) }

// outline returns the outline buffer for lod, clamped to the available levels.
func (g *Geometry) outline(lod int) backend.MeshBuffer { return level(g.Outline, lod) }

// Release destroys all buffers.
func (g *Geometry) Release() {
	for _, set := range [][]backend.MeshBuffer{g.Heat, g.Outline} {
		for _, b := range set {
			if b != nil {
				b.Destroy()
			}
		}
	}
	if g.Quad != nil {
		g.Quad.Destroy()
	}
	g.Heat, g.Outline, g.Quad = nil, nil, nil
}
