// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package mesh

import (
	"encoding/binary"
	"fmt"
	"math"
)

// VertexStride is the size of one encoded Vertex in bytes:
// three float32 position components followed by a uint32 weight.
const VertexStride = 16

// Vertex is a single mesh vertex as consumed by the blend and outline shaders.
type Vertex struct {
	// Position is (longitude, latitude, 0) in degrees.
	Position [3]float32

	// Weight is the coverage count of the polygon this vertex belongs to.
	Weight uint32
}

// AppendBytes appends the little-endian GPU encoding of v to dst.
func (v Vertex) AppendBytes(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Position[0]))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Position[1]))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Position[2]))
	return binary.LittleEndian.AppendUint32(dst, v.Weight)
}

// Mesh is an indexed triangle list.
//
// Invariants: len(Indices)%3 == 0 and every index is < len(Vertices).
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// IndexCount returns the number of indices to draw.
func (m *Mesh) IndexCount() uint32 {
	return uint32(len(m.Indices)) //nolint:gosec // bounded by Build
}

// Empty reports whether the mesh has nothing to draw.
func (m *Mesh) Empty() bool {
	return len(m.Indices) == 0
}

// VertexBytes returns the vertex list encoded for upload.
func (m *Mesh) VertexBytes() []byte {
	buf := make([]byte, 0, len(m.Vertices)*VertexStride)
	for _, v := range m.Vertices {
		buf = v.AppendBytes(buf)
	}
	return buf
}

// IndexBytes returns the index list encoded as little-endian uint32.
func (m *Mesh) IndexBytes() []byte {
	buf := make([]byte, 0, len(m.Indices)*4)
	for _, i := range m.Indices {
		buf = binary.LittleEndian.AppendUint32(buf, i)
	}
	return buf
}

// Triangles returns the de-indexed triangle list: three vertices per triangle,
// in index order.
func (m *Mesh) Triangles() []Vertex {
	out := make([]Vertex, len(m.Indices))
	for i, idx := range m.Indices {
		out[i] = m.Vertices[idx]
	}
	return out
}

// Validate checks the index invariants.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3", ErrInvalidMesh, len(m.Indices))
	}
	n := uint32(len(m.Vertices)) //nolint:gosec // vertex counts fit in uint32
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d at %d out of range (%d vertices)", ErrInvalidMesh, idx, i, n)
		}
	}
	return nil
}

// LODSet is an ordered sequence of meshes of the same polygon set, from the
// exact mesh (LOD 0) to the most simplified one.
type LODSet []Mesh

// Level returns the mesh at lod, clamped to the available range.
// An empty set returns an empty mesh.
func (s LODSet) Level(lod int) *Mesh {
	if len(s) == 0 {
		return &Mesh{}
	}
	if lod < 0 {
		lod = 0
	}
	if lod >= len(s) {
		lod = len(s) - 1
	}
	return &s[lod]
}
