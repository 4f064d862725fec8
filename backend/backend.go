package backend

import (
	"errors"
	"image"

	"github.com/gogpu/heatmap/mesh"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or none could be opened.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoAdapter is returned when no graphics adapter can be acquired.
	ErrNoAdapter = errors.New("backend: no adapter")

	// ErrClosed is returned when a device is used after Close.
	ErrClosed = errors.New("backend: device closed")

	// ErrInvalidDimensions is returned for zero or oversized targets.
	ErrInvalidDimensions = errors.New("backend: invalid dimensions")

	// ErrWrongTarget is returned when a pass is given a target of the
	// wrong kind (for example a blend pass into the surface).
	ErrWrongTarget = errors.New("backend: wrong target kind")
)

// Surface errors returned by Present. ErrOutOfMemory is fatal; the others
// mean the frame should be skipped.
var (
	ErrOutOfMemory     = errors.New("backend: out of memory")
	ErrSurfaceLost     = errors.New("backend: surface lost")
	ErrSurfaceOutdated = errors.New("backend: surface outdated")
	ErrSurfaceTimeout  = errors.New("backend: surface timeout")
)

// TargetKind selects the format and usage of a render target.
type TargetKind int

const (
	// TargetBlend is a single-channel float target that accumulates weight.
	// It is rendered to by the blend pass and sampled by later passes.
	TargetBlend TargetKind = iota

	// TargetSurface is the presentable RGBA8 target.
	TargetSurface

	// TargetExport is an offscreen RGBA8 sRGB target at export resolution.
	TargetExport

	// TargetCopy is an RGBA32Float target that can be copied to a buffer.
	TargetCopy
)

// String returns the target kind name.
func (k TargetKind) String() string {
	switch k {
	case TargetBlend:
		return "blend"
	case TargetSurface:
		return "surface"
	case TargetExport:
		return "export"
	case TargetCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// Clear colors used by the passes.
var (
	Transparent = Color{}
	White       = Color{R: 1, G: 1, B: 1, A: 1}
	Background  = Color{R: 0.02, G: 0.02, B: 0.02, A: 1}
)

// Limits reports device capabilities the passes depend on.
type Limits struct {
	MaxTextureDimension2D uint32
}

// TargetDescriptor describes a render target.
type TargetDescriptor struct {
	Label  string
	Kind   TargetKind
	Width  uint32
	Height uint32
}

// Target is a render target texture.
type Target interface {
	Kind() TargetKind
	Width() uint32
	Height() uint32
	Destroy()
}

// MeshBuffer holds the vertex data of one mesh on the device.
type MeshBuffer interface {
	// IndexCount is the number of indices of the source mesh.
	IndexCount() uint32
	Destroy()
}

// Uniform is a small uniform buffer.
type Uniform interface {
	Size() uint64
	Destroy()
}

// ReadbackBuffer receives a copy of a TargetCopy texture.
// Rows are BytesPerRow apart, padded to a 256-byte multiple.
type ReadbackBuffer interface {
	Width() uint32
	Height() uint32
	BytesPerRow() uint32
	Size() uint64
	Destroy()
}

// Colormap is a color ramp texture sampled by intensity.
type Colormap interface {
	Destroy()
}

// ColormapPassDescriptor describes one colormap pass.
//
// The target is cleared, the outline mesh is drawn through Camera, and
// then a full-viewport quad samples Blend, divides by the MaxWeight uniform
// and looks the result up in Ramp. Display passes alpha-blend the ramp
// over the outline into a surface target; Opaque passes write it unblended
// into an export target. Outline may be nil.
type ColormapPassDescriptor struct {
	Target    Target
	Ramp      Colormap
	Blend     Target
	MaxWeight Uniform
	Camera    Uniform
	Outline   MeshBuffer
	Quad      MeshBuffer
	Opaque    bool
	Clear     Color
}

// MapCallback receives the contents of a mapped readback buffer.
// It is called from a backend goroutine, never from the caller of MapRead.
type MapCallback func(data []byte, err error)

// Device runs the heatmap passes. Methods other than MapRead's callback
// are called from a single goroutine.
type Device interface {
	// Name returns the backend name.
	Name() string

	// Limits returns the device limits.
	Limits() Limits

	// NewMeshBuffer uploads a mesh.
	NewMeshBuffer(label string, m *mesh.Mesh) (MeshBuffer, error)

	// NewUniform creates a zeroed uniform buffer of size bytes.
	NewUniform(label string, size uint64) (Uniform, error)

	// NewTarget creates a render target.
	NewTarget(desc TargetDescriptor) (Target, error)

	// NewReadbackBuffer creates a buffer able to hold a copy of src.
	NewReadbackBuffer(label string, src Target) (ReadbackBuffer, error)

	// NewColormap uploads a ramp image. Only the first row is used.
	NewColormap(label string, ramp *image.RGBA) (Colormap, error)

	// WriteUniform replaces the contents of u.
	WriteUniform(u Uniform, data []byte) error

	// BlendPass clears target to zero and additively accumulates the
	// weights of m, transformed by the camera uniform. A nil m only clears.
	BlendPass(target Target, camera Uniform, m MeshBuffer) error

	// ColormapPass renders intensity through a ramp into a surface or
	// export target.
	ColormapPass(desc *ColormapPassDescriptor) error

	// CopyPass renders src into a TargetCopy target through the quad,
	// compositing over white. Pixels outside src are cleared to clear.
	CopyPass(src, dst Target, quad MeshBuffer, clear Color) error

	// CopyToBuffer copies a TargetCopy target into dst.
	CopyToBuffer(src Target, dst ReadbackBuffer) error

	// MapRead maps dst for reading once all submitted work has finished and
	// calls done with its bytes. MapRead returns immediately and takes
	// ownership of dst.
	MapRead(dst ReadbackBuffer, done MapCallback)

	// Present reads the surface back as an image for display.
	Present(surface Target) (*image.RGBA, error)

	// Close releases the device. Outstanding MapRead calls complete with
	// ErrClosed.
	Close()
}

// QuadMesh returns the full-viewport quad in clip space, used by the
// colormap and copy passes.
func QuadMesh() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: []mesh.Vertex{
			{Position: [3]float32{-1, -1, 0}},
			{Position: [3]float32{1, -1, 0}},
			{Position: [3]float32{1, 1, 0}},
			{Position: [3]float32{-1, 1, 0}},
		},
		Indices: []uint32{0, 2, 3, 0, 2, 1},
	}
}
