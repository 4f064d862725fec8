// Package backend defines the device abstraction the heatmap passes run on.
//
// A Device owns GPU (or emulated) resources and exposes one method per
// render pass: blend, colormap, copy and buffer readback. Two devices are
// provided:
//
//   - backend/wgpu runs the passes on a gogpu/wgpu HAL device (Vulkan).
//   - backend/software rasterizes the same passes on the CPU. It is the
//     fallback when no GPU adapter exists and the deterministic device used
//     by tests.
//
// # Backend Registration
//
// Devices register a factory from init() and are selected at runtime:
//
//	import _ "github.com/gogpu/heatmap/backend/software"
//	import _ "github.com/gogpu/heatmap/backend/wgpu"
//
//	dev, err := backend.Open("")        // best available
//	dev, err := backend.Open("software") // specific backend
//
// # Resource Ownership
//
// Every resource returned by a Device is exclusively owned by its caller
// and must be released with Destroy. MapRead takes ownership of the
// buffer it is given and destroys it after the callback returns.
package backend
