//go:build !nogpu

package wgpu

import _ "embed"

// Shader sources. All modules use vs_main and fs_main entry points.
var (
	//go:embed shaders/blend.wgsl
	blendShader string

	//go:embed shaders/outline.wgsl
	outlineShader string

	//go:embed shaders/colormap.wgsl
	colormapShader string

	//go:embed shaders/copy.wgsl
	copyShader string
)

const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
)
