// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software implements backend.Device on the CPU.
//
// It rasterizes the same meshes with the same pass semantics as the GPU
// device: additive weight accumulation, ramp lookup normalized by the
// max-weight uniform, and RGBA32Float copies with 256-byte row padding.
// It is deterministic and is used for tests and headless rendering when no
// adapter is present.
//
// Importing the package registers it under backend.BackendSoftware:
//
//	import _ "github.com/gogpu/heatmap/backend/software"
package software
