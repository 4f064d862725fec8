// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu implements backend.Device on the gogpu/wgpu HAL.
//
// Importing the package registers the "wgpu" backend, which opens a Vulkan
// adapter (discrete preferred). A device shared with a gogpu window is
// wrapped with NewFromProvider; such a device is never destroyed by Close.
//
// Every pass records one command encoder and submits it. Transient objects
// (bind groups, encoders, command buffers) are retired once the queue reports
// their submission index as completed. MapRead polls the queue from its own
// goroutine and maps the buffer after the copy has finished.
//
// Build with the nogpu tag to leave the package out.
package wgpu
