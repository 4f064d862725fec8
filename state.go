// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package heatmap

import "github.com/gogpu/heatmap/camera"

// MaxWeightState tracks the max-weight readback of the active dataset.
type MaxWeightState int

const (
	// MaxWeightEmpty means no readback has been issued for the dataset.
	MaxWeightEmpty MaxWeightState = iota
	// MaxWeightInProgress means a readback is mapped asynchronously.
	MaxWeightInProgress
	// MaxWeightCompleted means the max-weight uniform holds the dataset's maximum.
	MaxWeightCompleted
)

// String returns the state name.
func (s MaxWeightState) String() string {
	switch s {
	case MaxWeightEmpty:
		return "Empty"
	case MaxWeightInProgress:
		return "InProgress"
	case MaxWeightCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// State is the renderer state: Uninitialized or Ready.
type State interface {
	state()
}

// Uninitialized is the state before the device and surface exist.
type Uninitialized struct{}

// Ready is the state once a RenderContext exists. Geometry is nil until the
// first dataset is installed.
type Ready struct {
	Context   *RenderContext
	Geometry  *Geometry
	Camera    *camera.Camera
	MaxWeight MaxWeightState

	// Peak is the decoded maximum weight once MaxWeight is Completed.
	Peak float32

	export exportState
	saved  *camera.State
}

func (Uninitialized) state() {}
func (Ready) state()         {}

// Exporting reports whether an export has started and not yet completed.
func (s Ready) Exporting() bool {
	return s.export.phase != exportIdle
}

// ExportPending reports whether an export was requested and has not
// started yet.
func (s Ready) ExportPending() bool {
	return s.export.requested && s.export.phase == exportIdle
}

type exportPhase int

const (
	exportIdle exportPhase = iota
	exportRendering
	exportMapping
)

// exportState is the export request and its progress. restoreW and
// restoreH hold the viewport size to return to.
type exportState struct {
	requested bool
	phase     exportPhase
	restoreW  uint32
	restoreH  uint32
}
