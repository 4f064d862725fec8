package heatmap

import "errors"

var (
	// ErrLODTable is returned by New for a LOD table whose zoom bounds do
	// not ascend or whose levels do not descend.
	ErrLODTable = errors.New("heatmap: LOD thresholds must ascend in zoom and descend in level")

	// ErrExportSize is returned by New for a zero export size.
	ErrExportSize = errors.New("heatmap: export size must be nonzero")

	// ErrClosed is returned when messages are dispatched to a closed renderer.
	ErrClosed = errors.New("heatmap: renderer closed")
)
