// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package heatmap

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/heatmap/mesh"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// devices holds the devices opened by live renderers so SetLogger can reach
// backends that log.
var devices deviceSet

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for heatmap and its sub-packages.
// By default nothing is logged.
//
// Log levels used:
//   - [slog.LevelDebug]: pass and buffer diagnostics, stale readbacks
//   - [slog.LevelInfo]: lifecycle events (device ready, dataset installed, export done)
//   - [slog.LevelWarn]: skipped frames and sink or presenter failures
//
// Pass nil to restore the silent default.
//
// Example:
//
//	heatmap.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	mesh.SetLogger(l)
	devices.each(func(d any) { propagateLogger(d, l) })
}

// Logger returns the current logger. Sub-packages such as ingest and
// integration/heatcanvas use it to share the configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(d any, l *slog.Logger) {
	if ls, ok := d.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}
