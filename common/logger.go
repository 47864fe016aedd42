package common

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger installs the logger shared by every engine package.
// By default nothing is logged. Passing nil restores the silent default.
//
// Levels used by the engine:
//   - slog.LevelDebug: per-frame and per-instance diagnostics
//   - slog.LevelInfo: lifecycle events (renderer created, worker started)
//   - slog.LevelWarn: recoverable faults (model unavailable, reconnects)
//   - slog.LevelError: disposal failures and recovered panics
//
// Parameters:
//   - l: the logger to install, or nil
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the logger installed with SetLogger.
// Safe for concurrent use.
//
// Returns:
//   - *slog.Logger: the active logger
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// ComponentLogger returns the active logger tagged with a component attribute.
//
// Parameters:
//   - component: short component name, e.g. "scene" or "reclaimer"
//
// Returns:
//   - *slog.Logger: the tagged logger
func ComponentLogger(component string) *slog.Logger {
	return Logger().With(slog.String("component", component))
}
