// Package logmgr provides the small per-package replaceable logger registry
// used across the engine, modeled on the teacher daemon's log.go/build
// pattern but stripped of log rotation and RPC-server plumbing which are
// out of scope for a library.
package logmgr

import (
	"os"

	"github.com/decred/slog"
)

// replaceableLogger lets a package log before the root backend is wired up:
// it starts as a disabled logger and is swapped in place once SetupLogging
// runs.
type replaceableLogger struct {
	slog.Logger
	subsystem string
}

var (
	pkgLoggers []*replaceableLogger
	backend    = slog.NewBackend(os.Stderr)
)

// NewPkgLogger registers and returns a logger for subsystem. Packages call
// this once at init time and keep the returned value in a package-level
// `log` variable; it starts disabled until SetupLogging (or UseLogger) is
// called.
func NewPkgLogger(subsystem string) slog.Logger {
	l := &replaceableLogger{
		Logger:    backend.Logger(subsystem),
		subsystem: subsystem,
	}
	l.Logger.SetLevel(slog.LevelOff)
	pkgLoggers = append(pkgLoggers, l)
	return l
}

// SetupLogging sets every registered package logger to level and routes it
// through a fresh backend writing to w (os.Stderr if w is nil).
func SetupLogging(level slog.Level, w *os.File) {
	if w == nil {
		w = os.Stderr
	}
	root := slog.NewBackend(w)
	for _, l := range pkgLoggers {
		l.Logger = root.Logger(l.subsystem)
		l.Logger.SetLevel(level)
	}
}
