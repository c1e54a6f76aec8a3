// Package logging provides the leveled, named logger threaded through every
// subsystem, shaped after the teacher's device.Logger (Verbosef/Errorf taking
// a %v-prefixed caller) but backed by zap instead of a bespoke stdlib writer.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger with a fixed "name" field so every line
// a subsystem emits is trivially attributable (mirrors the Rust original's
// per-module INNER_NAME constant prepended to each log line).
type Logger struct {
	name string
	s    *zap.SugaredLogger
}

var base *zap.Logger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// New returns a Logger scoped to name, e.g. "mdns", "ble", "session:inbound".
func New(name string) *Logger {
	return &Logger{name: name, s: base.Sugar().Named(name)}
}

func (l *Logger) Verbosef(format string, args ...any) {
	l.s.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.s.Infof(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.s.Errorf(format, args...)
}

// With returns a derived logger for a more specific scope, e.g. a session id.
func (l *Logger) With(suffix string) *Logger {
	return &Logger{name: fmt.Sprintf("%s:%s", l.name, suffix), s: l.s.Named(suffix)}
}

// Sync flushes any buffered log entries; call once at process shutdown.
func Sync() {
	_ = base.Sync()
}
