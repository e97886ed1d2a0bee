// Package tvlog is the structured logging sidecar used throughout tinyvm.
//
// It replaces the bdev_debug-gated fmt.Printf tracing found in
// biscuit/src/fs/blk.go and biscuit/src/ufs/driver.go with leveled,
// structured log lines. A nil *Logger is valid and silent, so callers that
// don't care about tracing pay nothing.
package tvlog

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger. The zero value is not usable; use Nop or New.
type Logger struct {
	z   zerolog.Logger
	nop bool
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{nop: true}
}

// New returns a Logger writing to w at the given level ("debug", "info",
// "warn", "error", or "" for info).
func New(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &Logger{z: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// Debugf logs eviction, load, and I/O round-trip tracing.
func (l *Logger) Debugf(msg string, kv ...any) {
	if l == nil || l.nop {
		return
	}
	logKV(l.z.Debug(), msg, kv)
}

// Errorf logs a failure that is also returned to the caller as an error.
func (l *Logger) Errorf(msg string, kv ...any) {
	if l == nil || l.nop {
		return
	}
	logKV(l.z.Error(), msg, kv)
}

func logKV(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
