package meshparts

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/gekko3d/meshparts/meshrt/core"
)

// Logger is the logging interface every component accepts.
type Logger = core.Logger

var _ Logger = (*DefaultLogger)(nil)

// logSink is shared by a logger and every logger Named from it, so one
// SetDebug reaches all of them.
type logSink struct {
	debug atomic.Bool
	out   *log.Logger
	err   *log.Logger
}

// DefaultLogger writes "[prefix] LEVEL: message" lines. Debug and info go to
// the out writer, warnings and errors to the err writer.
type DefaultLogger struct {
	prefix string
	sink   *logSink
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewLogger(prefix, debug, os.Stdout, os.Stderr)
}

func NewLogger(prefix string, debug bool, out, errw io.Writer) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	sink := &logSink{
		out: log.New(out, "", flags),
		err: log.New(errw, "", flags),
	}
	sink.debug.Store(debug)
	return &DefaultLogger{prefix: prefix, sink: sink}
}

// Named returns a logger for one component, prefixed "parent/name", writing
// to the same outputs.
func (l *DefaultLogger) Named(name string) *DefaultLogger {
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "/" + name
	}
	return &DefaultLogger{prefix: prefix, sink: l.sink}
}

func (l *DefaultLogger) DebugEnabled() bool { return l.sink.debug.Load() }

func (l *DefaultLogger) SetDebug(enabled bool) { l.sink.debug.Store(enabled) }

func (l *DefaultLogger) line(to *log.Logger, level, format string, args []any) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix == "" {
		to.Printf("%s: %s", level, msg)
		return
	}
	to.Printf("[%s] %s: %s", l.prefix, level, msg)
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.sink.debug.Load() {
		l.line(l.sink.out, "DEBUG", format, args)
	}
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.line(l.sink.out, "INFO", format, args)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.line(l.sink.err, "WARN", format, args)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.line(l.sink.err, "ERROR", format, args)
}

// NewNopLogger discards everything.
func NewNopLogger() Logger { return core.NopLogger() }
