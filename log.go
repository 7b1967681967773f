package pkgdb

import (
	"fmt"
	"os"

	"github.com/facebookgo/clock"
	raven "github.com/getsentry/raven-go"
)

// Logger is the façade's terse, leveled log line writer, built on the
// teacher's own logging-adjacent deps (SPEC_FULL.md "AMBIENT STACK"):
// facebookgo/clock for an injectable timestamp source (WithClock accepts
// a clock.NewMock in place of the real clock), and getsentry/raven-go
// to capture unexpected failures the way store/file_store.go does, even
// though the CLI front end just prints and exits.
type Logger struct {
	Quiet bool
	Clock clock.Clock
	Out   *os.File
}

// NewLogger returns a Logger using the real clock and stderr.
func NewLogger() *Logger {
	return &Logger{Clock: clock.New(), Out: os.Stderr}
}

func (l *Logger) clock() clock.Clock {
	if l.Clock != nil {
		return l.Clock
	}
	return clock.New()
}

// Printf writes a log line unless Quiet is set (§6 "the quiet flag
// suppresses non-error logs").
func (l *Logger) Printf(format string, args ...interface{}) {
	if l.Quiet {
		return
	}
	l.write(format, args...)
}

// Errorf always writes, quiet or not, and reports err to Sentry so an
// operator running with --quiet still gets a breadcrumb for unexpected
// failures, mirroring store/file_store.go's raven.CaptureError use.
func (l *Logger) Errorf(err error, format string, args ...interface{}) {
	l.write(format, args...)
	if err != nil {
		raven.CaptureError(err, map[string]string{"component": "pkgdb"})
	}
}

// Dot writes a single progress dot with no trailing newline, used for the
// per-successful-install progress indicator (§6).
func (l *Logger) Dot() {
	if l.Quiet {
		return
	}
	fmt.Fprint(l.out(), ".")
}

func (l *Logger) write(format string, args ...interface{}) {
	ts := l.clock().Now().Format("2006/01/02 15:04:05")
	fmt.Fprintf(l.out(), "%s "+format+"\n", append([]interface{}{ts}, args...)...)
}

func (l *Logger) out() *os.File {
	if l.Out != nil {
		return l.Out
	}
	return os.Stderr
}
