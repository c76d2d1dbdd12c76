package regalloc

import (
	"fmt"
	"strings"
)

// Logger receives diagnostic tracing during Run: the register chosen for
// a compound, the value affected, and the PC range involved (spec §6).
// The default implementation discards everything; WithLogger installs a
// caller-supplied sink, matching the teacher's own
// PrintAllocationResults-via-strings.Builder approach to reporting
// rather than a structured logging dependency (see SPEC_FULL.md,
// AMBIENT STACK).
type Logger interface {
	Tracef(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Tracef(string, ...any) {}

// stringsBuilderLogger accumulates trace lines in memory, in the spirit
// of the teacher's PrintAllocationResults-via-strings.Builder reporting
// style. NewRecordingLogger is the Logger callers reach for when they
// want to assert on Run's diagnostic trace (e.g. in tests) without
// wiring up a real logging sink.
type stringsBuilderLogger struct {
	b strings.Builder
}

// NewRecordingLogger returns a Logger that appends every trace line to
// an in-memory buffer, readable back via String.
func NewRecordingLogger() *stringsBuilderLogger {
	return &stringsBuilderLogger{}
}

func (l *stringsBuilderLogger) Tracef(format string, args ...any) {
	fmt.Fprintf(&l.b, format, args...)
	l.b.WriteByte('\n')
}

func (l *stringsBuilderLogger) String() string { return l.b.String() }
