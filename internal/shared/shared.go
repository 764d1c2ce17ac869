// package shared defines shared helpers
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer] and timestamps enabled.
//
// The writer defaults to [os.Stderr] and the level to [log.WarnLevel], so only warnings reach the terminal unless debugging.
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, Level: log.WarnLevel}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// EnableDebug turns on debug output and caller reporting.
func EnableDebug(l *log.Logger) {
	SetLogLevel(l, log.DebugLevel)
	l.SetReportCaller(true)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// RunID returns a short identifier used to correlate the log lines of one run.
func RunID() string {
	return GenerateID()[:8]
}
