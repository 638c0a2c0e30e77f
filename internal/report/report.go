// Package report defines the fire-and-forget reporting sink used for
// telemetry: structured error events and named monitor events.
package report

import (
	"io"
	"log/slog"
	"sync"
)

// MonitorID names a monitor event. The values are a stable vocabulary.
type MonitorID string

const (
	// WorkerOnerror is reported when the worker fails outside the action
	// protocol (an uncaught error or an abnormal exit).
	WorkerOnerror MonitorID = "WorkerOnerror"

	// CreateWorkerError is reported when the host fails to create the worker.
	CreateWorkerError MonitorID = "CreateWorkerError"

	// ActionHandleError is reported when an action handler fails.
	ActionHandleError MonitorID = "ActionHandleError"
)

// Reporter accepts error and monitor events. Implementations must not block
// the caller for long and must never panic.
type Reporter interface {
	ReportError(err error)
	ReportMonitor(id MonitorID)
}

// Nop returns a Reporter that drops every event.
func Nop() Reporter {
	return nopReporter{}
}

type nopReporter struct{}

func (nopReporter) ReportError(error)       {}
func (nopReporter) ReportMonitor(MonitorID) {}

// Logger is a Reporter that writes events to a structured logger.
type Logger struct {
	log *slog.Logger
}

// NewLogger creates a Reporter backed by log. A nil logger discards events.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Logger{log: log.With("component", "report")}
}

// ReportError implements Reporter.
func (l *Logger) ReportError(err error) {
	l.log.Error("Reported error", "error", err)
}

// ReportMonitor implements Reporter.
func (l *Logger) ReportMonitor(id MonitorID) {
	l.log.Info("Reported monitor event", "monitor_id", string(id))
}

// Recorder is a Reporter that keeps every event in memory.
// It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	errors   []error
	monitors []MonitorID
}

// ReportError implements Reporter.
func (r *Recorder) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, err)
}

// ReportMonitor implements Reporter.
func (r *Recorder) ReportMonitor(id MonitorID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.monitors = append(r.monitors, id)
}

// Errors returns a copy of the recorded errors.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]error, len(r.errors))
	copy(result, r.errors)

	return result
}

// Monitors returns a copy of the recorded monitor ids.
func (r *Recorder) Monitors() []MonitorID {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]MonitorID, len(r.monitors))
	copy(result, r.monitors)

	return result
}

// Count returns how many times id was reported.
func (r *Recorder) Count(id MonitorID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, m := range r.monitors {
		if m == id {
			n++
		}
	}

	return n
}
