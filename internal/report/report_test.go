package report

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorder_ConcurrentReports(t *testing.T) {
	rec := &Recorder{}

	var wg sync.WaitGroup

	for range 20 {
		wg.Go(func() {
			rec.ReportMonitor(WorkerOnerror)
			rec.ReportError(errors.New("boom"))
		})
	}

	wg.Wait()

	require.Equal(t, 20, rec.Count(WorkerOnerror))
	require.Zero(t, rec.Count(CreateWorkerError))
	require.Len(t, rec.Errors(), 20)
	require.Len(t, rec.Monitors(), 20)
}

func TestLogger_WritesEvents(t *testing.T) {
	var buf bytes.Buffer

	r := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	r.ReportMonitor(ActionHandleError)
	r.ReportError(errors.New("handler exploded"))

	out := buf.String()
	require.Contains(t, out, "monitor_id=ActionHandleError")
	require.Contains(t, out, `error="handler exploded"`)
	require.Contains(t, out, "component=report")
}

func TestLogger_NilLoggerIsSilent(t *testing.T) {
	r := NewLogger(nil)

	require.NotPanics(t, func() {
		r.ReportMonitor(WorkerOnerror)
		r.ReportError(errors.New("dropped"))
	})
}

func TestNop(t *testing.T) {
	require.NotPanics(t, func() {
		Nop().ReportMonitor(WorkerOnerror)
		Nop().ReportError(nil)
	})
}

func TestThrottled_LimitsPerMonitorID(t *testing.T) {
	rec := &Recorder{}
	// Effectively no refill during the test: only the burst gets through.
	th := NewThrottled(rec, 0.0001, 2)

	for range 5 {
		th.ReportMonitor(WorkerOnerror)
	}

	for range 5 {
		th.ReportMonitor(ActionHandleError)
	}

	require.Equal(t, 2, rec.Count(WorkerOnerror))
	require.Equal(t, 2, rec.Count(ActionHandleError))
	require.Equal(t, 6, th.Dropped())
}

func TestThrottled_LimitsErrors(t *testing.T) {
	rec := &Recorder{}
	th := NewThrottled(rec, 0.0001, 1)

	th.ReportError(errors.New("first"))
	th.ReportError(errors.New("second"))

	require.Len(t, rec.Errors(), 1)
	require.EqualError(t, rec.Errors()[0], "first")
	require.Equal(t, 1, th.Dropped())
}
