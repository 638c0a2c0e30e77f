package workerlink

import (
	"log/slog"
	"time"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/report"
)

// Options configures a controller. Build it with the With* functions.
type Options = config.Options

// HandlerErrorPolicy decides what happens to a handler failure after it has
// been reported.
type HandlerErrorPolicy = config.HandlerErrorPolicy

// Handler error policies.
const (
	PolicyDefault = config.PolicyDefault
	PolicyRethrow = config.PolicyRethrow
	PolicySwallow = config.PolicySwallow
)

// Option configures Options using the functional options pattern.
// The same options serve both the main side and the worker side.
type Option func(*Options)

// applyOptions applies functional options to a new Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithHost sets the capability used to create the worker.
// If not set, the controller stays unsupported and every dispatch fails
// with ErrUnsupported.
func WithHost(host Host) Option {
	return func(o *Options) {
		o.Host = host
	}
}

// WithWorkerURL sets the worker identifier. On the main side New sets it
// from its url argument; on the worker side it is the identifier the worker
// was spawned with.
func WithWorkerURL(url string) Option {
	return func(o *Options) {
		o.WorkerURL = url
	}
}

// WithWorkerName sets the human-readable worker name passed to the host.
func WithWorkerName(name string) Option {
	return func(o *Options) {
		o.WorkerName = name
	}
}

// WithDebugMode enables per-frame tracing. On the main side the worker is
// spawned with the debug marker so it traces too.
func WithDebugMode(debug bool) Option {
	return func(o *Options) {
		o.DebugMode = debug
	}
}

// ===== Reporting =====

// WithReporter sets the sink for error and monitor events.
func WithReporter(reporter Reporter) Option {
	return func(o *Options) {
		o.Reporter = reporter
	}
}

// WithHandlerErrorPolicy sets what happens to a handler failure after it
// has been reported. The main side rethrows by default, the worker side
// swallows.
func WithHandlerErrorPolicy(policy HandlerErrorPolicy) Option {
	return func(o *Options) {
		o.HandlerErrorPolicy = policy
	}
}

// WithErrorObserver sets the callback that receives rethrown handler
// failures.
func WithErrorObserver(fn func(error)) Option {
	return func(o *Options) {
		o.ErrorObserver = fn
	}
}

// ===== Dispatch =====

// WithRequestTimeout bounds how long Dispatch waits for a response.
// Zero, the default, waits until the response or teardown.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = timeout
	}
}

// WithActionHandler sets the fallback for actions without a registered
// handler. Return an error wrapping ErrUnknownAction to decline.
func WithActionHandler(handler Handler) Option {
	return func(o *Options) {
		o.ActionHandler = handler
	}
}

// WithMiddleware appends handler middleware, outermost first.
func WithMiddleware(middleware ...Middleware) Option {
	return func(o *Options) {
		o.Middleware = append(o.Middleware, middleware...)
	}
}

// Reporter accepts error and monitor events.
type Reporter = report.Reporter

// MonitorID names a monitor event.
type MonitorID = report.MonitorID

// Monitor ids reported by controllers.
const (
	WorkerOnerror     = report.WorkerOnerror
	CreateWorkerError = report.CreateWorkerError
	ActionHandleError = report.ActionHandleError
)

// ReportRecorder is a Reporter that keeps every event in memory.
type ReportRecorder = report.Recorder

// NewLogReporter returns a Reporter that writes events to log.
func NewLogReporter(log *slog.Logger) Reporter {
	return report.NewLogger(log)
}

// NewThrottledReporter limits the events forwarded to next to r per second
// per monitor id, with bursts of up to burst events.
func NewThrottledReporter(next Reporter, r float64, burst int) Reporter {
	return report.NewThrottled(next, r, burst)
}
