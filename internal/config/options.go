package config

import (
	"log/slog"
	"time"

	"github.com/wagiedev/workerlink-go/internal/protocol"
	"github.com/wagiedev/workerlink-go/internal/report"
)

// HandlerErrorPolicy decides what happens to an action handler failure after
// it has been logged and reported on the handling side.
type HandlerErrorPolicy string

const (
	// PolicyDefault leaves the decision to the side: the main side
	// rethrows, the worker side swallows.
	PolicyDefault HandlerErrorPolicy = ""
	// PolicyRethrow forwards the failure to the ErrorObserver.
	PolicyRethrow HandlerErrorPolicy = "rethrow"
	// PolicySwallow stops after reporting.
	PolicySwallow HandlerErrorPolicy = "swallow"
)

// Options configures a controller on either side of the channel.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Host is the capability to create workers. Main side only.
	// If nil, the environment is treated as unable to create workers.
	Host Host

	// WorkerURL identifies the worker to spawn. On the worker side it is the
	// identifier the worker was spawned with.
	WorkerURL string

	// WorkerName is a human-readable name handed to the host at spawn.
	WorkerName string

	// DebugMode enables per-frame tracing and marks the spawned worker as a
	// debug worker. On the worker side it is derived from WorkerURL when
	// left false.
	DebugMode bool

	// Reporter receives error and monitor events. If nil, events are dropped.
	Reporter report.Reporter

	// RequestTimeout bounds how long Dispatch waits for a response.
	// Zero means no timeout.
	RequestTimeout time.Duration

	// HandlerErrorPolicy applies after a handler failure is reported.
	HandlerErrorPolicy HandlerErrorPolicy

	// ErrorObserver receives rethrown handler failures. It stands in for the
	// host's top-level error handler and must not block.
	ErrorObserver func(error)

	// ActionHandler answers requests for actions without a registered
	// handler. If nil, such requests fail with UnknownAction.
	ActionHandler protocol.Handler

	// Middleware wraps every registered and fallback handler, outermost first.
	Middleware []protocol.Middleware
}

// Policy returns the effective handler error policy, substituting fallback
// for PolicyDefault.
func (o *Options) Policy(fallback HandlerErrorPolicy) HandlerErrorPolicy {
	if o.HandlerErrorPolicy == PolicyDefault {
		return fallback
	}

	return o.HandlerErrorPolicy
}

// ChannelOptions returns the subset of o that configures a Channel.
func (o *Options) ChannelOptions() *protocol.Options {
	return &protocol.Options{
		RequestTimeout: o.RequestTimeout,
		Middleware:     o.Middleware,
	}
}
