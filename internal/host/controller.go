package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/errors"
	"github.com/wagiedev/workerlink-go/internal/protocol"
	"github.com/wagiedev/workerlink-go/internal/report"
	"github.com/wagiedev/workerlink-go/internal/workerurl"
)

// Controller owns one worker and the Channel bound to it.
type Controller struct {
	log      *slog.Logger
	options  *config.Options
	reporter report.Reporter
	url      string

	// Set during construction, read-only afterwards
	canCreateRemote bool
	timeBeforeSpawn time.Time
	timeAfterSpawn  time.Time
	transport       config.Transport
	channel         *protocol.Channel

	mu            sync.Mutex
	state         State
	terminateOnce sync.Once
}

// Compile-time verification that Controller implements protocol.Controller.
var _ protocol.Controller = (*Controller)(nil)

// ActionCall is one entry of a DispatchAll batch.
type ActionCall struct {
	Action  string
	Payload any
}

// New creates the worker described by options and binds a Channel to it.
//
// New never fails. When the host capability is missing the controller stays
// in StateUnsupported; when spawning fails it ends in StateSpawnFailed after
// reporting the failure. In both cases every dispatch fails fast with
// ErrUnsupported.
//
// ctx only bounds the spawn itself. The worker lives until Terminate.
func New(ctx context.Context, options *config.Options) *Controller {
	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	reporter := options.Reporter
	if reporter == nil {
		reporter = report.Nop()
	}

	c := &Controller{
		log:      log.With("component", "controller", "worker", options.WorkerName),
		options:  options,
		reporter: reporter,
		url:      workerurl.WithDebugMarker(options.WorkerURL, options.DebugMode),
		state:    StateUnsupported,
	}

	if options.Host == nil {
		c.log.Debug("Worker creation unsupported in this environment")

		return c
	}

	c.canCreateRemote = true
	c.timeBeforeSpawn = time.Now()

	if err := c.spawn(ctx); err != nil {
		c.canCreateRemote = false
		c.state = StateSpawnFailed

		spawnErr := &errors.SpawnError{URL: c.url, Err: err}

		c.log.Error("Failed to create worker", "url", c.url, "error", err)
		c.reporter.ReportError(spawnErr)
		c.reporter.ReportMonitor(report.CreateWorkerError)

		return c
	}

	c.state = StateReady

	c.log.Debug("Worker created",
		"url", c.url,
		"spawn_duration", c.timeAfterSpawn.Sub(c.timeBeforeSpawn),
	)

	return c
}

// spawn creates the worker and binds the Channel to it. A panic raised by the
// host is returned as an error; any transport obtained before it is closed.
func (c *Controller) spawn(ctx context.Context) (err error) {
	var transport config.Transport

	defer func() {
		if v := recover(); v != nil {
			if transport != nil {
				_ = transport.Close()
			}

			c.transport = nil
			c.channel = nil
			c.timeAfterSpawn = time.Time{}
			err = fmt.Errorf("host panicked: %v", v)
		}
	}()

	lifetime := context.WithoutCancel(ctx)

	transport, err = c.options.Host.Spawn(lifetime, c.url, c.options.WorkerName)
	if err != nil {
		return err
	}

	transport.OnError(c.handleWorkerError)

	c.timeAfterSpawn = time.Now()
	c.transport = transport

	c.channel = protocol.NewChannel(c.log, transport, c, c.options.ChannelOptions())
	c.channel.Start(lifetime)

	return nil
}

// handleWorkerError observes failures inside the worker that never went
// through the action protocol. There is no call to reject, so the failure
// only reaches the reporting sink.
func (c *Controller) handleWorkerError(err error) {
	c.log.Error("Uncaught worker error", "error", err)
	c.reporter.ReportError(err)
	c.reporter.ReportMonitor(report.WorkerOnerror)
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// CanCreateRemote reports whether the worker was created.
func (c *Controller) CanCreateRemote() bool {
	return c.canCreateRemote
}

// TimeBeforeSpawn returns the time the spawn started, or the zero time if no
// spawn was attempted.
func (c *Controller) TimeBeforeSpawn() time.Time {
	return c.timeBeforeSpawn
}

// TimeAfterSpawn returns the time the spawn completed, or the zero time if
// it never did.
func (c *Controller) TimeAfterSpawn() time.Time {
	return c.timeAfterSpawn
}

// WorkerURL returns the identifier the worker was spawned with, including
// the debug marker when debug mode is on.
func (c *Controller) WorkerURL() string {
	return c.url
}

// Done returns a channel that is closed once the Channel is torn down.
// Without a worker it is closed from the start.
func (c *Controller) Done() <-chan struct{} {
	if c.channel == nil {
		done := make(chan struct{})
		close(done)

		return done
	}

	return c.channel.Done()
}

// PendingCount returns the number of calls awaiting a response.
func (c *Controller) PendingCount() int {
	if c.channel == nil {
		return 0
	}

	return c.channel.PendingCount()
}

func (c *Controller) getChannel() (*protocol.Channel, error) {
	if c.channel == nil {
		return nil, fmt.Errorf("%w: worker %q (%s)", errors.ErrUnsupported, c.url, c.State())
	}

	return c.channel, nil
}

// Go sends an action request to the worker and returns its pending call.
func (c *Controller) Go(ctx context.Context, action string, payload any) (*protocol.Call, error) {
	ch, err := c.getChannel()
	if err != nil {
		return nil, err
	}

	return ch.Go(ctx, action, payload)
}

// Dispatch sends an action request to the worker and waits for its result.
func (c *Controller) Dispatch(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	ch, err := c.getChannel()
	if err != nil {
		return nil, err
	}

	return ch.Dispatch(ctx, action, payload)
}

// DispatchAll dispatches calls concurrently and returns their results in
// order. The first failure cancels the remaining waits and is returned.
func (c *Controller) DispatchAll(ctx context.Context, calls []ActionCall) ([]json.RawMessage, error) {
	if _, err := c.getChannel(); err != nil {
		return nil, err
	}

	results := make([]json.RawMessage, len(calls))

	eg, egCtx := errgroup.WithContext(ctx)

	for i, call := range calls {
		eg.Go(func() error {
			result, err := c.channel.Dispatch(egCtx, call.Action, call.Payload)
			if err != nil {
				return fmt.Errorf("dispatch %q: %w", call.Action, err)
			}

			results[i] = result

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// RegisterHandler installs handler for requests the worker sends to the
// main side.
func (c *Controller) RegisterHandler(action string, handler protocol.Handler) error {
	ch, err := c.getChannel()
	if err != nil {
		return err
	}

	ch.RegisterHandler(action, handler)

	return nil
}

// RegisterValidatedHandler installs handler behind JSON Schema validation of
// the request payload.
func (c *Controller) RegisterValidatedHandler(action string, schema *jsonschema.Schema, handler protocol.Handler) error {
	ch, err := c.getChannel()
	if err != nil {
		return err
	}

	return ch.RegisterValidatedHandler(action, schema, handler)
}

// Terminate destroys the worker and tears the Channel down, rejecting every
// pending call. It is irreversible and safe to call in any state, any
// number of times.
func (c *Controller) Terminate() {
	c.terminateOnce.Do(func() {
		c.mu.Lock()
		c.state = StateTerminated
		c.mu.Unlock()

		if c.transport != nil {
			if err := c.transport.Close(); err != nil {
				c.log.Warn("Failed to close worker transport", "error", err)
			}
		}

		if c.channel != nil {
			c.channel.Close()
		}

		c.log.Debug("Worker terminated")
	})
}

// HandleAction answers requests for actions without a registered handler.
func (c *Controller) HandleAction(ctx context.Context, req *protocol.Request) (any, error) {
	if c.options.ActionHandler != nil {
		return c.options.ActionHandler(ctx, req)
	}

	return nil, fmt.Errorf("%w: %q", errors.ErrUnknownAction, req.Action)
}

// ReportActionHandlerError reports a failed main-side handler. Under
// PolicyRethrow, the default here, the error is then forwarded to the
// ErrorObserver.
func (c *Controller) ReportActionHandlerError(err error) {
	c.log.Error("Action handler failed", "error", err)
	c.reporter.ReportError(err)
	c.reporter.ReportMonitor(report.ActionHandleError)

	if c.options.Policy(config.PolicyRethrow) != config.PolicyRethrow {
		return
	}

	if c.options.ErrorObserver == nil {
		c.log.Warn("Rethrown handler error has no observer", "error", err)

		return
	}

	c.options.ErrorObserver(err)
}

// IsDebugMode reports whether per-frame tracing is enabled.
func (c *Controller) IsDebugMode() bool {
	return c.options.DebugMode
}
