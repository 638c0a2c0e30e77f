package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/errors"
	"github.com/wagiedev/workerlink-go/internal/protocol"
	"github.com/wagiedev/workerlink-go/internal/report"
	"github.com/wagiedev/workerlink-go/internal/workerurl"
)

// Controller serves actions on the worker side of a transport.
type Controller struct {
	log       *slog.Logger
	options   *config.Options
	reporter  report.Reporter
	debug     bool
	transport config.Transport
	channel   *protocol.Channel
	started   atomic.Bool
}

// Compile-time verification that Controller implements protocol.Controller.
var _ protocol.Controller = (*Controller)(nil)

// New creates a worker-side controller over transport. Register handlers,
// then call Run.
//
// Debug mode is on when options.DebugMode is set or when options.WorkerURL
// carries the debug marker added by the main side.
func New(transport config.Transport, options *config.Options) *Controller {
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
		log:       log.With("component", "worker", "worker", options.WorkerName),
		options:   options,
		reporter:  reporter,
		debug:     options.DebugMode || workerurl.IsDebug(options.WorkerURL),
		transport: transport,
	}

	c.channel = protocol.NewChannel(c.log, transport, c, options.ChannelOptions())

	return c
}

// RegisterHandler installs handler for action. Last write wins.
func (c *Controller) RegisterHandler(action string, handler protocol.Handler) {
	c.channel.RegisterHandler(action, handler)
}

// RegisterValidatedHandler installs handler behind JSON Schema validation of
// the request payload.
func (c *Controller) RegisterValidatedHandler(action string, schema *jsonschema.Schema, handler protocol.Handler) error {
	return c.channel.RegisterValidatedHandler(action, schema, handler)
}

// Go sends an action request to the main side without waiting.
func (c *Controller) Go(ctx context.Context, action string, payload any) (*protocol.Call, error) {
	return c.channel.Go(ctx, action, payload)
}

// Dispatch sends an action request to the main side and waits for the result.
func (c *Controller) Dispatch(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	return c.channel.Dispatch(ctx, action, payload)
}

// Run serves requests until the main side goes away, Close is called, or
// ctx is cancelled. A main side going away is a normal end and returns nil,
// including when ctx was cancelled with ErrTransportClosed as its cause;
// any other cancellation returns ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("worker controller already running")
	}

	defer c.Close()

	c.channel.Start(ctx)

	c.log.Debug("Worker serving", "debug_mode", c.debug)

	eg, egCtx := errgroup.WithContext(ctx)

	// Channel lifetime
	eg.Go(func() error {
		<-c.channel.Done()
		c.channel.Wait()

		return nil
	})

	// Cancellation watcher
	eg.Go(func() error {
		select {
		case <-egCtx.Done():
			c.Close()
		case <-c.channel.Done():
		}

		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		if stderrors.Is(context.Cause(ctx), errors.ErrTransportClosed) {
			c.log.Debug("Worker stopped with its transport")

			return nil
		}

		return err
	}

	cause := c.channel.Err()
	if cause == nil ||
		stderrors.Is(cause, errors.ErrTransportClosed) ||
		stderrors.Is(cause, errors.ErrChannelClosed) {
		c.log.Debug("Worker stopped")

		return nil
	}

	return fmt.Errorf("worker channel: %w", cause)
}

// Close tears down the Channel and closes the transport. Run calls it on
// the way out. It's safe to call Close multiple times.
func (c *Controller) Close() {
	c.channel.Close()

	if err := c.transport.Close(); err != nil {
		c.log.Debug("Failed to close worker transport", "error", err)
	}
}

// HandleAction answers requests for actions without a registered handler.
func (c *Controller) HandleAction(ctx context.Context, req *protocol.Request) (any, error) {
	if c.options.ActionHandler != nil {
		return c.options.ActionHandler(ctx, req)
	}

	return nil, fmt.Errorf("%w: %q", errors.ErrUnknownAction, req.Action)
}

// ReportActionHandlerError reports a failed worker-side handler. The worker
// has no top-level error handler to rethrow into, so PolicySwallow is the
// default here; PolicyRethrow forwards to the ErrorObserver when one is set.
func (c *Controller) ReportActionHandlerError(err error) {
	c.log.Error("Action handler failed", "error", err)
	c.reporter.ReportError(err)
	c.reporter.ReportMonitor(report.ActionHandleError)

	if c.options.Policy(config.PolicySwallow) == config.PolicyRethrow && c.options.ErrorObserver != nil {
		c.options.ErrorObserver(err)
	}
}

// IsDebugMode reports whether per-frame tracing is enabled.
func (c *Controller) IsDebugMode() bool {
	return c.debug
}
