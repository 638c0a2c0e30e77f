package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/workerlink-go/internal/errors"
)

// Transport defines the minimal interface needed for channel operations.
//
// This interface is satisfied by every config.Transport but allows for
// testing with mock transports.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
	IsReady() bool
}

// Options configures a Channel.
type Options struct {
	// RequestTimeout bounds how long Dispatch waits for a response.
	// Zero means wait until the response, teardown, or ctx cancellation.
	RequestTimeout time.Duration

	// Middleware wraps every handler, outermost first.
	Middleware []Middleware
}

// Channel correlates outbound calls with their responses and dispatches
// inbound requests to handlers.
//
// The Channel must be started with Start() before use and manages its own
// goroutine for reading and routing frames.
type Channel struct {
	log        *slog.Logger
	transport  Transport
	controller Controller
	debug      bool
	timeout    time.Duration
	middleware []Middleware

	// Pending calls, keyed by correlation id
	pendingMu sync.Mutex
	pending   map[string]*Call
	closed    bool
	closeErr  error

	// Handler registry for incoming requests
	handlersMu sync.RWMutex
	handlers   map[string]*registeredHandler

	// Lifecycle management
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type registeredHandler struct {
	handler Handler
	schema  *jsonschema.Resolved
}

// NewChannel creates a new channel over transport.
//
// The controller supplies the fallback action handler, the handler error
// policy and the debug flag. It may be nil, in which case unregistered
// actions are answered with UnknownAction and handler failures are only
// logged.
func NewChannel(log *slog.Logger, transport Transport, controller Controller, opts *Options) *Channel {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts == nil {
		opts = &Options{}
	}

	debug := controller != nil && controller.IsDebugMode()

	return &Channel{
		log:        log.With("component", "channel"),
		transport:  transport,
		controller: controller,
		debug:      debug,
		timeout:    opts.RequestTimeout,
		middleware: opts.Middleware,
		pending:    make(map[string]*Call, 10),
		handlers:   make(map[string]*registeredHandler, 10),
		done:       make(chan struct{}),
	}
}

// Start begins reading frames from the transport.
//
// This method spawns a goroutine that reads from the transport and routes
// frames. The goroutine stops when ctx is cancelled, the channel is closed,
// or the transport's read stream ends; the latter two tear the channel down.
// Start after Close does nothing.
func (c *Channel) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	c.pendingMu.Lock()

	if c.closed {
		c.pendingMu.Unlock()
		cancel()
		c.log.Debug("Ignoring start after teardown")

		return
	}

	c.cancel = cancel
	c.pendingMu.Unlock()

	messages, errs := c.transport.ReadMessages(runCtx)

	c.wg.Go(func() {
		c.readLoop(runCtx, messages, errs)
	})

	c.log.Debug("Channel started", "debug_mode", c.debug)
}

// Done returns a channel that is closed when the channel is torn down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the channel was torn down, or nil while it is open.
func (c *Channel) Err() error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return c.closeErr
}

// PendingCount returns the number of calls awaiting a response.
func (c *Channel) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return len(c.pending)
}

// Close tears the channel down: it rejects every pending call with
// ErrChannelClosed and discards all registered handlers. It's safe to call
// Close multiple times.
func (c *Channel) Close() {
	c.shutdown(errors.ErrChannelClosed)
}

// Wait blocks until the read loop and all in-flight handlers have returned.
// It must not be called from a handler.
func (c *Channel) Wait() {
	c.wg.Wait()
}

// RegisterHandler registers a handler for an action.
//
// Registering a handler for the same action twice replaces the previous
// handler. Registrations after teardown are ignored.
func (c *Channel) RegisterHandler(action string, handler Handler) {
	c.register(action, &registeredHandler{handler: handler})
}

// RegisterValidatedHandler registers a handler whose inbound payloads must
// satisfy schema. Payloads that fail validation are answered with an
// InvalidPayload failure and never reach the handler.
func (c *Channel) RegisterValidatedHandler(action string, schema *jsonschema.Schema, handler Handler) error {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for %q: %w", action, err)
	}

	c.register(action, &registeredHandler{handler: handler, schema: resolved})

	return nil
}

func (c *Channel) register(action string, rh *registeredHandler) {
	c.pendingMu.Lock()
	closed := c.closed
	c.pendingMu.Unlock()

	if closed {
		c.log.Debug("Ignoring handler registration after teardown", "action", action)

		return
	}

	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering action handler", "action", action)
	c.handlers[action] = rh
}

// Go sends a request and returns its pending call without waiting.
//
// Go fails immediately, without creating a pending entry, when the channel
// is closed (ErrChannelClosed) or the transport can no longer send
// (ErrTransportClosed).
func (c *Channel) Go(ctx context.Context, action string, payload any) (*Call, error) {
	c.pendingMu.Lock()
	closed := c.closed
	c.pendingMu.Unlock()

	if closed {
		return nil, errors.ErrChannelClosed
	}

	if !c.transport.IsReady() {
		return nil, errors.ErrTransportClosed
	}

	raw, err := marshalValue(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	id := c.generateCorrelationID()

	data, err := newRequestFrame(id, action, raw).Encode()
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	call := newCall(id, action)

	c.pendingMu.Lock()

	if c.closed {
		c.pendingMu.Unlock()

		return nil, errors.ErrChannelClosed
	}

	c.pending[id] = call
	c.pendingMu.Unlock()

	if c.debug {
		c.log.Debug("Frame sent", "kind", KindRequest, "id", id, "action", action)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		c.forget(id)
		c.log.Error("Failed to send request", "id", id, "action", action, "error", err)

		return nil, fmt.Errorf("send request: %w", err)
	}

	return call, nil
}

// Dispatch sends a request and waits for its response.
//
// The wait ends when the matching response arrives, the channel is torn
// down, ctx is cancelled, or the request timeout expires. A failure response
// is returned as a *errors.RemoteError.
func (c *Channel) Dispatch(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	call, err := c.Go(ctx, action, payload)
	if err != nil {
		return nil, err
	}

	var timeout <-chan time.Time

	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()

		timeout = timer.C
	}

	select {
	case <-call.Done():
		return call.Result()

	case <-timeout:
		if !c.forget(call.ID) {
			// Resolved while the timer fired.
			<-call.Done()

			return call.Result()
		}

		c.log.Warn("Request timed out", "id", call.ID, "action", action, "timeout", c.timeout)

		return nil, fmt.Errorf("%w after %s", errors.ErrRequestTimeout, c.timeout)

	case <-ctx.Done():
		if !c.forget(call.ID) {
			<-call.Done()

			return call.Result()
		}

		c.log.Debug("Request cancelled", "id", call.ID, "action", action)

		return nil, ctx.Err()
	}
}

// forget removes a pending entry. It reports whether the entry was still
// pending, i.e. whether the caller now owns its resolution.
func (c *Channel) forget(id string) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if _, ok := c.pending[id]; !ok {
		return false
	}

	delete(c.pending, id)

	return true
}

// shutdown tears the channel down exactly once, rejecting pending calls.
func (c *Channel) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.pendingMu.Lock()
		c.closed = true
		c.closeErr = cause
		pending := c.pending
		c.pending = make(map[string]*Call)
		cancel := c.cancel
		c.pendingMu.Unlock()

		c.handlersMu.Lock()
		c.handlers = make(map[string]*registeredHandler)
		c.handlersMu.Unlock()

		rejectErr := errors.ErrChannelClosed
		if cause != nil && !stderrors.Is(cause, errors.ErrChannelClosed) {
			rejectErr = fmt.Errorf("%w: %w", errors.ErrChannelClosed, cause)
		}

		for _, call := range pending {
			call.complete(nil, rejectErr)
		}

		if cancel != nil {
			cancel()
		}

		close(c.done)

		c.log.Debug("Channel closed", "rejected_calls", len(pending), "cause", cause)
	})
}

// readLoop reads frames from the transport and routes them.
func (c *Channel) readLoop(ctx context.Context, messages <-chan []byte, errs <-chan error) {
	defer c.log.Debug("Channel read loop stopped")

	for {
		select {
		case data, ok := <-messages:
			if !ok {
				c.log.Debug("Transport read stream ended")
				c.shutdown(errors.ErrTransportClosed)

				return
			}

			c.handleMessage(ctx, data)

		case err, ok := <-errs:
			if !ok {
				// Keep draining messages until the read stream ends.
				errs = nil

				continue
			}

			if err != nil {
				c.log.Debug("Transport error in channel", "error", err)
				c.shutdown(err)

				return
			}

		case <-c.done:
			return

		case <-ctx.Done():
			c.shutdown(ctx.Err())

			return
		}
	}
}

// handleMessage routes a frame based on its kind.
func (c *Channel) handleMessage(ctx context.Context, data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		c.log.Warn("Dropping malformed frame", "error", err)

		return
	}

	if c.debug {
		c.log.Debug("Frame received", "kind", frame.Kind, "id", frame.ID, "action", frame.Action)
	}

	switch frame.Kind {
	case KindRequest:
		c.handleRequest(ctx, frame)

	case KindSuccess, KindFailure:
		c.handleResponse(frame)
	}
}

// handleResponse resolves the pending call bearing the frame's id.
func (c *Channel) handleResponse(frame *Frame) {
	c.pendingMu.Lock()

	call, exists := c.pending[frame.ID]
	if exists {
		delete(c.pending, frame.ID)
	}

	c.pendingMu.Unlock()

	if !exists {
		if c.debug {
			c.log.Debug("Discarding response with no pending call", "id", frame.ID, "kind", frame.Kind)
		}

		return
	}

	if frame.Kind == KindFailure {
		call.complete(nil, &errors.RemoteError{
			Action:  call.Action,
			Kind:    frame.Error.Kind,
			Message: frame.Error.Message,
		})

		return
	}

	call.complete(frame.Result, nil)
}

// handleRequest invokes the handler for an inbound request on its own
// goroutine so the read loop keeps routing frames.
func (c *Channel) handleRequest(ctx context.Context, frame *Frame) {
	c.handlersMu.RLock()
	rh, exists := c.handlers[frame.Action]
	c.handlersMu.RUnlock()

	var (
		handler Handler = c.fallbackHandler
		schema  *jsonschema.Resolved
	)

	if exists {
		handler, schema = rh.handler, rh.schema
	}

	handler = Chain(append([]Middleware{Recover()}, c.middleware...)...)(handler)

	req := &Request{ID: frame.ID, Action: frame.Action, Payload: frame.Payload}

	c.wg.Go(func() {
		var (
			result any
			err    error
		)

		if schema != nil {
			err = validatePayload(schema, req.Payload)
		}

		if err == nil {
			result, err = handler(ctx, req)
		}

		if err != nil {
			c.respondError(ctx, req, err, !exists)

			return
		}

		raw, err := marshalValue(result)
		if err != nil {
			c.respondError(ctx, req, fmt.Errorf("marshal result: %w", err), false)

			return
		}

		c.send(ctx, newSuccessFrame(req.ID, raw))
	})
}

// fallbackHandler defers to the controller for unregistered actions.
func (c *Channel) fallbackHandler(ctx context.Context, req *Request) (any, error) {
	if c.controller == nil {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownAction, req.Action)
	}

	return c.controller.HandleAction(ctx, req)
}

// respondError answers a request with a failure frame and, for genuine
// handler failures, reports the error on this side.
// UnknownAction is answered only on the fallback path, and a failure received
// from the other side is always a handler error here.
func (c *Channel) respondError(ctx context.Context, req *Request, err error, fallback bool) {
	_, remote := stderrors.AsType[*errors.RemoteError](err)

	switch {
	case fallback && !remote && stderrors.Is(err, errors.ErrUnknownAction):
		c.log.Warn("No handler registered for action", "action", req.Action, "id", req.ID)
		c.send(ctx, newFailureFrame(req.ID, errors.KindUnknownAction, err.Error()))

	case !remote && stderrors.Is(err, errors.ErrInvalidPayload):
		c.log.Warn("Rejected invalid payload", "action", req.Action, "id", req.ID, "error", err)
		c.send(ctx, newFailureFrame(req.ID, errors.KindInvalidPayload, err.Error()))

	default:
		c.log.Warn("Handler returned error", "action", req.Action, "id", req.ID, "error", err)
		c.send(ctx, newFailureFrame(req.ID, errors.KindHandlerError, err.Error()))

		if c.controller != nil {
			c.controller.ReportActionHandlerError(fmt.Errorf("action %q: %w", req.Action, err))
		}
	}
}

// send writes a response frame. Failures are logged, never returned: there
// is no caller on this side to hand them to.
func (c *Channel) send(ctx context.Context, frame *Frame) {
	data, err := frame.Encode()
	if err != nil {
		c.log.Error("Failed to marshal response", "id", frame.ID, "error", err)

		return
	}

	if c.debug {
		c.log.Debug("Frame sent", "kind", frame.Kind, "id", frame.ID)
	}

	if err := c.transport.SendMessage(context.WithoutCancel(ctx), data); err != nil {
		if ctx.Err() != nil || stderrors.Is(err, errors.ErrTransportClosed) {
			c.log.Debug("Could not send response during shutdown", "id", frame.ID, "error", err)

			return
		}

		c.log.Error("Failed to send response", "id", frame.ID, "error", err)
	}
}

// generateCorrelationID creates a unique, monotonically increasing id.
func (c *Channel) generateCorrelationID() string {
	return ulid.Make().String()
}
