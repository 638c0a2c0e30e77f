package errors

import (
	"errors"
	"fmt"
)

// WorkerLinkError is the base interface for all structured workerlink errors.
type WorkerLinkError interface {
	error
	IsWorkerLinkError() bool
}

// Compile-time verification that all error types implement WorkerLinkError.
var (
	_ WorkerLinkError = (*RemoteError)(nil)
	_ WorkerLinkError = (*SpawnError)(nil)
	_ WorkerLinkError = (*ProcessError)(nil)
	_ WorkerLinkError = (*FrameDecodeError)(nil)
	_ WorkerLinkError = (*HandlerPanicError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrTransportClosed indicates the underlying transport can no longer send.
	ErrTransportClosed = errors.New("transport closed")

	// ErrTransportNotConnected indicates the transport was never started.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrChannelClosed indicates the channel was torn down before or while a
	// call was pending.
	ErrChannelClosed = errors.New("channel closed")

	// ErrUnsupported indicates the host cannot create a worker, so no channel
	// exists to dispatch on.
	ErrUnsupported = errors.New("worker unsupported")

	// ErrUnknownAction indicates no handler is registered for an action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidPayload indicates a request payload failed schema validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrHandlerFailed indicates the remote handler returned an error.
	ErrHandlerFailed = errors.New("action handler failed")

	// ErrRequestTimeout indicates a dispatch did not receive its response in time.
	ErrRequestTimeout = errors.New("request timeout")
)

// Failure kinds carried by response-failure frames.
const (
	KindUnknownAction  = "UnknownAction"
	KindHandlerError   = "HandlerError"
	KindInvalidPayload = "InvalidPayload"
)

// RemoteError is the caller-side view of a response-failure frame.
type RemoteError struct {
	Action  string
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("action %q failed (%s): %s", e.Action, e.Kind, e.Message)
}

// Is maps the failure kind onto the matching sentinel.
func (e *RemoteError) Is(target error) bool {
	switch e.Kind {
	case KindUnknownAction:
		return target == ErrUnknownAction
	case KindInvalidPayload:
		return target == ErrInvalidPayload
	case KindHandlerError:
		return target == ErrHandlerFailed
	}

	return false
}

// IsWorkerLinkError implements WorkerLinkError.
func (e *RemoteError) IsWorkerLinkError() bool { return true }

// SpawnError indicates the host failed to create the worker.
type SpawnError struct {
	URL string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to create worker %q: %v", e.URL, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsWorkerLinkError implements WorkerLinkError.
func (e *SpawnError) IsWorkerLinkError() bool { return true }

// ProcessError indicates the worker failed outside the action protocol.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("worker failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("worker failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsWorkerLinkError implements WorkerLinkError.
func (e *ProcessError) IsWorkerLinkError() bool { return true }

// FrameDecodeError indicates an inbound message was not a valid frame.
// This error preserves the original raw data that failed to parse.
type FrameDecodeError struct {
	RawData string
	Err     error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame: %v", e.Err)
}

func (e *FrameDecodeError) Unwrap() error {
	return e.Err
}

// IsWorkerLinkError implements WorkerLinkError.
func (e *FrameDecodeError) IsWorkerLinkError() bool { return true }

// HandlerPanicError indicates an action handler panicked.
type HandlerPanicError struct {
	Action string
	Value  any
	Stack  []byte
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("action %q panicked: %v", e.Action, e.Value)
}

// Unwrap returns the panic value when it was itself an error.
func (e *HandlerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}

	return nil
}

// IsWorkerLinkError implements WorkerLinkError.
func (e *HandlerPanicError) IsWorkerLinkError() bool { return true }
