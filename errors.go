package workerlink

import "github.com/wagiedev/workerlink-go/internal/errors"

// Re-export error types from internal package

// WorkerLinkError is the marker interface implemented by all typed errors.
type WorkerLinkError = errors.WorkerLinkError

// RemoteError is a failure response received for a dispatched action.
type RemoteError = errors.RemoteError

// SpawnError indicates the host failed to create the worker.
type SpawnError = errors.SpawnError

// ProcessError indicates the worker failed outside the action protocol.
type ProcessError = errors.ProcessError

// FrameDecodeError indicates a received frame could not be decoded.
type FrameDecodeError = errors.FrameDecodeError

// HandlerPanicError indicates an action handler panicked.
type HandlerPanicError = errors.HandlerPanicError

// Failure kinds carried by failure responses.
const (
	KindUnknownAction  = errors.KindUnknownAction
	KindHandlerError   = errors.KindHandlerError
	KindInvalidPayload = errors.KindInvalidPayload
)

// Re-export sentinel errors from internal package.
var (
	// ErrTransportClosed indicates the transport can no longer send.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrTransportNotConnected indicates the transport was never connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrChannelClosed indicates the channel was torn down.
	ErrChannelClosed = errors.ErrChannelClosed

	// ErrUnsupported indicates no worker exists to dispatch to.
	ErrUnsupported = errors.ErrUnsupported

	// ErrUnknownAction indicates no handler exists for the action.
	ErrUnknownAction = errors.ErrUnknownAction

	// ErrInvalidPayload indicates the payload failed validation.
	ErrInvalidPayload = errors.ErrInvalidPayload

	// ErrHandlerFailed indicates the remote handler returned an error.
	ErrHandlerFailed = errors.ErrHandlerFailed

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout
)
