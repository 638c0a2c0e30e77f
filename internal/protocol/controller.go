package protocol

import (
	"context"
	"encoding/json"
)

// Request is an inbound action request handed to a Handler.
type Request struct {
	// ID is the correlation id of the request frame.
	ID      string
	Action  string
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (r *Request) Decode(v any) error {
	if len(r.Payload) == 0 {
		return nil
	}

	return json.Unmarshal(r.Payload, v)
}

// Handler handles one action. The returned value is serialized as the result.
// A fallback handler returns an error wrapping ErrUnknownAction to decline
// the request.
type Handler func(ctx context.Context, req *Request) (any, error)

// Controller is the capability set each side supplies to its Channel.
// The main-side and worker-side controllers implement it independently.
type Controller interface {
	// HandleAction runs for requests whose action has no registered handler.
	// Actions the controller does not understand must return an error
	// wrapping ErrUnknownAction.
	HandleAction(ctx context.Context, req *Request) (any, error)

	// ReportActionHandlerError classifies and surfaces a handler failure on
	// the handling side. The caller side sees the failure separately as a
	// rejected call.
	ReportActionHandlerError(err error)

	// IsDebugMode enables per-frame tracing on the Channel.
	IsDebugMode() bool
}
