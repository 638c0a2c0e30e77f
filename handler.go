package workerlink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/workerlink-go/internal/protocol"
)

// Request is an inbound action request.
type Request = protocol.Request

// Handler handles one action. The returned value is serialized as the result.
type Handler = protocol.Handler

// Middleware wraps a Handler.
type Middleware = protocol.Middleware

// Call is a pending outbound request returned by Go.
type Call = protocol.Call

// Schema is a JSON Schema object for payload validation.
type Schema = jsonschema.Schema

// Dispatcher sends an action and waits for its result. Controller and
// WorkerController both implement it.
type Dispatcher interface {
	Dispatch(ctx context.Context, action string, payload any) (json.RawMessage, error)
}

// Compile-time verification that both controllers implement Dispatcher.
var (
	_ Dispatcher = (*Controller)(nil)
	_ Dispatcher = (*WorkerController)(nil)
)

// Invoke dispatches action and decodes the result into T.
func Invoke[T any](ctx context.Context, d Dispatcher, action string, payload any) (T, error) {
	var out T

	raw, err := d.Dispatch(ctx, action, payload)
	if err != nil {
		return out, err
	}

	if len(raw) == 0 {
		return out, nil
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %q result: %w", action, err)
	}

	return out, nil
}

// HandlerFunc adapts a typed function into a Handler. The payload is decoded
// into In; decode failures are returned as handler errors.
func HandlerFunc[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Handler {
	return func(ctx context.Context, req *Request) (any, error) {
		var in In
		if err := req.Decode(&in); err != nil {
			return nil, fmt.Errorf("decode %q payload: %w", req.Action, err)
		}

		return fn(ctx, in)
	}
}

// SimpleSchema creates an object schema from a map of property names to
// type names ("string", "int", "float64", "bool", ...). All properties are
// required.
func SimpleSchema(props map[string]string) *Schema {
	return protocol.SimpleSchema(props)
}

// LoggingMiddleware logs every handled action with its duration at debug
// level.
func LoggingMiddleware(log *slog.Logger) Middleware {
	if log == nil {
		log = NopLogger()
	}

	return protocol.Logging(log.With("component", "handler"))
}
