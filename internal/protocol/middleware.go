package protocol

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/wagiedev/workerlink-go/internal/errors"
)

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain composes middlewares so the first one is outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}

// Recover converts a panicking handler into a *errors.HandlerPanicError.
// The Channel always installs it outermost.
func Recover() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (result any, err error) {
			defer func() {
				if v := recover(); v != nil {
					result = nil
					err = &errors.HandlerPanicError{Action: req.Action, Value: v, Stack: debug.Stack()}
				}
			}()

			return next(ctx, req)
		}
	}
}

// Logging logs each handled request with its duration.
func Logging(log *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			start := time.Now()

			result, err := next(ctx, req)

			log.Debug("Handled action",
				"action", req.Action,
				"id", req.ID,
				"duration", time.Since(start),
				"error", err,
			)

			return result, err
		}
	}
}
