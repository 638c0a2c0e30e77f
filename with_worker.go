package workerlink

import (
	"context"
	"fmt"
)

// WithWorker manages worker lifecycle with automatic cleanup.
//
// This helper creates the worker, executes the callback function, and
// terminates the worker when done. Unlike New, it fails when no worker could
// be created, returning an error wrapping ErrUnsupported.
//
// Example usage:
//
//	err := workerlink.WithWorker(ctx, "bin/indexer", func(c *workerlink.Controller) error {
//	    _, err := c.Dispatch(ctx, "reindex", nil)
//	    return err
//	},
//	    workerlink.WithHost(workerlink.ProcessHost(nil)),
//	)
func WithWorker(ctx context.Context, url string, fn func(*Controller) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c := New(ctx, url, opts...)
	defer c.Terminate()

	if !c.CanCreateRemote() {
		return fmt.Errorf("create worker %q (%s): %w", url, c.State(), ErrUnsupported)
	}

	return fn(c)
}
