package protocol

import (
	"context"
	"encoding/json"
)

// Call is a pending dispatch. It is resolved exactly once: by its response,
// or by channel teardown.
type Call struct {
	ID     string
	Action string

	done   chan struct{}
	result json.RawMessage
	err    error
}

func newCall(id, action string) *Call {
	return &Call{ID: id, Action: action, done: make(chan struct{})}
}

// Done returns a channel that is closed once the call is resolved.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome. It must only be called after Done is closed.
func (c *Call) Result() (json.RawMessage, error) {
	return c.result, c.err
}

// Wait blocks until the call resolves or ctx ends. Abandoning a call via ctx
// does not remove its pending entry; use Channel.Dispatch for that.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Call) complete(result json.RawMessage, err error) {
	c.result = result
	c.err = err
	close(c.done)
}
