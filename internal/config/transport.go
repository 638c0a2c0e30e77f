// Package config provides configuration types for workerlink.
package config

import "context"

// Transport is one endpoint of the message pipe between the main side and a
// worker. Implement this to provide custom transports for testing, mocking,
// or alternative worker hosts.
//
// The built-in implementations are the subprocess transport, which talks to a
// child process over stdin/stdout, and the in-memory pipe.
type Transport interface {
	// ReadMessages returns channels for receiving messages and errors.
	// Each message is one complete serialized frame.
	// Both channels are closed when the other side goes away or ctx ends.
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage sends one serialized frame. Delivery order is preserved.
	// Returns ErrTransportClosed once the endpoint is closed.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// OnError registers the observer for failures inside the worker that
	// bypass the frame protocol entirely. Errors raised before an observer
	// is registered are delivered on registration.
	OnError(fn func(error))

	// IsReady returns true while the transport can send.
	IsReady() bool

	// Close terminates the worker and releases resources.
	// It's safe to call Close multiple times.
	Close() error
}

// Host is the capability to create workers. A nil Host means the
// environment cannot create workers at all.
type Host interface {
	// Spawn creates the worker identified by url and returns the main-side
	// endpoint of its transport.
	Spawn(ctx context.Context, url string, name string) (Transport, error)
}
