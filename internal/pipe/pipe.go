// Package pipe provides an in-memory transport pair and a host that runs
// workers as goroutines.
//
// Each direction is an unbounded FIFO, so SendMessage never blocks on a slow
// reader. Closing either endpoint closes the pipe for both; frames still
// queued at that point are dropped.
package pipe

import (
	"context"
	"sync"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/errors"
)

type pipe struct {
	closeOnce sync.Once
	closed    chan struct{}
}

func (p *pipe) close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}

// Transport is one endpoint of an in-memory pipe.
type Transport struct {
	p    *pipe
	peer *Transport

	mu     sync.Mutex
	queue  [][]byte
	notify chan struct{}

	hook config.ErrorHook
}

// Compile-time verification that Transport implements the Transport interface.
var _ config.Transport = (*Transport)(nil)

// New returns the two connected endpoints of a new pipe.
func New() (*Transport, *Transport) {
	p := &pipe{closed: make(chan struct{})}

	a := &Transport{p: p, notify: make(chan struct{}, 1)}
	b := &Transport{p: p, notify: make(chan struct{}, 1)}
	a.peer, b.peer = b, a

	return a, b
}

// ReadMessages delivers frames sent by the peer, in order.
func (t *Transport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		for {
			batch := t.drain()

			for _, msg := range batch {
				select {
				case messages <- msg:
				case <-ctx.Done():
					return
				case <-t.p.closed:
					return
				}
			}

			if len(batch) > 0 {
				continue
			}

			select {
			case <-t.notify:
			case <-ctx.Done():
				return
			case <-t.p.closed:
				return
			}
		}
	}()

	return messages, errs
}

// SendMessage queues data for the peer.
func (t *Transport) SendMessage(ctx context.Context, data []byte) error {
	select {
	case <-t.p.closed:
		return errors.ErrTransportClosed
	default:
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	t.peer.enqueue(msg)

	return nil
}

// OnError registers the observer for errors raised by the peer.
func (t *Transport) OnError(fn func(error)) {
	t.hook.Set(fn)
}

// RaiseError surfaces err on the peer's OnError observer, outside the frame
// protocol.
func (t *Transport) RaiseError(err error) {
	t.peer.hook.Fire(err)
}

// IsReady returns true until the pipe is closed.
func (t *Transport) IsReady() bool {
	select {
	case <-t.p.closed:
		return false
	default:
		return true
	}
}

// Close closes the pipe for both endpoints.
func (t *Transport) Close() error {
	t.p.close()

	return nil
}

// Closed returns a channel that is closed with the pipe.
func (t *Transport) Closed() <-chan struct{} {
	return t.p.closed
}

func (t *Transport) enqueue(msg []byte) {
	t.mu.Lock()
	t.queue = append(t.queue, msg)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
}

func (t *Transport) drain() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch := t.queue
	t.queue = nil

	return batch
}
