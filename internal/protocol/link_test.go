package protocol

import (
	"context"
	"sync"

	"github.com/wagiedev/workerlink-go/internal/errors"
)

// linkedTransport is one end of a buffered in-memory link. Closing either
// end closes both.
type linkedTransport struct {
	inbox  chan []byte
	peer   *linkedTransport
	closed chan struct{}
	once   *sync.Once
}

func newLinkedPair() (*linkedTransport, *linkedTransport) {
	closed := make(chan struct{})
	once := &sync.Once{}

	a := &linkedTransport{inbox: make(chan []byte, 256), closed: closed, once: once}
	b := &linkedTransport{inbox: make(chan []byte, 256), closed: closed, once: once}
	a.peer, b.peer = b, a

	return a, b
}

func (l *linkedTransport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		for {
			select {
			case msg := <-l.inbox:
				select {
				case messages <- msg:
				case <-ctx.Done():
					return
				case <-l.closed:
					return
				}
			case <-ctx.Done():
				return
			case <-l.closed:
				return
			}
		}
	}()

	return messages, errs
}

func (l *linkedTransport) SendMessage(ctx context.Context, data []byte) error {
	if !l.IsReady() {
		return errors.ErrTransportClosed
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case l.peer.inbox <- msg:
		return nil
	case <-l.closed:
		return errors.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *linkedTransport) IsReady() bool {
	select {
	case <-l.closed:
		return false
	default:
		return true
	}
}

func (l *linkedTransport) Close() error {
	l.once.Do(func() { close(l.closed) })

	return nil
}
