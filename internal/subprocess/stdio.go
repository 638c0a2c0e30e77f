package subprocess

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/errors"
)

// StdioTransport is the worker-side endpoint: frames are read from r and
// written to w, one per line.
type StdioTransport struct {
	log  *slog.Logger
	r    io.Reader
	w    io.Writer
	hook config.ErrorHook

	mu     sync.Mutex
	closed bool
}

// Compile-time verification that StdioTransport implements the Transport interface.
var _ config.Transport = (*StdioTransport)(nil)

// NewStdioTransport creates a worker-side transport over r and w, typically
// os.Stdin and os.Stdout.
func NewStdioTransport(log *slog.Logger, r io.Reader, w io.Writer) *StdioTransport {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &StdioTransport{
		log: log.With("component", "stdio_transport"),
		r:   r,
		w:   w,
	}
}

// ReadMessages reads frames until r is exhausted or ctx ends. The end of
// input means the main side went away, so the transport closes itself.
func (t *StdioTransport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		if err := scanFrames(ctx, t.r, messages); err != nil {
			errs <- fmt.Errorf("scanner error: %w", err)
		}

		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
	}()

	return messages, errs
}

// SendMessage writes one frame line. Safe for concurrent use.
func (t *StdioTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.ErrTransportClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := t.w.Write(withNewline(data)); err != nil {
		return fmt.Errorf("write to stdout: %w", err)
	}

	return nil
}

// OnError registers an error observer. Nothing above a worker raises
// out-of-band errors toward it, so the observer is only kept for symmetry.
func (t *StdioTransport) OnError(fn func(error)) {
	t.hook.Set(fn)
}

// IsReady returns true until the transport is closed.
func (t *StdioTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return !t.closed
}

// Close stops sending and closes w if it is a Closer.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// scanFrames sends every non-empty line of r on messages.
func scanFrames(ctx context.Context, r io.Reader, messages chan<- []byte) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg := make([]byte, len(line))
		copy(msg, line)

		select {
		case messages <- msg:
		case <-ctx.Done():
			return nil
		}
	}

	return scanner.Err()
}

// withNewline returns data terminated by '\n', copying rather than mutating
// the caller's backing array.
func withNewline(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return data
	}

	newData := make([]byte, len(data)+1)
	copy(newData, data)
	newData[len(data)] = '\n'

	return newData
}
