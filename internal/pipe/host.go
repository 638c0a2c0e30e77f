package pipe

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/errors"
	"github.com/wagiedev/workerlink-go/internal/workerurl"
)

// WorkerFunc is the body of an in-process worker. It receives the worker-side
// endpoint and the identifier it was spawned with. Returning ends the worker
// and closes the pipe; a returned error or a panic is surfaced on the main
// side's OnError observer.
type WorkerFunc func(ctx context.Context, t *Transport, url string, name string) error

// Host runs registered WorkerFuncs on their own goroutines.
type Host struct {
	log *slog.Logger

	mu      sync.RWMutex
	workers map[string]WorkerFunc
}

// Compile-time verification that Host implements the Host interface.
var _ config.Host = (*Host)(nil)

// NewHost creates an empty in-process host.
func NewHost(log *slog.Logger) *Host {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Host{
		log:     log.With("component", "pipe_host"),
		workers: make(map[string]WorkerFunc, 4),
	}
}

// Register makes fn spawnable under path. The query component of a spawn
// identifier is ignored when looking workers up.
func (h *Host) Register(path string, fn WorkerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.workers[path] = fn
}

// Spawn starts the worker registered for url's path.
func (h *Host) Spawn(ctx context.Context, url string, name string) (config.Transport, error) {
	path := workerurl.Path(url)

	h.mu.RLock()
	fn, ok := h.workers[path]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no worker registered at %q", path)
	}

	main, worker := New()

	// The worker outlives the spawn call; it ends with the pipe.
	workerCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))

	go func() {
		<-worker.Closed()
		cancel(errors.ErrTransportClosed)
	}()

	go h.run(workerCtx, fn, worker, url, name)

	h.log.Debug("Spawned in-process worker", "url", url, "name", name)

	return main, nil
}

func (h *Host) run(ctx context.Context, fn WorkerFunc, t *Transport, url, name string) {
	defer func() {
		if v := recover(); v != nil {
			h.log.Debug("In-process worker panicked", "url", url, "panic", v)
			t.RaiseError(&errors.ProcessError{ExitCode: 2, Err: fmt.Errorf("panic: %v", v)})
		}

		_ = t.Close()
	}()

	if err := fn(ctx, t, url, name); err != nil {
		if stderrors.Is(context.Cause(ctx), errors.ErrTransportClosed) && stderrors.Is(err, context.Canceled) {
			h.log.Debug("In-process worker stopped with its pipe", "url", url)

			return
		}

		h.log.Debug("In-process worker failed", "url", url, "error", err)
		t.RaiseError(&errors.ProcessError{ExitCode: 1, Err: err})
	}
}
