package workerlink

import (
	"context"

	"github.com/wagiedev/workerlink-go/internal/host"
	"github.com/wagiedev/workerlink-go/internal/worker"
)

// Controller owns one worker on the main side.
//
// Lifecycle: a Controller is constructed once per worker session and
// Terminate is irreversible. Create a new Controller to start over.
type Controller = host.Controller

// State is the lifecycle state of a Controller.
type State = host.State

// Controller states.
const (
	StateUnsupported = host.StateUnsupported
	StateSpawnFailed = host.StateSpawnFailed
	StateReady       = host.StateReady
	StateTerminated  = host.StateTerminated
)

// ActionCall is one entry of a DispatchAll batch.
type ActionCall = host.ActionCall

// WorkerController serves actions inside a worker.
type WorkerController = worker.Controller

// New creates the worker identified by url and returns its controller.
//
// New never fails: check State or CanCreateRemote to learn whether a worker
// exists. Spawn failures are reported to the Reporter set with WithReporter.
//
// Example usage:
//
//	c := workerlink.New(ctx, "bin/thumbnailer",
//	    workerlink.WithHost(workerlink.ProcessHost(nil)),
//	    workerlink.WithWorkerName("thumbnailer"),
//	    workerlink.WithRequestTimeout(5*time.Second),
//	)
//	defer c.Terminate()
//
//	result, err := c.Dispatch(ctx, "thumbnail", req)
func New(ctx context.Context, url string, opts ...Option) *Controller {
	options := applyOptions(opts)
	options.WorkerURL = url

	return host.New(ctx, options)
}

// NewWorker creates a worker-side controller over t. Register handlers, then
// call Run.
func NewWorker(t Transport, opts ...Option) *WorkerController {
	return worker.New(t, applyOptions(opts))
}

// ServeStdio serves a worker process over stdin and stdout until the main
// side goes away or ctx is cancelled. setup registers handlers before
// serving starts.
func ServeStdio(ctx context.Context, setup func(*WorkerController), opts ...Option) error {
	return worker.ServeStdio(ctx, applyOptions(opts), setup)
}
