// Package workerlink runs request/response actions between a main side and
// an isolated worker over an asynchronous message transport.
//
// The main side creates the worker through a Host capability and talks to
// it through a Controller. Both sides register handlers for actions the
// other side dispatches; every request carries a correlation id and is
// answered exactly once with a success or failure frame.
//
// # Basic Usage
//
// Run workers as goroutines with an in-process host:
//
//	host := workerlink.NewInProcessHost(nil)
//	host.Register("resize.worker", func(ctx context.Context, t *workerlink.PipeTransport, url, name string) error {
//	    w := workerlink.NewWorker(t, workerlink.WithWorkerURL(url))
//	    w.RegisterHandler("resize", resize)
//	    return w.Run(ctx)
//	})
//
//	c := workerlink.New(ctx, "resize.worker", workerlink.WithHost(host))
//	defer c.Terminate()
//
//	size, err := workerlink.Invoke[Size](ctx, c, "resize", Size{W: 640})
//
// # Worker Processes
//
// ProcessHost spawns the executable named by the path of the worker URL and
// exchanges frames over its stdin and stdout. The worker binary calls
// ServeStdio:
//
//	func main() {
//	    err := workerlink.ServeStdio(ctx, func(w *workerlink.WorkerController) {
//	        w.RegisterHandler("ping", ping)
//	    })
//	    ...
//	}
//
// # Error Handling
//
// Dispatch failures match the package's sentinel errors with errors.Is:
// ErrUnsupported when no worker could be created, ErrChannelClosed after
// termination, ErrUnknownAction, ErrHandlerFailed and ErrInvalidPayload for
// failure responses, and ErrRequestTimeout when WithRequestTimeout expires.
//
// Failures outside any request (spawn failures, uncaught worker errors,
// failing handlers) go to the Reporter set with WithReporter, using the
// monitor ids WorkerOnerror, CreateWorkerError and ActionHandleError.
package workerlink
