package worker

import (
	"context"
	"io"
	"os"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/subprocess"
)

// ServeStdio runs a worker process: frames arrive on stdin and leave on
// stdout. The spawn identifier and worker name are taken from the
// environment set by the process host unless options already carry them.
// setup registers handlers before serving starts.
func ServeStdio(ctx context.Context, options *config.Options, setup func(*Controller)) error {
	return serve(ctx, options, os.Stdin, os.Stdout, setup)
}

func serve(ctx context.Context, options *config.Options, r io.Reader, w io.Writer, setup func(*Controller)) error {
	var opts config.Options
	if options != nil {
		opts = *options
	}

	if opts.WorkerURL == "" {
		opts.WorkerURL = os.Getenv(subprocess.EnvWorkerURL)
	}

	if opts.WorkerName == "" {
		opts.WorkerName = os.Getenv(subprocess.EnvWorkerName)
	}

	c := New(subprocess.NewStdioTransport(opts.Logger, r, w), &opts)

	if setup != nil {
		setup(c)
	}

	return c.Run(ctx)
}
