package workerlink

import (
	"log/slog"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/pipe"
	"github.com/wagiedev/workerlink-go/internal/subprocess"
)

// Transport is one endpoint of the message pipe between the main side and a
// worker. Implement this to provide custom transports for testing, mocking,
// or alternative worker hosts.
type Transport = config.Transport

// Host is the capability to create workers. Pass it with WithHost; without
// one, controllers stay unsupported.
type Host = config.Host

// ProcessConfig configures how ProcessHost spawns worker processes.
type ProcessConfig = subprocess.Config

// InProcessHost runs registered worker functions as goroutines connected
// through in-memory pipes.
type InProcessHost = pipe.Host

// PipeTransport is an in-memory transport endpoint.
type PipeTransport = pipe.Transport

// WorkerFunc is the body of an in-process worker.
type WorkerFunc = pipe.WorkerFunc

// Environment variables the process host sets for every worker.
const (
	EnvWorkerURL  = subprocess.EnvWorkerURL
	EnvWorkerName = subprocess.EnvWorkerName
)

// ProcessHost returns a host that spawns each worker as a child process.
// cfg may be nil.
func ProcessHost(cfg *ProcessConfig) Host {
	return subprocess.NewHost(cfg)
}

// NewInProcessHost returns an empty in-process host. log may be nil.
func NewInProcessHost(log *slog.Logger) *InProcessHost {
	return pipe.NewHost(log)
}

// NewPipe returns the two connected endpoints of an in-memory pipe.
func NewPipe() (*PipeTransport, *PipeTransport) {
	return pipe.New()
}
