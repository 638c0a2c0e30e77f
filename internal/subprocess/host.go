package subprocess

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/workerurl"
)

// Environment variables handed to every spawned worker.
const (
	EnvWorkerURL  = "WORKERLINK_WORKER_URL"
	EnvWorkerName = "WORKERLINK_WORKER_NAME"
)

// Config holds configuration for spawning worker processes.
type Config struct {
	// Env adds or overrides environment variables for the worker.
	Env map[string]string

	// Cwd sets the worker's working directory. Defaults to the current one.
	Cwd string

	// Args are extra command-line arguments for the worker.
	Args []string

	// Stderr receives each line the worker writes to stderr.
	Stderr func(string)

	// Logger is an optional logger for host operations.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Host spawns workers as child processes. The path component of the spawn
// identifier names the executable; the full identifier and the worker name
// are passed through the environment.
type Host struct {
	log *slog.Logger
	cfg *Config
}

// Compile-time verification that Host implements the Host interface.
var _ config.Host = (*Host)(nil)

// NewHost creates a process host.
func NewHost(cfg *Config) *Host {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Host{
		log: log.With("component", "process_host"),
		cfg: cfg,
	}
}

// Spawn starts the worker process for url.
//
// The process is bound to ctx: cancelling ctx kills it.
func (h *Host) Spawn(ctx context.Context, url string, name string) (config.Transport, error) {
	path, err := h.resolve(workerurl.Path(url))
	if err != nil {
		return nil, err
	}

	t := newProcessTransport(h.log, h.cfg.Stderr)
	if err := t.start(ctx, path, h.cfg.Args, h.buildEnvironment(url, name), h.cfg.Cwd); err != nil {
		return nil, err
	}

	return t, nil
}

// resolve locates the worker executable. Paths containing a separator are
// used as-is; bare names are searched in PATH.
func (h *Host) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty worker path")
	}

	if strings.ContainsRune(path, filepath.Separator) || strings.ContainsRune(path, '/') {
		if _, err := os.Stat(path); err != nil {
			h.log.Debug("Worker executable not found", "path", path)

			return "", fmt.Errorf("stat worker executable: %w", err)
		}

		return path, nil
	}

	found, err := exec.LookPath(path)
	if err != nil {
		h.log.Debug("Worker executable not found in PATH", "name", path)

		return "", fmt.Errorf("find worker executable: %w", err)
	}

	h.log.Debug("Found worker executable in PATH", "path", found)

	return found, nil
}

// buildEnvironment builds the worker's environment.
func (h *Host) buildEnvironment(url, name string) []string {
	env := os.Environ()

	env = append(env, EnvWorkerURL+"="+url)
	env = append(env, EnvWorkerName+"="+name)

	for key, value := range h.cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
