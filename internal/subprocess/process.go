package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/errors"
)

const (
	// maxScanTokenSize is the maximum size of one frame line.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize caps the stderr kept for error reporting.
	// The Stderr callback still receives every line.
	maxStderrBufferSize = 1024 * 1024 // 1MB
)

// ProcessTransport is the main-side endpoint of a worker process.
type ProcessTransport struct {
	log            *slog.Logger
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string)
	hook           config.ErrorHook

	writeMu sync.Mutex // Serializes stdin writes

	mu          sync.Mutex // Protects state flags, never held across a write
	closing     bool       // Whether Close() has been called (intentional shutdown)
	stdinClosed bool
	exited      bool
	closed      chan struct{}
}

// Compile-time verification that ProcessTransport implements the Transport interface.
var _ config.Transport = (*ProcessTransport)(nil)

func newProcessTransport(log *slog.Logger, stderrCallback func(string)) *ProcessTransport {
	return &ProcessTransport{
		log:            log.With("component", "process_transport"),
		stderrCallback: stderrCallback,
		closed:         make(chan struct{}),
	}
}

// start spawns the process with pipes for stdin, stdout and stderr.
func (t *ProcessTransport) start(ctx context.Context, path string, args, env []string, cwd string) error {
	var err error

	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	//nolint:gosec // G204: launching the configured worker executable is the point
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = cwd
	cmd.Env = env

	if t.stdin, err = cmd.StdinPipe(); err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	if t.stdout, err = cmd.StdoutPipe(); err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if t.stderr, err = cmd.StderrPipe(); err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start worker process", "path", path, "error", err)

		return fmt.Errorf("start process: %w", err)
	}

	t.cmd = cmd
	t.log.Info("Worker process started", "path", path, "pid", cmd.Process.Pid)

	return nil
}

// ReadMessages reads newline-delimited frames from the worker's stdout.
//
// When the process exits abnormally (and not because of Close), a
// ProcessError carrying the buffered stderr is sent on the error channel and
// raised on the OnError observer. Both channels are closed afterwards.
func (t *ProcessTransport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	var (
		stderrWg     sync.WaitGroup
		stderrMu     sync.Mutex
		stderrBuffer strings.Builder
	)

	// Stderr must be fully read before Wait().
	stderrWg.Go(func() {
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		if err := scanFrames(ctx, t.stdout, messages); err != nil {
			t.log.Error("Scanner error while reading worker output", "error", err)
		}

		stderrWg.Wait()

		err := t.cmd.Wait()

		t.mu.Lock()
		t.exited = true
		isClosing := t.closing
		t.mu.Unlock()

		if err == nil {
			t.log.Info("Worker process exited")

			return
		}

		if isClosing {
			t.log.Debug("Worker process terminated during shutdown")

			return
		}

		stderrMu.Lock()
		stderrOutput := stderrBuffer.String()
		stderrMu.Unlock()

		exitCode := 0
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}

		t.log.Error("Worker process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

		procErr := &errors.ProcessError{ExitCode: exitCode, Stderr: stderrOutput, Err: err}

		t.hook.Fire(procErr)
		errs <- procErr
	}()

	return messages, errs
}

// SendMessage writes one frame line to the worker's stdin.
//
// If ctx is cancelled during a blocked write, stdin is closed to unblock it
// and subsequent calls return ErrTransportClosed. Close also ends a blocked
// write, with ErrTransportClosed.
func (t *ProcessTransport) SendMessage(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	stdin, stdinClosed, exited := t.stdin, t.stdinClosed, t.exited
	t.mu.Unlock()

	if stdin == nil {
		return errors.ErrTransportNotConnected
	}

	if stdinClosed || exited {
		return errors.ErrTransportClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data = withNewline(data)

	done := make(chan error, 1)

	go func() {
		_, err := stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}

		select {
		case <-t.closed:
			return errors.ErrTransportClosed
		default:
		}

		return fmt.Errorf("write to stdin: %w", err)

	case <-t.closed:
		t.awaitWrite(done)

		return errors.ErrTransportClosed

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		t.mu.Lock()
		_ = stdin.Close()
		t.stdinClosed = true
		t.mu.Unlock()

		t.awaitWrite(done)

		return ctx.Err()
	}
}

// awaitWrite waits briefly for a write goroutine unblocked by closing stdin.
func (t *ProcessTransport) awaitWrite(done <-chan error) {
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
	}
}

// OnError registers the observer for abnormal worker exits.
func (t *ProcessTransport) OnError(fn func(error)) {
	t.hook.Set(fn)
}

// IsReady returns true while the process runs and stdin is open.
func (t *ProcessTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.stdin != nil && !t.stdinClosed && !t.exited && !t.closing
}

// Close kills the worker process and ends any blocked write. It never waits
// on a write in progress. It's safe to call Close multiple times.
func (t *ProcessTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return nil
	}

	t.closing = true
	t.stdinClosed = true
	close(t.closed)

	if t.stdin != nil {
		_ = t.stdin.Close()
	}

	if t.cmd != nil && t.cmd.Process != nil && !t.exited {
		t.log.Debug("Killing worker process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill worker process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}
