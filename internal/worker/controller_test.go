package worker

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/workerlink-go/internal/config"
	"github.com/wagiedev/workerlink-go/internal/errors"
	"github.com/wagiedev/workerlink-go/internal/pipe"
	"github.com/wagiedev/workerlink-go/internal/protocol"
	"github.com/wagiedev/workerlink-go/internal/report"
	"github.com/wagiedev/workerlink-go/internal/subprocess"
)

// startWorker runs c in the background and returns a function that waits
// for Run to return.
func startWorker(t *testing.T, ctx context.Context, c *Controller) func() error {
	t.Helper()

	done := make(chan error, 1)

	go func() {
		done <- c.Run(ctx)
	}()

	return func() error {
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return")

			return nil
		}
	}
}

func newMainChannel(t *testing.T, tr *pipe.Transport) *protocol.Channel {
	t.Helper()

	ch := protocol.NewChannel(nil, tr, nil, nil)
	ch.Start(context.Background())

	t.Cleanup(ch.Close)

	return ch
}

func TestController_ServesUntilMainSideCloses(t *testing.T) {
	mainTr, workerTr := pipe.New()

	c := New(workerTr, nil)
	c.RegisterHandler("echo", func(_ context.Context, req *protocol.Request) (any, error) {
		return req.Payload, nil
	})

	wait := startWorker(t, context.Background(), c)
	mainCh := newMainChannel(t, mainTr)

	result, err := mainCh.Dispatch(context.Background(), "echo", map[string]string{"hello": "worker"})
	require.NoError(t, err)
	require.JSONEq(t, `{"hello":"worker"}`, string(result))

	require.NoError(t, mainTr.Close())
	require.NoError(t, wait())
}

func TestController_RunReturnsContextError(t *testing.T) {
	_, workerTr := pipe.New()

	ctx, cancel := context.WithCancel(context.Background())

	c := New(workerTr, nil)
	wait := startWorker(t, ctx, c)

	cancel()

	require.ErrorIs(t, wait(), context.Canceled)
	require.False(t, workerTr.IsReady())
}

func TestController_RunReturnsNilWhenTransportEndsContext(t *testing.T) {
	mainTr, workerTr := pipe.New()

	ctx, cancel := context.WithCancelCause(context.Background())

	c := New(workerTr, nil)
	wait := startWorker(t, ctx, c)

	require.Eventually(t, func() bool { return c.started.Load() }, time.Second, 5*time.Millisecond)

	require.NoError(t, mainTr.Close())
	cancel(errors.ErrTransportClosed)

	require.NoError(t, wait())
}

func TestController_CloseBeforeRun(t *testing.T) {
	_, workerTr := pipe.New()

	c := New(workerTr, nil)
	c.Close()

	wait := startWorker(t, context.Background(), c)

	require.NoError(t, wait())
	require.False(t, workerTr.IsReady())
}

func TestController_ConcurrentCloseAndRun(t *testing.T) {
	for range 20 {
		_, workerTr := pipe.New()

		c := New(workerTr, nil)
		wait := startWorker(t, context.Background(), c)

		c.Close()

		require.NoError(t, wait())
	}
}

func TestController_RunTwice(t *testing.T) {
	mainTr, workerTr := pipe.New()
	defer mainTr.Close()

	c := New(workerTr, nil)
	wait := startWorker(t, context.Background(), c)

	require.Eventually(t, func() bool { return c.started.Load() }, time.Second, 5*time.Millisecond)
	require.ErrorContains(t, c.Run(context.Background()), "already running")

	c.Close()
	require.NoError(t, wait())
}

func TestController_DebugModeFromWorkerURL(t *testing.T) {
	tests := []struct {
		name    string
		options *config.Options
		want    bool
	}{
		{name: "marker", options: &config.Options{WorkerURL: "w.js?debugWorker=true"}, want: true},
		{name: "marker after query", options: &config.Options{WorkerURL: "w.js?v=1&debugWorker=true"}, want: true},
		{name: "no marker", options: &config.Options{WorkerURL: "w.js?v=1"}, want: false},
		{name: "explicit", options: &config.Options{WorkerURL: "w.js", DebugMode: true}, want: true},
		{name: "nil options", options: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, workerTr := pipe.New()

			require.Equal(t, tt.want, New(workerTr, tt.options).IsDebugMode())
		})
	}
}

func TestController_HandlerErrorsAreSwallowedByDefault(t *testing.T) {
	tests := []struct {
		name        string
		policy      config.HandlerErrorPolicy
		wantObserve bool
	}{
		{name: "default swallows", policy: config.PolicyDefault, wantObserve: false},
		{name: "rethrow", policy: config.PolicyRethrow, wantObserve: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mainTr, workerTr := pipe.New()
			rec := &report.Recorder{}

			var (
				mu       sync.Mutex
				observed []error
			)

			c := New(workerTr, &config.Options{
				Reporter:           rec,
				HandlerErrorPolicy: tt.policy,
				ErrorObserver: func(err error) {
					mu.Lock()
					defer mu.Unlock()

					observed = append(observed, err)
				},
			})
			c.RegisterHandler("fail", func(context.Context, *protocol.Request) (any, error) {
				return nil, stderrors.New("bad input")
			})

			wait := startWorker(t, context.Background(), c)
			mainCh := newMainChannel(t, mainTr)

			_, err := mainCh.Dispatch(context.Background(), "fail", nil)
			require.ErrorIs(t, err, errors.ErrHandlerFailed)

			require.Eventually(t, func() bool {
				return rec.Count(report.ActionHandleError) == 1
			}, time.Second, 5*time.Millisecond)

			require.Len(t, rec.Errors(), 1)
			require.ErrorContains(t, rec.Errors()[0], "bad input")

			require.NoError(t, mainTr.Close())
			require.NoError(t, wait())

			mu.Lock()
			defer mu.Unlock()

			if tt.wantObserve {
				require.Len(t, observed, 1)
			} else {
				require.Empty(t, observed)
			}
		})
	}
}

func TestController_FallbackActionHandler(t *testing.T) {
	mainTr, workerTr := pipe.New()
	defer mainTr.Close()

	c := New(workerTr, &config.Options{
		ActionHandler: func(_ context.Context, req *protocol.Request) (any, error) {
			return "handled " + req.Action, nil
		},
	})

	startWorker(t, context.Background(), c)

	mainCh := newMainChannel(t, mainTr)

	result, err := mainCh.Dispatch(context.Background(), "anything", nil)
	require.NoError(t, err)
	require.JSONEq(t, `"handled anything"`, string(result))
}

func TestController_UnknownAction(t *testing.T) {
	mainTr, workerTr := pipe.New()
	defer mainTr.Close()

	rec := &report.Recorder{}

	c := New(workerTr, &config.Options{Reporter: rec})
	startWorker(t, context.Background(), c)

	mainCh := newMainChannel(t, mainTr)

	_, err := mainCh.Dispatch(context.Background(), "nope", nil)
	require.ErrorIs(t, err, errors.ErrUnknownAction)
	require.Empty(t, rec.Monitors())
}

func TestController_DispatchToMainSide(t *testing.T) {
	mainTr, workerTr := pipe.New()
	defer mainTr.Close()

	mainCh := newMainChannel(t, mainTr)
	mainCh.RegisterHandler("progress", func(_ context.Context, req *protocol.Request) (any, error) {
		var pct int
		if err := req.Decode(&pct); err != nil {
			return nil, err
		}

		return pct >= 100, nil
	})

	c := New(workerTr, nil)
	startWorker(t, context.Background(), c)

	result, err := c.Dispatch(context.Background(), "progress", 100)
	require.NoError(t, err)
	require.JSONEq(t, `true`, string(result))

	call, err := c.Go(context.Background(), "progress", 5)
	require.NoError(t, err)

	result, err = call.Wait(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `false`, string(result))
}

func TestController_ValidatedHandler(t *testing.T) {
	mainTr, workerTr := pipe.New()
	defer mainTr.Close()

	c := New(workerTr, nil)
	require.NoError(t, c.RegisterValidatedHandler("resize",
		protocol.SimpleSchema(map[string]string{"width": "int"}),
		func(context.Context, *protocol.Request) (any, error) { return "ok", nil },
	))

	startWorker(t, context.Background(), c)

	mainCh := newMainChannel(t, mainTr)

	_, err := mainCh.Dispatch(context.Background(), "resize", map[string]int{"width": 10})
	require.NoError(t, err)

	_, err = mainCh.Dispatch(context.Background(), "resize", map[string]string{"width": "wide"})
	require.ErrorIs(t, err, errors.ErrInvalidPayload)
}

func TestServe_OverStdio(t *testing.T) {
	t.Setenv(subprocess.EnvWorkerURL, "bin/worker?debugWorker=true")
	t.Setenv(subprocess.EnvWorkerName, "stdio-worker")

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	var debug bool

	done := make(chan error, 1)

	go func() {
		done <- serve(context.Background(), nil, inR, outW, func(c *Controller) {
			debug = c.IsDebugMode()

			c.RegisterHandler("add", func(_ context.Context, req *protocol.Request) (any, error) {
				var in []int
				if err := req.Decode(&in); err != nil {
					return nil, err
				}

				sum := 0
				for _, n := range in {
					sum += n
				}

				return sum, nil
			})
		})
	}()

	_, err := inW.Write([]byte(`{"kind":"request","id":"r1","action":"add","payload":[1,2,3]}` + "\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(outR)
	require.True(t, scanner.Scan())

	var frame protocol.Frame

	require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame))
	require.Equal(t, protocol.KindSuccess, frame.Kind)
	require.Equal(t, "r1", frame.ID)
	require.JSONEq(t, `6`, string(frame.Result))

	require.NoError(t, inW.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after stdin closed")
	}

	require.True(t, debug)
}
