package workerlink_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mcpgo "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/workerlink-go"
)

type size struct {
	W int `json:"w"`
	H int `json:"h"`
}

func newHost(t *testing.T) *workerlink.InProcessHost {
	t.Helper()

	host := workerlink.NewInProcessHost(nil)

	host.Register("shapes", func(ctx context.Context, tr *workerlink.PipeTransport, url, _ string) error {
		w := workerlink.NewWorker(tr, workerlink.WithWorkerURL(url))

		w.RegisterHandler("double", workerlink.HandlerFunc(func(_ context.Context, s size) (size, error) {
			return size{W: s.W * 2, H: s.H * 2}, nil
		}))

		w.RegisterHandler("nothing", func(context.Context, *workerlink.Request) (any, error) {
			return nil, nil
		})

		return w.Run(ctx)
	})

	return host
}

func TestInvoke_DecodesResult(t *testing.T) {
	ctx := context.Background()

	c := workerlink.New(ctx, "shapes", workerlink.WithHost(newHost(t)))
	defer c.Terminate()

	got, err := workerlink.Invoke[size](ctx, c, "double", size{W: 2, H: 3})
	require.NoError(t, err)
	require.Equal(t, size{W: 4, H: 6}, got)

	empty, err := workerlink.Invoke[*size](ctx, c, "nothing", nil)
	require.NoError(t, err)
	require.Nil(t, empty)

	_, err = workerlink.Invoke[int](ctx, c, "double", size{W: 1, H: 1})
	require.ErrorContains(t, err, `decode "double" result`)
}

func TestHandlerFunc_DecodeFailureIsHandlerError(t *testing.T) {
	ctx := context.Background()

	c := workerlink.New(ctx, "shapes", workerlink.WithHost(newHost(t)))
	defer c.Terminate()

	_, err := c.Dispatch(ctx, "double", "not an object")
	require.ErrorIs(t, err, workerlink.ErrHandlerFailed)

	remoteErr, ok := errors.AsType[*workerlink.RemoteError](err)
	require.True(t, ok)
	require.Equal(t, workerlink.KindHandlerError, remoteErr.Kind)
	require.Contains(t, remoteErr.Message, `decode "double" payload`)
}

func TestNew_WithoutHostIsUnsupported(t *testing.T) {
	c := workerlink.New(context.Background(), "shapes")
	defer c.Terminate()

	require.Equal(t, workerlink.StateUnsupported, c.State())

	_, err := workerlink.Invoke[size](context.Background(), c, "double", nil)
	require.ErrorIs(t, err, workerlink.ErrUnsupported)
}

func TestWithWorker(t *testing.T) {
	ctx := context.Background()
	host := newHost(t)

	var controller *workerlink.Controller

	err := workerlink.WithWorker(ctx, "shapes", func(c *workerlink.Controller) error {
		controller = c

		_, err := c.Dispatch(ctx, "nothing", nil)

		return err
	}, workerlink.WithHost(host))
	require.NoError(t, err)
	require.Equal(t, workerlink.StateTerminated, controller.State())

	callbackErr := errors.New("callback failed")

	err = workerlink.WithWorker(ctx, "shapes", func(*workerlink.Controller) error {
		return callbackErr
	}, workerlink.WithHost(host))
	require.ErrorIs(t, err, callbackErr)

	err = workerlink.WithWorker(ctx, "missing", func(*workerlink.Controller) error {
		t.Error("callback should not run without a worker")

		return nil
	}, workerlink.WithHost(host))
	require.ErrorIs(t, err, workerlink.ErrUnsupported)
	require.ErrorContains(t, err, "spawn_failed")
}

func TestWithWorker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := workerlink.WithWorker(ctx, "shapes", func(*workerlink.Controller) error {
		t.Error("callback should not be called with cancelled context")

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestOptions_ReachController(t *testing.T) {
	rec := &workerlink.ReportRecorder{}
	host := workerlink.NewInProcessHost(nil)

	host.Register("caller", func(ctx context.Context, tr *workerlink.PipeTransport, url, _ string) error {
		w := workerlink.NewWorker(tr, workerlink.WithWorkerURL(url))
		w.RegisterHandler("call-back", func(ctx context.Context, _ *workerlink.Request) (any, error) {
			return w.Dispatch(ctx, "explode", nil)
		})

		return w.Run(ctx)
	})

	var (
		mu       sync.Mutex
		observed []error
		order    []string
	)

	c := workerlink.New(context.Background(), "caller",
		workerlink.WithHost(host),
		workerlink.WithWorkerName("caller"),
		workerlink.WithDebugMode(true),
		workerlink.WithReporter(workerlink.NewThrottledReporter(rec, 100, 10)),
		workerlink.WithLogger(workerlink.NopLogger()),
		workerlink.WithRequestTimeout(time.Second),
		workerlink.WithHandlerErrorPolicy(workerlink.PolicyRethrow),
		workerlink.WithErrorObserver(func(err error) {
			mu.Lock()
			defer mu.Unlock()

			observed = append(observed, err)
		}),
		workerlink.WithActionHandler(func(context.Context, *workerlink.Request) (any, error) {
			return nil, errors.New("kaboom")
		}),
		workerlink.WithMiddleware(
			func(next workerlink.Handler) workerlink.Handler {
				return func(ctx context.Context, req *workerlink.Request) (any, error) {
					mu.Lock()
					order = append(order, req.Action)
					mu.Unlock()

					return next(ctx, req)
				}
			},
			workerlink.LoggingMiddleware(nil),
		),
	)
	defer c.Terminate()

	require.Equal(t, "caller?debugWorker=true", c.WorkerURL())
	require.True(t, c.IsDebugMode())

	_, err := c.Dispatch(context.Background(), "call-back", nil)
	require.ErrorIs(t, err, workerlink.ErrHandlerFailed)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(observed) == 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, rec.Count(workerlink.ActionHandleError))

	mu.Lock()
	defer mu.Unlock()

	require.ErrorContains(t, observed[0], "kaboom")
	require.Equal(t, []string{"explode"}, order)
}

func TestMCPBridge_DispatchesThroughController(t *testing.T) {
	ctx := context.Background()

	c := workerlink.New(ctx, "shapes", workerlink.WithHost(newHost(t)))
	defer c.Terminate()

	bridge := workerlink.NewMCPBridge(nil, "shapes", "1.0.0", c)
	require.NoError(t, bridge.Expose(workerlink.MCPAction{
		Name:        "double",
		Description: "double a size",
		Schema:      workerlink.SimpleSchema(map[string]string{"w": "int", "h": "int"}),
	}))

	serverTransport, clientTransport := mcpgo.NewInMemoryTransports()

	ss, err := bridge.Server().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	cs, err := mcpgo.NewClient(&mcpgo.Implementation{Name: "test", Version: "1.0.0"}, nil).
		Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	defer func() {
		_ = cs.Close()
		_ = ss.Wait()
	}()

	result, err := cs.CallTool(ctx, &mcpgo.CallToolParams{
		Name:      "double",
		Arguments: map[string]any{"w": 5, "h": 7},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	text, ok := result.Content[0].(*mcpgo.TextContent)
	require.True(t, ok)
	require.JSONEq(t, `{"w":10,"h":14}`, text.Text)
}

func TestErrors_MarkerInterface(t *testing.T) {
	var linkErr workerlink.WorkerLinkError

	err := error(&workerlink.SpawnError{URL: "x", Err: errors.New("boom")})
	require.True(t, errors.As(err, &linkErr))
	require.ErrorContains(t, err, "boom")

	remote := &workerlink.RemoteError{Action: "a", Kind: workerlink.KindInvalidPayload, Message: "bad"}
	require.ErrorIs(t, remote, workerlink.ErrInvalidPayload)
	require.NotErrorIs(t, remote, workerlink.ErrUnknownAction)
}
