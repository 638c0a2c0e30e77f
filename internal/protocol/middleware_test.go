package protocol

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/workerlink-go/internal/errors"
)

func TestRecover_ConvertsPanic(t *testing.T) {
	h := Recover()(func(context.Context, *Request) (any, error) {
		panic(stderrors.New("index out of range"))
	})

	result, err := h(context.Background(), &Request{Action: "list"})
	require.Nil(t, result)

	panicErr, ok := stderrors.AsType[*errors.HandlerPanicError](err)
	require.True(t, ok)
	require.Equal(t, "list", panicErr.Action)
	require.NotEmpty(t, panicErr.Stack)
	require.ErrorContains(t, err, "index out of range")
}

func TestLogging_LogsAction(t *testing.T) {
	var buf bytes.Buffer

	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := Logging(log)(func(context.Context, *Request) (any, error) { return 1, nil })

	result, err := h(context.Background(), &Request{ID: "01", Action: "ping"})
	require.NoError(t, err)
	require.Equal(t, 1, result)
	require.Contains(t, buf.String(), "action=ping")
}
