package botmw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Semior001/morningdigest/pkg/botx"
	"github.com/Semior001/morningdigest/pkg/logx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestRecover(t *testing.T) {
	h := Recover(slog.New(logx.NoOp()))(func(context.Context, botx.Request) ([]botx.Response, error) {
		panic("boom")
	})

	resps, err := h(context.Background(), botx.Request{Chat: botx.Chat{ID: 1}})
	assert.Empty(t, resps)
	assert.ErrorContains(t, err, "boom")
}

func TestRequestID_AppendOnError(t *testing.T) {
	var seenID string
	h := botx.Handler(func(ctx context.Context, req botx.Request) ([]botx.Response, error) {
		seenID, _ = logx.RequestIDFromContext(ctx)
		return nil, errors.New("failed")
	})
	h = RequestID()(AppendRequestIDOnError("oops")(h))

	resps, err := h(context.Background(), botx.Request{Chat: botx.Chat{ID: 42}})
	require.Error(t, err)
	require.NotEmpty(t, seenID)
	require.Len(t, resps, 1)
	assert.Equal(t, int64(42), resps[0].ChatID)
	assert.Equal(t, "oops\n\nRequest ID: "+seenID, resps[0].Text)
}

func TestRequestID_KeepsExisting(t *testing.T) {
	var seenID string
	h := RequestID()(func(ctx context.Context, _ botx.Request) ([]botx.Response, error) {
		seenID, _ = logx.RequestIDFromContext(ctx)
		return nil, nil
	})

	ctx := logx.ContextWithRequestID(context.Background(), "job-1")
	_, err := h(ctx, botx.Request{})
	require.NoError(t, err)
	assert.Equal(t, "job-1", seenID)
}

func TestAppendRequestIDOnError_OnlyRequester(t *testing.T) {
	h := AppendRequestIDOnError("oops")(func(ctx context.Context, _ botx.Request) ([]botx.Response, error) {
		return []botx.Response{{ChatID: 7, Text: "admin note"}, {ChatID: 42, Text: "partial"}}, errors.New("failed")
	})

	ctx := logx.ContextWithRequestID(context.Background(), "rid")
	resps, err := h(ctx, botx.Request{Chat: botx.Chat{ID: 42}})
	require.Error(t, err)
	require.Len(t, resps, 2)
	assert.Equal(t, "admin note", resps[0].Text)
	assert.Equal(t, "partial\n\nRequest ID: rid", resps[1].Text)
}

func TestTimeout(t *testing.T) {
	h := Timeout(10 * time.Millisecond)(func(ctx context.Context, _ botx.Request) ([]botx.Response, error) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return []botx.Response{{Text: "late"}}, nil
	})

	resps, err := h(context.Background(), botx.Request{})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, resps)
}
