package botmw

import (
	"context"
	"fmt"

	"github.com/Semior001/morningdigest/pkg/botx"
	"github.com/Semior001/morningdigest/pkg/logx"
	"github.com/google/uuid"
)

// RequestID puts a fresh request id into the context unless one is
// already there.
func RequestID() botx.Middleware {
	return func(next botx.Handler) botx.Handler {
		return func(ctx context.Context, req botx.Request) ([]botx.Response, error) {
			if _, ok := logx.RequestIDFromContext(ctx); !ok {
				ctx = logx.ContextWithRequestID(ctx, uuid.NewString())
			}
			return next(ctx, req)
		}
	}
}

// AppendRequestIDOnError marks replies to the requester with the request id
// when the handler failed. If the handler produced no reply to the
// requester, msg is sent instead.
func AppendRequestIDOnError(msg string) botx.Middleware {
	return func(next botx.Handler) botx.Handler {
		return func(ctx context.Context, req botx.Request) ([]botx.Response, error) {
			resps, err := next(ctx, req)
			if err == nil {
				return resps, nil
			}

			reqID, _ := logx.RequestIDFromContext(ctx)
			footer := fmt.Sprintf("\n\nRequest ID: %s", reqID)

			replied := false
			for i := range resps {
				if resps[i].ChatID != req.Chat.ID {
					continue
				}
				resps[i].Text += footer
				replied = true
			}

			if !replied {
				resps = append(resps, botx.Response{ChatID: req.Chat.ID, Text: msg + footer})
			}

			return resps, err
		}
	}
}
