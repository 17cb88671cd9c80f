// Package botmw provides middlewares for bot handler.
package botmw

import (
	"context"
	"fmt"
	"time"

	"github.com/Semior001/morningdigest/pkg/botx"
	"github.com/samber/lo"
	"golang.org/x/exp/slog"
)

// Logger is a middleware that logs all requests.
// Message text is logged only in debug mode, the command otherwise.
func Logger(lg *slog.Logger) botx.Middleware {
	return func(next botx.Handler) botx.Handler {
		return func(ctx context.Context, req botx.Request) ([]botx.Response, error) {
			start := time.Now()
			debug := lg.Handler().Enabled(ctx, slog.LevelDebug)

			args := []any{
				slog.Int64("chat_id", req.Chat.ID),
				slog.String("chat_username", req.Chat.Username),
				slog.String("command", botx.Command(req.Text)),
			}

			if debug {
				lg.DebugCtx(ctx, "request received", append(args, slog.String("text", req.Text))...)
			}

			res, err := next(ctx, req)

			args = append(args,
				slog.Any("reply_to", lo.Map(res, func(r botx.Response, _ int) int64 { return r.ChatID })),
				slog.Duration("elapsed", time.Since(start)),
				slog.Any("err", err),
			)

			if debug {
				args = append(args, slog.Any("responses", res))
			}

			lg.InfoCtx(ctx, "request processed", args...)

			return res, err
		}
	}
}

// Recover is a middleware that recovers from panics.
func Recover(lg *slog.Logger) botx.Middleware {
	return func(next botx.Handler) botx.Handler {
		return func(ctx context.Context, req botx.Request) (resps []botx.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					lg.ErrorCtx(ctx, "panic recovered", slog.Any("panic", r))
					resps, err = nil, fmt.Errorf("panic: %v", r)
				}
			}()

			return next(ctx, req)
		}
	}
}
