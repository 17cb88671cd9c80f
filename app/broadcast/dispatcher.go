// Package broadcast delivers the daily digest to all subscribers.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Semior001/morningdigest/pkg/botx"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Dispatcher sends one message to many chats, each delivery is independent.
type Dispatcher struct {
	Logger  *slog.Logger
	API     botx.Sender
	Workers int
	// Limiter throttles sends across all workers, nil means unlimited.
	Limiter *rate.Limiter
}

// Broadcast sends text to every recipient once and returns the recipients
// that are permanently unreachable, sorted. Transient failures are only logged.
func (d *Dispatcher) Broadcast(ctx context.Context, text string, recipients []int64) []int64 {
	if len(recipients) == 0 {
		return nil
	}

	start := time.Now()

	var (
		mu          sync.Mutex
		unreachable []int64
		failed      int
	)

	eg := &errgroup.Group{}
	eg.SetLimit(d.workers())

	for _, id := range recipients {
		id := id
		eg.Go(func() error {
			err := d.send(ctx, id, text)
			if err == nil {
				return nil
			}

			permanent := Permanent(err)
			d.Logger.WarnCtx(ctx, "cannot send digest",
				slog.Int64("chat_id", id),
				slog.Bool("permanent", permanent),
				slog.Any("err", err),
			)

			mu.Lock()
			defer mu.Unlock()
			failed++
			if permanent {
				unreachable = append(unreachable, id)
			}
			return nil
		})
	}

	_ = eg.Wait()

	sort.Slice(unreachable, func(i, j int) bool { return unreachable[i] < unreachable[j] })

	d.Logger.InfoCtx(ctx, "broadcast finished",
		slog.Int("total", len(recipients)),
		slog.Int("failed", failed),
		slog.Int("unreachable", len(unreachable)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return unreachable
}

func (d *Dispatcher) send(ctx context.Context, id int64, text string) error {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for send slot: %w", err)
		}
	}
	return d.API.SendMessage(ctx, botx.Response{ChatID: id, Text: text})
}

func (d *Dispatcher) workers() int {
	if d.Workers <= 0 {
		return 1
	}
	return d.Workers
}

// Permanent reports whether the delivery error means that the chat will
// never be reachable again. Relies on botx.ErrChatUnreachable when the API
// provides it, falls back to looking at the error text otherwise.
func Permanent(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, botx.ErrChatUnreachable) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "forbidden") || strings.Contains(msg, "chat not found")
}
