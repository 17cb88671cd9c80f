// Package botx provides interfaces and types to handle bot updates,
// with a chi-like router.
package botx

import (
	"context"
	"sync"

	"github.com/Semior001/morningdigest/pkg/logx"
	"golang.org/x/exp/slog"
)

// Sender sends a single message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, resp Response) error
}

// API defines methods for an API interface to receive and send chat messages.
type API interface {
	Sender
	Updates() <-chan Request
}

// Bot defines parameters for running a bot over some API.
type Bot struct {
	h   Handler
	api API
	Options
}

// Options defines options for Bot.
type Options struct {
	Workers int
	Logger  *slog.Logger
}

// Option configures Bot.
type Option func(*Options)

// WithWorkers sets the number of update handlers, at least one.
func WithWorkers(workers int) Option {
	return func(o *Options) {
		if workers > 0 {
			o.Workers = workers
		}
	}
}

// WithLogger sets the logger for worker lifecycle and delivery errors.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// NewBot creates a new Bot.
func NewBot(h Handler, api API, opts ...Option) *Bot {
	options := Options{
		Workers: 1,
		Logger:  slog.New(logx.NoOp()),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Bot{
		h:       h,
		api:     api,
		Options: options,
	}
}

// Run starts updates listener.
func (b *Bot) Run(ctx context.Context) {
	wg := &sync.WaitGroup{}
	wg.Add(b.Workers)

	for i := 0; i < b.Workers; i++ {
		go func(idx int) {
			b.Logger.InfoCtx(ctx, "starting worker", slog.Int("worker", idx))

			defer func() {
				b.Logger.InfoCtx(ctx, "stopping worker", slog.Int("worker", idx))
				wg.Done()
			}()

			for {
				select {
				case <-ctx.Done():
					return
				case req, ok := <-b.api.Updates():
					if !ok {
						return
					}
					b.handleUpdate(ctx, req)
				}
			}
		}(i)
	}

	wg.Wait()
}

func (b *Bot) handleUpdate(ctx context.Context, req Request) {
	resps, err := b.h(ctx, req)
	if err != nil {
		b.Logger.ErrorCtx(ctx, "failed to handle request",
			slog.Int64("chat_id", req.Chat.ID), slog.Any("err", err))
	}

	for _, resp := range resps {
		if err := b.api.SendMessage(ctx, resp); err != nil {
			b.Logger.WarnCtx(ctx, "failed to send message",
				slog.Int64("chat_id", resp.ChatID), slog.Any("err", err))
		}
	}
}
