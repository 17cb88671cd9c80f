package broadcast

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"
)

// Subscribers is the set of chats the digest is delivered to.
type Subscribers interface {
	Snapshot() []int64
	Remove(ctx context.Context, ids ...int64) error
}

// Assembler builds the digest message.
type Assembler interface {
	Assemble(ctx context.Context) string
}

// Job is a single daily digest cycle.
type Job struct {
	Logger      *slog.Logger
	Subscribers Subscribers
	Assembler   Assembler
	Dispatcher  *Dispatcher
}

// Run assembles the digest, delivers it to all current subscribers and
// drops those that turned out to be unreachable.
func (j *Job) Run(ctx context.Context) error {
	recipients := j.Subscribers.Snapshot()
	if len(recipients) == 0 {
		j.Logger.InfoCtx(ctx, "no subscribers yet, skip digest")
		return nil
	}

	msg := j.Assembler.Assemble(ctx)

	unreachable := j.Dispatcher.Broadcast(ctx, msg, recipients)
	if len(unreachable) == 0 {
		return nil
	}

	j.Logger.InfoCtx(ctx, "removing unreachable subscribers", slog.Any("chat_ids", unreachable))

	if err := j.Subscribers.Remove(ctx, unreachable...); err != nil {
		return fmt.Errorf("remove unreachable subscribers: %w", err)
	}

	return nil
}
