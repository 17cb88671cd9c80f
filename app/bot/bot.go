// Package bot contains routers and controllers for bot updates.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/Semior001/morningdigest/pkg/botx"
	"github.com/Semior001/morningdigest/pkg/botx/botmw"
	cache "github.com/go-pkgz/expirable-cache/v2"
	"github.com/samber/lo"
	"golang.org/x/exp/slog"
)

// Subscribers is the registry of subscribed chats.
type Subscribers interface {
	Add(ctx context.Context, id int64) error
	Remove(ctx context.Context, ids ...int64) error
	Contains(id int64) bool
	Snapshot() []int64
}

// Digest builds the digest on demand.
type Digest interface {
	Assemble(ctx context.Context) string
	Stat() cache.Stats
}

// Ctrl provides routes and controllers for bot updates.
type Ctrl struct {
	Logger         *slog.Logger
	Subscribers    Subscribers
	Digest         Digest
	API            botx.Sender
	AdminIDs       []int64
	HandlerTimeout time.Duration
	// Schedule is a human-readable time of the daily digest.
	Schedule string
}

// Routes returns a multiplexer for bot controllers.
func (c *Ctrl) Routes() *botx.Router {
	rtr := botx.NewRouter()

	rtr.Use(
		botmw.RequestID(),
		botmw.AppendRequestIDOnError("Что-то пошло не так, попробуйте позже."),
		botmw.Recover(c.Logger),
		botmw.Logger(c.Logger),
		botmw.Timeout(c.HandlerTimeout),
	)

	rtr.NotFound(c.help)
	rtr.Add("/start", c.start)
	rtr.Add("/stop", c.stop)
	rtr.Add("/today", c.today)

	rtr.Group(func(rtr *botx.Router) {
		rtr.Use(c.ensureAdmin)

		adm := &admin{Subscribers: c.Subscribers, Digest: c.Digest}
		rtr.Add("/list", adm.list)
		rtr.Add("/stats", adm.stats)
	})

	return rtr
}

func (c *Ctrl) start(ctx context.Context, req botx.Request) ([]botx.Response, error) {
	isNew := !c.Subscribers.Contains(req.Chat.ID)

	// the subscription is kept in memory even if it wasn't persisted,
	// so the user is confirmed anyway
	if err := c.Subscribers.Add(ctx, req.Chat.ID); err != nil {
		c.Logger.WarnCtx(ctx, "subscription is not persisted",
			slog.Int64("chat_id", req.Chat.ID), slog.Any("err", err))
	}

	if isNew {
		msg := fmt.Sprintf("new subscriber: %d (@%s)", req.Chat.ID, req.Chat.Username)
		if err := c.NotifyAdmins(ctx, msg); err != nil {
			c.Logger.WarnCtx(ctx, "notify admins about new subscriber", slog.Any("err", err))
		}
	}

	return []botx.Response{{
		ChatID: req.Chat.ID,
		Text: "Подписка активирована.\n" +
			fmt.Sprintf("Каждый день в %s вы будете получать погоду и хорошую новость.", c.Schedule),
	}}, nil
}

func (c *Ctrl) stop(ctx context.Context, req botx.Request) ([]botx.Response, error) {
	if err := c.Subscribers.Remove(ctx, req.Chat.ID); err != nil {
		c.Logger.WarnCtx(ctx, "unsubscription is not persisted",
			slog.Int64("chat_id", req.Chat.ID), slog.Any("err", err))
	}

	return []botx.Response{{
		ChatID: req.Chat.ID,
		Text:   "Подписка отменена. Чтобы подписаться снова, отправьте /start.",
	}}, nil
}

func (c *Ctrl) today(ctx context.Context, req botx.Request) ([]botx.Response, error) {
	return []botx.Response{{
		ChatID: req.Chat.ID,
		Text:   c.Digest.Assemble(ctx),
	}}, nil
}

func (c *Ctrl) help(_ context.Context, req botx.Request) ([]botx.Response, error) {
	return []botx.Response{{
		ChatID: req.Chat.ID,
		Text: "Команды:\n" +
			"/start - подписаться на ежедневную рассылку\n" +
			"/stop - отписаться\n" +
			"/today - погода и хорошая новость прямо сейчас",
	}}, nil
}

func (c *Ctrl) ensureAdmin(h botx.Handler) botx.Handler {
	return func(ctx context.Context, req botx.Request) ([]botx.Response, error) {
		if !lo.Contains(c.AdminIDs, req.Chat.ID) {
			return c.help(ctx, req)
		}

		return h(ctx, req)
	}
}

// NotifyAdmins sends a message to all admins.
func (c *Ctrl) NotifyAdmins(ctx context.Context, msg string) error {
	for _, adminID := range c.AdminIDs {
		if err := c.API.SendMessage(ctx, botx.Response{
			ChatID: adminID,
			Text:   msg,
		}); err != nil {
			return fmt.Errorf("send message to admin %d: %w", adminID, err)
		}
	}

	return nil
}
