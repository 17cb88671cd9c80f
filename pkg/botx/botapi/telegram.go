// Package botapi contains implementations of bot API interfaces.
package botapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Semior001/morningdigest/pkg/botx"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/exp/slog"
)

// Telegram is a controller that handles requests from telegram.
type Telegram struct {
	api     *tgbotapi.BotAPI
	updates chan botx.Request

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewTelegram returns a new telegram bot controller.
func NewTelegram(lg *slog.Logger, token string, bufferSize int) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("make new api: %w", err)
	}

	stdlibLogger := slog.NewLogLogger(lg.Handler(), slog.LevelWarn)
	stdlibLogger.SetPrefix("telegram-bot-api: ")

	if err = tgbotapi.SetLogger(stdlibLogger); err != nil {
		return nil, fmt.Errorf("set logger: %w", err)
	}

	lg.Info("authorized", slog.String("username", api.Self.UserName))

	return newTelegram(api, bufferSize), nil
}

func newTelegram(api *tgbotapi.BotAPI, bufferSize int) *Telegram {
	return &Telegram{
		api:     api,
		updates: make(chan botx.Request, bufferSize),
		stopped: make(chan struct{}),
	}
}

// Run runs telegram bot listener until Stop is called and the pending
// long poll returns. The updates channel is closed when Run returns.
func (b *Telegram) Run() {
	defer close(b.updates)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		update, ok := <-updates
		if !ok {
			return
		}

		if update.Message == nil || update.Message.Chat == nil || update.Message.Text == "" {
			continue
		}

		req := botx.Request{
			MessageID: update.Message.MessageID,
			Chat: botx.Chat{
				ID:       update.Message.Chat.ID,
				Username: update.Message.Chat.UserName,
			},
			Text: update.Message.Text,
		}

		// after Stop nobody may read updates anymore, late messages are dropped
		select {
		case b.updates <- req:
		case <-b.stopped:
		}
	}
}

// Stop asks the listener to stop. Run returns once the long poll in
// progress, if any, is finished.
func (b *Telegram) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopped)
		b.api.StopReceivingUpdates()
	})
}

// Updates returns updates channel.
func (b *Telegram) Updates() <-chan botx.Request {
	return b.updates
}

// SendMessage sends message to telegram chat.
// Errors meaning that the chat is gone for good are wrapped
// with botx.ErrChatUnreachable.
func (b *Telegram) SendMessage(ctx context.Context, resp botx.Response) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := tgbotapi.NewMessage(resp.ChatID, resp.Text)
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = resp.ReplyToMessageID
	if resp.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", classify(err))
	}

	return nil
}

// permanent failure markers telegram puts into error descriptions
var unreachableMarkers = []string{
	"forbidden",
	"chat not found",
	"user is deactivated",
	"bot was kicked",
	"bot was blocked",
}

func classify(err error) error {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return err
	}

	if tgErr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %v", botx.ErrChatUnreachable, err)
	}

	desc := strings.ToLower(tgErr.Message)
	for _, marker := range unreachableMarkers {
		if strings.Contains(desc, marker) {
			return fmt.Errorf("%w: %v", botx.ErrChatUnreachable, err)
		}
	}

	return err
}
