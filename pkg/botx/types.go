package botx

import (
	"context"
	"errors"
)

// ErrChatUnreachable is returned by API implementations when the destination
// chat can never be reached again: the bot was blocked, kicked, or the chat
// was deleted.
var ErrChatUnreachable = errors.New("chat unreachable")

// Handler handles requests.
type Handler func(ctx context.Context, req Request) ([]Response, error)

// Middleware wraps a handler.
type Middleware func(Handler) Handler

// Request is a request for handler.
type Request struct {
	MessageID int
	Chat      Chat
	Text      string
}

// Chat contains chat information.
type Chat struct {
	ID       int64
	Username string
}

// Response is a response from handler.
type Response struct {
	ReplyToMessageID int
	ChatID           int64
	Text             string
	// Markdown turns on markdown parse mode, text is sent verbatim otherwise.
	Markdown bool
}

// NotFound is a default handler for not found commands.
func NotFound(_ context.Context, req Request) ([]Response, error) {
	return []Response{{
		ChatID: req.Chat.ID,
		Text:   "command not found",
	}}, nil
}
