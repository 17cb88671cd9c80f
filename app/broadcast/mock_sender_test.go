package broadcast

import (
	"context"
	"sync"

	"github.com/Semior001/morningdigest/pkg/botx"
)

// SenderMock is a mock implementation of botx.Sender.
type SenderMock struct {
	SendMessageFunc func(ctx context.Context, resp botx.Response) error

	mu    sync.Mutex
	calls []botx.Response
}

// SendMessage calls SendMessageFunc.
func (m *SenderMock) SendMessage(ctx context.Context, resp botx.Response) error {
	m.mu.Lock()
	m.calls = append(m.calls, resp)
	m.mu.Unlock()
	return m.SendMessageFunc(ctx, resp)
}

// SendMessageCalls returns the requests SendMessage was called with.
func (m *SenderMock) SendMessageCalls() []botx.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]botx.Response(nil), m.calls...)
}
