package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Semior001/morningdigest/app/store"
	"github.com/Semior001/morningdigest/pkg/botx"
	"github.com/Semior001/morningdigest/pkg/logx"
	cache "github.com/go-pkgz/expirable-cache/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func newTestCtrl(t *testing.T, subs Subscribers) (*Ctrl, *senderMock) {
	api := &senderMock{}
	return &Ctrl{
		Logger:         slog.New(logx.NoOp()),
		Subscribers:    subs,
		Digest:         &digestMock{text: "digest"},
		API:            api,
		AdminIDs:       []int64{1},
		HandlerTimeout: time.Second,
		Schedule:       "09:00 (Europe/Moscow)",
	}, api
}

func TestCtrl_Start(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.json")
	reg := store.NewRegistry(slog.New(logx.NoOp()), store.NewJSONFile(path))

	ctrl, api := newTestCtrl(t, reg)
	h := ctrl.Routes().Handle

	resp, err := h(context.Background(), botx.Request{Chat: botx.Chat{ID: 100, Username: "john"}, Text: "/start"})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, int64(100), resp[0].ChatID)
	assert.Contains(t, resp[0].Text, "Подписка активирована")
	assert.Contains(t, resp[0].Text, "09:00 (Europe/Moscow)")

	assert.Equal(t, []int64{100}, reg.Snapshot())
	persisted, err := store.NewJSONFile(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, persisted)

	// admin is notified about the new subscriber only once
	_, err = h(context.Background(), botx.Request{Chat: botx.Chat{ID: 100, Username: "john"}, Text: "/start"})
	require.NoError(t, err)
	calls := api.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(1), calls[0].ChatID)
	assert.Contains(t, calls[0].Text, "@john")
	assert.Equal(t, []int64{100}, reg.Snapshot())
}

func TestCtrl_StartPersistFailure(t *testing.T) {
	subs := &subscribersMock{addErr: errors.New("read-only file system")}
	ctrl, _ := newTestCtrl(t, subs)

	resp, err := ctrl.Routes().Handle(context.Background(), botx.Request{Chat: botx.Chat{ID: 5}, Text: "/start"})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Contains(t, resp[0].Text, "Подписка активирована")
}

func TestCtrl_Stop(t *testing.T) {
	reg := store.NewRegistry(slog.New(logx.NoOp()),
		store.NewJSONFile(filepath.Join(t.TempDir(), "subscribers.json")))
	require.NoError(t, reg.Add(context.Background(), 100))
	require.NoError(t, reg.Add(context.Background(), 200))

	ctrl, _ := newTestCtrl(t, reg)

	resp, err := ctrl.Routes().Handle(context.Background(), botx.Request{Chat: botx.Chat{ID: 100}, Text: "/stop"})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Contains(t, resp[0].Text, "Подписка отменена")
	assert.Equal(t, []int64{200}, reg.Snapshot())
}

func TestCtrl_Today(t *testing.T) {
	ctrl, _ := newTestCtrl(t, &subscribersMock{})

	resp, err := ctrl.Routes().Handle(context.Background(), botx.Request{Chat: botx.Chat{ID: 7}, Text: "/today"})
	require.NoError(t, err)
	assert.Equal(t, []botx.Response{{ChatID: 7, Text: "digest"}}, resp)
}

func TestCtrl_Admin(t *testing.T) {
	subs := &subscribersMock{ids: []int64{10, 20}}
	ctrl, _ := newTestCtrl(t, subs)
	h := ctrl.Routes().Handle

	resp, err := h(context.Background(), botx.Request{Chat: botx.Chat{ID: 1}, Text: "/list"})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, "Subscribers (2):\n10\n20\n", resp[0].Text)

	resp, err = h(context.Background(), botx.Request{Chat: botx.Chat{ID: 1}, Text: "/stats"})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Contains(t, resp[0].Text, "subscribers: 2")
	assert.Contains(t, resp[0].Text, "hits: 3")

	// not an admin
	resp, err = h(context.Background(), botx.Request{Chat: botx.Chat{ID: 2}, Text: "/list"})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Contains(t, resp[0].Text, "/start")
	assert.NotContains(t, resp[0].Text, "Subscribers")
}

func TestCtrl_Help(t *testing.T) {
	ctrl, _ := newTestCtrl(t, &subscribersMock{})

	resp, err := ctrl.Routes().Handle(context.Background(), botx.Request{Chat: botx.Chat{ID: 3}, Text: "hello"})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Contains(t, resp[0].Text, "/today")
}

type senderMock struct {
	mu   sync.Mutex
	sent []botx.Response
}

func (m *senderMock) SendMessage(_ context.Context, resp botx.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, resp)
	return nil
}

func (m *senderMock) calls() []botx.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]botx.Response(nil), m.sent...)
}

type digestMock struct{ text string }

func (m *digestMock) Assemble(context.Context) string { return m.text }
func (m *digestMock) Stat() cache.Stats               { return cache.Stats{Hits: 3, Misses: 1, Added: 1} }

type subscribersMock struct {
	ids    []int64
	addErr error
}

func (m *subscribersMock) Add(_ context.Context, id int64) error {
	m.ids = append(m.ids, id)
	return m.addErr
}
func (m *subscribersMock) Remove(context.Context, ...int64) error { return nil }
func (m *subscribersMock) Contains(int64) bool                    { return false }
func (m *subscribersMock) Snapshot() []int64                      { return m.ids }
