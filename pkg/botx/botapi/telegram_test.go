package botapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Semior001/morningdigest/pkg/botx"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unreachable bool
	}{
		{
			name:        "blocked by user",
			err:         &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"},
			unreachable: true,
		},
		{
			name:        "chat not found",
			err:         &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"},
			unreachable: true,
		},
		{
			name:        "wrapped",
			err:         fmt.Errorf("do: %w", &tgbotapi.Error{Code: 403, Message: "Forbidden: user is deactivated"}),
			unreachable: true,
		},
		{
			name:        "too many requests",
			err:         &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 5"},
			unreachable: false,
		},
		{
			name:        "bad markup",
			err:         &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"},
			unreachable: false,
		},
		{
			name:        "network",
			err:         errors.New("dial tcp: i/o timeout"),
			unreachable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			assert.Equal(t, tt.unreachable, errors.Is(err, botx.ErrChatUnreachable))
			assert.ErrorContains(t, err, tt.err.Error())
		})
	}
}

func TestTelegram_StopDuringLongPoll(t *testing.T) {
	polling := make(chan struct{})
	release := make(chan struct{})
	var polls int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"digest","username":"digest_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if atomic.AddInt32(&polls, 1) > 1 {
				_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
				return
			}
			close(polling)
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":1,"message":{"message_id":5,` +
				`"date":0,"chat":{"id":42,"type":"private"},"text":"/start"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	api, err := tgbotapi.NewBotAPIWithClient("TOKEN", ts.URL+"/bot%s/%s", ts.Client())
	require.NoError(t, err)

	tg := newTelegram(api, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		tg.Run()
	}()

	select {
	case <-polling:
	case <-time.After(5 * time.Second):
		t.Fatal("long poll is not started")
	}

	tg.Stop()
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, ok := <-tg.Updates()
	assert.False(t, ok, "updates channel must be closed")

	tg.Stop() // second call is a no-op
}
