package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Semior001/morningdigest/pkg/botx"
)

type admin struct {
	Subscribers Subscribers
	Digest      Digest
}

func (c *admin) list(_ context.Context, req botx.Request) ([]botx.Response, error) {
	ids := c.Subscribers.Snapshot()

	sb := &strings.Builder{}
	_, _ = sb.WriteString(fmt.Sprintf("Subscribers (%d):\n", len(ids)))
	for _, id := range ids {
		_, _ = sb.WriteString(fmt.Sprintf("%d\n", id))
	}

	return []botx.Response{{
		ChatID: req.Chat.ID,
		Text:   sb.String(),
	}}, nil
}

func (c *admin) stats(_ context.Context, req botx.Request) ([]botx.Response, error) {
	stats := c.Digest.Stat()
	return []botx.Response{{
		ChatID: req.Chat.ID,
		Text: fmt.Sprintf("subscribers: %d\ndigest cache hits: %d, misses: %d, evictions: %d, added: %d\n",
			len(c.Subscribers.Snapshot()), stats.Hits, stats.Misses, stats.Evicted, stats.Added),
	}}, nil
}
