package digest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/exp/slog"
)

// News is a single positive news article.
type News struct {
	Title       string
	Description string
	URL         string
}

// NewsParams defines the fixed query of the news client.
type NewsParams struct {
	URL      string
	APIKey   string
	Query    string
	Language string
	SortBy   string
	PageSize int
	// MaxDescription is the maximum description length in characters,
	// longer descriptions are cut and end with an ellipsis.
	MaxDescription int
}

// NewsClient searches positive news via the NewsAPI "everything" endpoint.
type NewsClient struct {
	log    *slog.Logger
	cl     *http.Client
	params NewsParams
	now    func() time.Time
}

// NewNewsClient makes new NewsClient.
func NewNewsClient(lg *slog.Logger, cl *http.Client, params NewsParams) *NewsClient {
	return &NewsClient{log: lg, cl: cl, params: params, now: time.Now}
}

type newsResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"articles"`
}

// PositiveNews returns the most popular article published yesterday (UTC)
// that has a title, a description and a link.
// Nil news with nil error means that nothing matched.
func (c *NewsClient) PositiveNews(ctx context.Context) (*News, error) {
	from, to := yesterdayUTC(c.now())

	q := url.Values{}
	q.Set("q", c.params.Query)
	q.Set("language", c.params.Language)
	q.Set("sortBy", c.params.SortBy)
	q.Set("pageSize", strconv.Itoa(c.params.PageSize))
	q.Set("from", from)
	q.Set("to", to)
	q.Set("apiKey", c.params.APIKey)

	var resp newsResponse
	if err := getJSON(ctx, c.log, c.cl, c.params.URL, q, &resp); err != nil {
		return nil, fmt.Errorf("search news: %w", err)
	}

	if resp.Status == "error" {
		msg := resp.Message
		if msg == "" {
			msg = "unknown news api error"
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstream, resp.Code, msg)
	}

	for _, a := range resp.Articles {
		n := News{
			Title:       strings.TrimSpace(a.Title),
			Description: strings.TrimSpace(a.Description),
			URL:         strings.TrimSpace(a.URL),
		}

		if n.Title == "" || n.Description == "" || n.URL == "" {
			continue
		}

		n.Description = truncate(n.Description, c.params.MaxDescription)
		return &n, nil
	}

	c.log.InfoCtx(ctx, "no suitable article found", slog.Int("articles", len(resp.Articles)))
	return nil, nil
}

const ellipsis = "..."

// truncate cuts s to at most limit characters, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return s
	}

	keep := limit - len(ellipsis)
	if keep < 0 {
		keep = 0
	}

	return strings.TrimRightFunc(string(rs[:keep]), unicode.IsSpace) + ellipsis
}

// yesterdayUTC returns the dates of yesterday and today in UTC.
func yesterdayUTC(now time.Time) (from, to string) {
	today := now.UTC()
	return today.AddDate(0, 0, -1).Format(time.DateOnly), today.Format(time.DateOnly)
}
