package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/exp/slog"
)

// maxBodySize limits the amount of upstream response read into memory.
const maxBodySize = 4 << 20

// getJSON performs a GET request and decodes the JSON body into dst,
// translating transport and status errors into the upstream failure kinds.
func getJSON(ctx context.Context, lg *slog.Logger, cl *http.Client, u string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, stripQuery(err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			lg.WarnCtx(ctx, "failed to close response body", slog.Any("err", err))
		}
	}()

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok {
		return statusError(resp.StatusCode)
	}

	if err = json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(dst); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: read body: %v", ErrUnreachable, stripQuery(err))
		}
		return fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}

	return nil
}

// stripQuery drops the query string from the url inside a transport error,
// as it carries api keys.
func stripQuery(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}

	target := "<invalid url>"
	if u, perr := url.Parse(uerr.URL); perr == nil {
		u.RawQuery, u.User = "", nil
		target = u.String()
	}

	return fmt.Errorf("%s %q: %w", uerr.Op, target, uerr.Err)
}
