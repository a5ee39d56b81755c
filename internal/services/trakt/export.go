package trakt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/amaumene/trackarr/internal/importer"
	"github.com/amaumene/trackarr/internal/pagination"
	"github.com/goccy/go-json"
)

// pageLimit is the page size requested from paginated /sync endpoints
const pageLimit = 100

const (
	ratingsPath   = "/sync/ratings"
	watchlistPath = "/sync/watchlist"
	historyPath   = "/sync/history"
)

// ImportInput exposes the account's ratings, watchlist and history as the
// JSON arrays the Trakt importer reads. Each opener fetches every page.
func (c *Client) ImportInput() importer.TraktInput {
	return importer.TraktInput{
		Ratings:   c.exportOpener(ratingsPath),
		Watchlist: c.exportOpener(watchlistPath),
		History:   c.exportOpener(historyPath),
	}
}

func (c *Client) exportOpener(path string) importer.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		entries, err := c.FetchAll(ctx, path)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s export: %w", path, err)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// FetchAll reads every page of a /sync listing and returns the raw entries
func (c *Client) FetchAll(ctx context.Context, path string) ([]json.RawMessage, error) {
	// Trakt may serve fewer than pageLimit entries per page, so pages are
	// counted rather than derived from the number of entries
	page := 0
	fetch := func(ctx context.Context, _ *pagination.Cursor) (pagination.Page[json.RawMessage], error) {
		page++
		return c.fetchPage(ctx, path, page)
	}

	entries, _, err := pagination.Accumulate(ctx, fetch, pagination.Options[json.RawMessage]{
		// Trakt pages by number, so the cursor only needs the running count
		Timestamp: func(json.RawMessage) time.Time { return time.Time{} },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}

	c.logger.WithField("path", path).WithField("entries", len(entries)).Debug("Fetched Trakt export")
	return entries, nil
}

func (c *Client) fetchPage(ctx context.Context, path string, page int) (pagination.Page[json.RawMessage], error) {
	url := fmt.Sprintf("%s?page=%d&limit=%d", path, page, pageLimit)

	var items []json.RawMessage
	resp, err := c.doAuthedRequest(ctx, http.MethodGet, url, nil, &items)
	if err != nil {
		return pagination.Page[json.RawMessage]{}, err
	}

	// Unpaginated endpoints carry no count header and return everything at once
	total := len(items)
	if count := resp.header.Get("X-Pagination-Item-Count"); count != "" {
		if n, err := strconv.Atoi(count); err == nil {
			total = n
		}
	}
	return pagination.Page[json.RawMessage]{Items: items, Total: total}, nil
}
