package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"meetupnotify/internal/api"
	appLog "meetupnotify/internal/log"
)

// maxFeedSize bounds how much of a feed body is read.
const maxFeedSize = 10 << 20

// Fetcher downloads iCal feeds.
type Fetcher struct {
	client api.HTTPClient
}

// NewFetcher creates a Fetcher on top of the run's shared HTTP client.
func NewFetcher(client api.HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch performs a single GET of the feed at url and returns its body.
// There is no retry; a failure simply yields no events for this run.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("feed URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")
	req.Header.Set("User-Agent", api.UserAgent)

	appLog.Debug("ics fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics fetch %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	if err := api.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("ics fetch %s: %w", redactURL(url), err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("ics read %s: %w", redactURL(url), err)
	}

	appLog.Info("ics fetch success", "url", redactURL(url), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// redactURL hides the path and query of a feed URL for logging; private
// feeds embed access tokens there.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	return u[:j] + redactedSuffix
}
