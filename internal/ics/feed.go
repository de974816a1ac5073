// Package ics turns an iCal feed into normalized events: fetch, parse,
// then expand recurrences inside the classification window.
package ics

import (
	"context"
	"fmt"
	"time"

	"meetupnotify/internal/api"
	appLog "meetupnotify/internal/log"
	"meetupnotify/internal/model"
)

// Feed is the iCal event source.
type Feed struct {
	url     string
	loc     *time.Location
	window  Window
	fetcher *Fetcher
}

// NewFeed creates a source for the feed at url. Occurrences are produced for
// window and converted to loc.
func NewFeed(url string, loc *time.Location, window Window, client api.HTTPClient) *Feed {
	return &Feed{
		url:     url,
		loc:     loc,
		window:  window,
		fetcher: NewFetcher(client),
	}
}

// WindowAround returns the range the classifier can act on: from the day
// before ref through the day after the weekly notice horizon.
func WindowAround(ref time.Time, days int) Window {
	return Window{
		Start: ref.AddDate(0, 0, -1),
		End:   ref.AddDate(0, 0, days+1),
	}
}

// Events fetches, parses and expands the feed.
func (f *Feed) Events(ctx context.Context) ([]model.Event, error) {
	body, err := f.fetcher.Fetch(ctx, f.url)
	if err != nil {
		return nil, err
	}

	parsed, err := Parse(body, f.loc)
	if err != nil {
		return nil, fmt.Errorf("ics parse %s: %w", redactURL(f.url), err)
	}

	events, err := Expand(parsed, ExpandConfig{Location: f.loc, Window: f.window})
	if err != nil {
		return nil, err
	}

	appLog.Info("ics feed loaded", "url", redactURL(f.url), "vevents", len(parsed), "event_count", len(events))
	return events, nil
}
