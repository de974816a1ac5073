// Package meetup fetches upcoming events from the Meetup group-events REST
// API.
package meetup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"meetupnotify/internal/api"
	appLog "meetupnotify/internal/log"
	"meetupnotify/internal/model"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	// pageSize mirrors the number of upcoming events requested per run.
	pageSize = 10
)

// apiEvent is the subset of the Meetup event payload we use.
type apiEvent struct {
	Name         string `json:"name"`
	LocalDate    string `json:"local_date"`
	LocalTime    string `json:"local_time"`
	Time         int64  `json:"time"` // epoch milliseconds
	Link         string `json:"link"`
	YesRSVPCount *int   `json:"yes_rsvp_count"`
}

// Client lists a group's upcoming events.
type Client struct {
	baseURL    string
	group      string
	loc        *time.Location
	httpClient api.HTTPClient
}

// NewClient creates a client for group. Event dates are interpreted in loc.
func NewClient(baseURL, group string, loc *time.Location, httpClient api.HTTPClient) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL:    baseURL,
		group:      group,
		loc:        loc,
		httpClient: httpClient,
	}
}

func (c *Client) eventsURL() string {
	q := url.Values{}
	q.Set("sign", "true")
	q.Set("photo-host", "public")
	q.Set("page", fmt.Sprint(pageSize))
	return fmt.Sprintf("%s/%s/events?%s", c.baseURL, url.PathEscape(c.group), q.Encode())
}

// Events fetches and normalizes the group's upcoming events. An error means
// the whole fetch failed; individual malformed events are logged and
// skipped.
func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	u := c.eventsURL()
	appLog.Debug("meetup fetch start", "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", api.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meetup fetch: %w", err)
	}
	defer resp.Body.Close()

	if err := api.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("meetup fetch: %w", err)
	}

	var raw []apiEvent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("meetup decode: %w", err)
	}

	events := make([]model.Event, 0, len(raw))
	for i, item := range raw {
		ev, err := c.normalize(item)
		if err != nil {
			appLog.Error("meetup event skipped", err, "index", i, "name", item.Name)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("meetup fetch completed", "group", c.group, "received", len(raw), "event_count", len(events))
	return events, nil
}

func (c *Client) normalize(item apiEvent) (model.Event, error) {
	if item.Name == "" {
		return model.Event{}, model.ErrMissingName
	}

	ev := model.Event{
		Name:      item.Name,
		URL:       item.Link,
		RSVPCount: item.YesRSVPCount,
		Source:    model.KindGroup,
	}

	switch {
	case item.LocalDate != "" && item.LocalTime != "":
		start, err := time.ParseInLocation(dateLayout+" "+timeLayout, item.LocalDate+" "+item.LocalTime, c.loc)
		if err != nil {
			return model.Event{}, fmt.Errorf("parse local date/time: %w", err)
		}
		ev.Start = start
		ev.HasTime = true
	case item.LocalDate != "":
		start, err := time.ParseInLocation(dateLayout, item.LocalDate, c.loc)
		if err != nil {
			return model.Event{}, fmt.Errorf("parse local date: %w", err)
		}
		ev.Start = start
	case item.Time > 0:
		ev.Start = time.UnixMilli(item.Time).In(c.loc)
		ev.HasTime = true
	default:
		return model.Event{}, errors.New("event has no date")
	}

	return ev, nil
}
