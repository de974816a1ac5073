package model

import (
	"errors"
	"time"
)

// Kind identifies which source adapter produced an Event. The formatter
// branches on it because the two sources carry different detail.
type Kind int

const (
	// KindGroup events come from the group-events REST API. They carry RSVP
	// counts but weekly notices only mention the weekday.
	KindGroup Kind = iota
	// KindFeed events come from an iCal feed. They have exact start times
	// and no attendance data.
	KindFeed
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindFeed:
		return "feed"
	default:
		return "unknown"
	}
}

// Event is a normalized upcoming event. It is immutable once produced by a
// source adapter.
type Event struct {
	Name string
	// Start is expressed in the configured timezone.
	Start time.Time
	URL   string

	// RSVPCount is nil when the source does not report attendance.
	RSVPCount *int

	Source Kind

	// HasTime is false for date-only events (all-day iCal entries or group
	// events without a local time).
	HasTime bool
}

var (
	ErrMissingName  = errors.New("event has no name")
	ErrMissingStart = errors.New("event has no start time")
)

// Validate reports whether the event can be classified.
func (e Event) Validate() error {
	if e.Name == "" {
		return ErrMissingName
	}
	if e.Start.IsZero() {
		return ErrMissingStart
	}
	return nil
}

// Rule is the per-pattern notification policy. A Rule with an empty Pattern
// is the default rule.
type Rule struct {
	Pattern  string
	Reminder bool
	ThreadID string
}
