package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "meetupnotify/internal/log"
	"meetupnotify/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// Window is the inclusive time range occurrences are produced for.
type Window struct {
	Start time.Time
	End   time.Time
}

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// Location is the timezone every occurrence is converted to. If nil,
	// time.Local is used.
	Location *time.Location

	Window Window

	// MaxOccurrencesPerEvent caps runaway rules. Zero means the default.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed VEVENTs into concrete feed events inside the window:
//
//   - single events are kept when they start inside the window
//   - RRULE events are expanded, minus EXDATEs
//   - RECURRENCE-ID overrides replace the instance they target, including
//     instances moved into the window from outside it
//   - cancelled events and cancelled instances are dropped
//
// The result is sorted by start time.
func Expand(events []ParsedEvent, cfg ExpandConfig) ([]model.Event, error) {
	if cfg.Window.End.Before(cfg.Window.Start) {
		return nil, errors.New("expand: window end is before start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Keep base events in feed order; overrides are looked up by UID.
	var bases []ParsedEvent
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := make([]model.Event, 0, len(bases))
	baseUIDs := make(map[string]bool, len(bases))
	for _, ev := range bases {
		baseUIDs[ev.UID] = true
		if ev.RawRRule == "" {
			out = append(out, expandSingle(ev, overridesByUID[ev.UID], cfg)...)
			continue
		}
		occ, hitCap := expandRecurring(ev, overridesByUID[ev.UID], cfg)
		if hitCap {
			appLog.Warn("expand: truncated occurrences", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		out = append(out, occ...)
	}

	// Overrides whose series is not in the feed stand on their own.
	for uid, ovs := range overridesByUID {
		if baseUIDs[uid] {
			continue
		}
		for _, ov := range ovs {
			if !ov.Cancelled && inWindow(ov.Start, cfg.Window) {
				out = append(out, toModel(ov, ov.Start, cfg.Location))
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	if o, ok := findOverride(overrides, ev.Start); ok {
		ev = o
	}
	if ev.Cancelled || !inWindow(ev.Start, cfg.Window) {
		return nil
	}
	return []model.Event{toModel(ev, ev.Start, cfg.Location)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.Cancelled {
		return nil, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	from := cfg.Window.Start.In(ev.Start.Location())
	to := cfg.Window.End.In(ev.Start.Location())
	times := set.Between(from, to, true)

	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Event, 0, len(times))
	handled := make(map[int64]bool, len(overrides))
	for _, start := range times {
		inst := ev
		if o, ok := findOverride(overrides, start); ok {
			handled[o.Recurrence.UnixNano()] = true
			inst = o
			start = o.Start
		}
		if inst.Cancelled || !inWindow(start, cfg.Window) {
			continue
		}
		out = append(out, toModel(inst, start, cfg.Location))
	}

	// An instance may be moved into the window from a date outside it.
	for _, o := range overrides {
		if handled[o.Recurrence.UnixNano()] || o.Cancelled || !inWindow(o.Start, cfg.Window) {
			continue
		}
		if isExDate(ev.ExDates, *o.Recurrence) {
			continue
		}
		out = append(out, toModel(o, o.Start, cfg.Location))
	}
	return out, hitCap
}

func isExDate(exdates []time.Time, t time.Time) bool {
	for _, ex := range exdates {
		if ex.Equal(t) {
			return true
		}
	}
	return false
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func inWindow(t time.Time, w Window) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func toModel(ev ParsedEvent, start time.Time, loc *time.Location) model.Event {
	if ev.AllDay {
		// Keep the calendar date; only the zone changes.
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	} else {
		start = start.In(loc)
	}
	return model.Event{
		Name:    ev.Summary,
		Start:   start,
		URL:     ev.URL,
		Source:  model.KindFeed,
		HasTime: !ev.AllDay,
	}
}
