// Package schedule decides which events warrant a notification on a given
// day. It is pure: no I/O besides logging skipped events.
package schedule

import (
	"strings"
	"time"

	"meetupnotify/internal/config"
	appLog "meetupnotify/internal/log"
	"meetupnotify/internal/model"
)

const (
	// ReferenceHour is the local hour "now" is pinned to, so offsets do not
	// depend on when during the day the job runs.
	ReferenceHour = 1

	// WeeklyOffset is the day offset at which the advance notice fires.
	WeeklyOffset = 7
)

// RunContext is computed once per invocation.
type RunContext struct {
	Now    time.Time
	DryRun bool
	Config *config.Config
}

// NewRunContext pins now to ReferenceHour in the configured timezone.
func NewRunContext(now time.Time, dryRun bool, cfg *config.Config) RunContext {
	return RunContext{
		Now:    Normalize(now, cfg.Location()),
		DryRun: dryRun,
		Config: cfg,
	}
}

// Normalize returns ReferenceHour:00 on now's calendar date in loc.
func Normalize(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), ReferenceHour, 0, 0, 0, loc)
}

// DaysUntil returns the number of calendar days from ref to start, both
// taken in loc. For any start at or after the reference hour this equals
// floor((start-ref)/24h); unlike raw duration division it is not skewed by
// 23 or 25 hour days around DST transitions.
func DaysUntil(ref, start time.Time, loc *time.Location) int {
	a := civilDate(ref.In(loc))
	b := civilDate(start.In(loc))
	return int(b.Sub(a).Hours() / 24)
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Trigger pairs an event with the rule that governs it.
type Trigger struct {
	Event  model.Event
	Rule   model.Rule
	Offset int
}

// Plan is the outcome of classifying one snapshot of events.
type Plan struct {
	// Weekly holds events exactly WeeklyOffset days away.
	Weekly []Trigger
	// Reminders holds events starting today whose rule enables reminders.
	Reminders []Trigger
	// Digest holds every event due within the coming week, in source order.
	Digest []Trigger
	// Skipped counts malformed events.
	Skipped int
}

// Classify walks events once in source order.
func Classify(rc RunContext, events []model.Event) Plan {
	var plan Plan
	loc := rc.Config.Location()

	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			appLog.Error("skipping malformed event", err, "index", i, "name", ev.Name)
			plan.Skipped++
			continue
		}

		rule := rc.Config.RuleFor(ev.Name)
		offset := DaysUntil(rc.Now, ev.Start, loc)
		t := Trigger{Event: ev, Rule: rule, Offset: offset}

		appLog.Debug("classified event",
			"name", ev.Name,
			"start", ev.Start.Format(time.RFC3339),
			"offset", offset,
			"pattern", rule.Pattern,
			"reminder", rule.Reminder,
		)

		if offset == WeeklyOffset {
			plan.Weekly = append(plan.Weekly, t)
		}
		if offset == 0 && rule.Reminder {
			plan.Reminders = append(plan.Reminders, t)
		}
		if offset >= 0 && offset <= WeeklyOffset {
			plan.Digest = append(plan.Digest, t)
		}
	}

	return plan
}

// IsSummaryDay reports whether now falls on the named weekday in loc.
func IsSummaryDay(now time.Time, day string, loc *time.Location) bool {
	return strings.EqualFold(now.In(loc).Weekday().String(), strings.TrimSpace(day))
}
