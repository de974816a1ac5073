// Package notifier runs the single pass: fetch, classify, format, publish.
package notifier

import (
	"context"

	"meetupnotify/internal/format"
	appLog "meetupnotify/internal/log"
	"meetupnotify/internal/model"
	"meetupnotify/internal/schedule"
)

// Source yields the current snapshot of upcoming events. An error means the
// whole fetch failed.
type Source interface {
	Events(ctx context.Context) ([]model.Event, error)
}

// Publisher delivers one message.
type Publisher interface {
	Publish(ctx context.Context, webhook, text, threadID string) error
}

// Report summarizes a run for the final log line.
type Report struct {
	Fetched    int
	Skipped    int
	Sent       int
	Failed     int
	DigestSent bool
}

// Run performs one pass over the events from src. Fetch, per-event and
// delivery failures are logged and never abort the pass.
func Run(ctx context.Context, rc schedule.RunContext, src Source, pub Publisher) Report {
	var report Report
	cfg := rc.Config

	events, err := src.Events(ctx)
	if err != nil {
		appLog.Warn("event fetch failed; continuing with no events", "error", err.Error())
		events = nil
	}
	if len(events) == 0 {
		appLog.Warn("no events found")
	}
	report.Fetched = len(events)

	plan := schedule.Classify(rc, events)
	report.Skipped = plan.Skipped

	deliver := func(webhook, text, threadID, kind string) bool {
		if err := pub.Publish(ctx, webhook, text, threadID); err != nil {
			appLog.Error("failed to publish message", err, "kind", kind, "thread_id", threadID)
			report.Failed++
			return false
		}
		report.Sent++
		return true
	}

	for _, t := range plan.Weekly {
		deliver(cfg.Discord.Webhook, format.WeeklyNotice(t.Event), t.Rule.ThreadID, "weekly")
	}
	for _, t := range plan.Reminders {
		deliver(cfg.Discord.Webhook, format.Reminder(t.Event), t.Rule.ThreadID, "reminder")
	}

	summary := cfg.Discord.Summary
	switch {
	case !summary.Enabled:
	case !schedule.IsSummaryDay(rc.Now, summary.Daily, cfg.Location()):
		appLog.Debug("not a summary day", "today", rc.Now.Weekday().String(), "summary_day", summary.Daily)
	case len(plan.Digest) == 0:
		// An empty digest carries no information; skip it rather than post a
		// bare header.
		appLog.Warn("summary day but no events this week; digest not sent")
	default:
		lines := make([]string, 0, len(plan.Digest))
		for _, t := range plan.Digest {
			lines = append(lines, format.WeeklyNotice(t.Event))
		}
		report.DigestSent = deliver(summary.Webhook, format.Digest(lines), "", "digest")
	}

	appLog.Info("event processing complete",
		"fetched", report.Fetched,
		"skipped", report.Skipped,
		"sent", report.Sent,
		"failed", report.Failed,
		"digest_sent", report.DigestSent,
		"dry_run", rc.DryRun,
	)
	return report
}
