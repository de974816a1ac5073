package notifier

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"meetupnotify/internal/config"
	"meetupnotify/internal/discord"
	"meetupnotify/internal/model"
	"meetupnotify/internal/schedule"
)

const (
	mainHook    = "https://discord.example/api/webhooks/main"
	summaryHook = "https://discord.example/api/webhooks/summary"
)

type fakeSource struct {
	events []model.Event
	err    error
}

func (f fakeSource) Events(context.Context) ([]model.Event, error) {
	return f.events, f.err
}

type message struct {
	webhook, text, threadID string
}

type recordingPublisher struct {
	messages []message
	failOn   string
}

func (r *recordingPublisher) Publish(_ context.Context, webhook, text, threadID string) error {
	if r.failOn != "" && strings.Contains(text, r.failOn) {
		return errors.New("webhook down")
	}
	r.messages = append(r.messages, message{webhook, text, threadID})
	return nil
}

func (r *recordingPublisher) to(webhook string) []message {
	var out []message
	for _, m := range r.messages {
		if m.webhook == webhook {
			out = append(out, m)
		}
	}
	return out
}

func newConfig(t *testing.T, summaryEnabled bool, rules ...model.Rule) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Discord: config.Discord{
			Webhook: mainHook,
			Summary: config.Summary{Enabled: summaryEnabled, Webhook: summaryHook, Daily: "sunday"},
		},
		Meetup:   config.Meetup{Group: "example"},
		Timezone: "America/Los_Angeles",
		Events:   rules,
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

// sunday is 10:00 on Sunday October 18th 2026 in Los Angeles.
func sunday(t *testing.T, cfg *config.Config) time.Time {
	t.Helper()
	return time.Date(2026, 10, 18, 10, 0, 0, 0, cfg.Location())
}

func TestRun_SundayScenario(t *testing.T) {
	cfg := newConfig(t, true)
	now := sunday(t, cfg)
	src := fakeSource{events: []model.Event{
		{Name: "Game Night", Start: now.AddDate(0, 0, 7), URL: "https://meetup.example/1", HasTime: true},
		{Name: "Book Club", Start: now.AddDate(0, 0, 2), URL: "https://meetup.example/2", HasTime: true},
	}}
	pub := &recordingPublisher{}

	report := Run(context.Background(), schedule.NewRunContext(now, false, cfg), src, pub)

	posted := pub.to(mainHook)
	if len(posted) != 1 || !strings.Contains(posted[0].text, "Game Night") {
		t.Fatalf("expected one weekly notice for Game Night, got %+v", posted)
	}
	if strings.HasPrefix(posted[0].text, "Join us today") {
		t.Error("no same-day reminder expected")
	}

	digest := pub.to(summaryHook)
	if len(digest) != 1 {
		t.Fatalf("expected one digest, got %d", len(digest))
	}
	want := "Upcoming Events This Week:\n" +
		"Don't forget to sign up for Game Night on Sunday. RSVP here: <https://meetup.example/1>\n" +
		"Don't forget to sign up for Book Club on Tuesday. RSVP here: <https://meetup.example/2>"
	if digest[0].text != want {
		t.Errorf("digest mismatch\ngot:  %q\nwant: %q", digest[0].text, want)
	}
	if !report.DigestSent || report.Sent != 2 || report.Failed != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestRun_NoDigestOnOtherDays(t *testing.T) {
	cfg := newConfig(t, true)
	monday := sunday(t, cfg).AddDate(0, 0, 1)
	src := fakeSource{events: []model.Event{{Name: "Book Club", Start: monday.AddDate(0, 0, 1)}}}
	pub := &recordingPublisher{}

	Run(context.Background(), schedule.NewRunContext(monday, false, cfg), src, pub)

	if len(pub.to(summaryHook)) != 0 {
		t.Error("digest must only be sent on the summary day")
	}
}

func TestRun_SummaryDisabled(t *testing.T) {
	cfg := newConfig(t, false)
	now := sunday(t, cfg)
	src := fakeSource{events: []model.Event{{Name: "Book Club", Start: now.AddDate(0, 0, 2)}}}
	pub := &recordingPublisher{}

	Run(context.Background(), schedule.NewRunContext(now, false, cfg), src, pub)

	if len(pub.messages) != 0 {
		t.Errorf("expected nothing sent, got %+v", pub.messages)
	}
}

func TestRun_ReminderUsesRuleThread(t *testing.T) {
	cfg := newConfig(t, false,
		model.Rule{Pattern: "Game", Reminder: true, ThreadID: "777"},
	)
	now := sunday(t, cfg)
	count := 9
	src := fakeSource{events: []model.Event{
		{Name: "Game Night", Start: now.Add(8 * time.Hour), URL: "u", HasTime: true, RSVPCount: &count},
		{Name: "Hike", Start: now.Add(2 * time.Hour), URL: "h", HasTime: true},
	}}
	pub := &recordingPublisher{}

	Run(context.Background(), schedule.NewRunContext(now, false, cfg), src, pub)

	if len(pub.messages) != 1 {
		t.Fatalf("expected exactly one reminder, got %+v", pub.messages)
	}
	m := pub.messages[0]
	if m.threadID != "777" || m.text != "Join us today at 6:00 PM for Game Night. 9 people attending so far! Sign up: <u>" {
		t.Errorf("unexpected reminder %+v", m)
	}
}

func TestRun_FetchFailureStillCompletes(t *testing.T) {
	cfg := newConfig(t, true)
	now := sunday(t, cfg)
	pub := &recordingPublisher{}

	report := Run(context.Background(), schedule.NewRunContext(now, false, cfg), fakeSource{err: errors.New("timeout")}, pub)

	if report.Fetched != 0 || len(pub.messages) != 0 {
		t.Errorf("expected no messages and no empty digest, got %+v", pub.messages)
	}
	if report.DigestSent {
		t.Error("empty digest must not be sent")
	}
}

func TestRun_DeliveryFailureDoesNotStopOthers(t *testing.T) {
	cfg := newConfig(t, false)
	now := sunday(t, cfg)
	src := fakeSource{events: []model.Event{
		{Name: "Broken Hook", Start: now.AddDate(0, 0, 7)},
		{Name: "Second", Start: now.AddDate(0, 0, 7)},
	}}
	pub := &recordingPublisher{failOn: "Broken Hook"}

	report := Run(context.Background(), schedule.NewRunContext(now, false, cfg), src, pub)

	if report.Failed != 1 || report.Sent != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if len(pub.messages) != 1 || !strings.Contains(pub.messages[0].text, "Second") {
		t.Errorf("second message should still be sent, got %+v", pub.messages)
	}
}

func TestRun_MalformedEventSkipped(t *testing.T) {
	cfg := newConfig(t, false)
	now := sunday(t, cfg)
	src := fakeSource{events: []model.Event{
		{Name: "No Date"},
		{Name: "Game Night", Start: now.AddDate(0, 0, 7)},
	}}
	pub := &recordingPublisher{}

	report := Run(context.Background(), schedule.NewRunContext(now, false, cfg), src, pub)

	if report.Skipped != 1 || len(pub.messages) != 1 {
		t.Errorf("expected malformed event skipped and the other sent, report %+v", report)
	}
}

type countingClient struct{ calls int }

func (c *countingClient) Do(*http.Request) (*http.Response, error) {
	c.calls++
	return nil, errors.New("unexpected call")
}

func TestRun_DryRunMakesNoCalls(t *testing.T) {
	cfg := newConfig(t, true, model.Rule{Pattern: "Game", Reminder: true})
	now := sunday(t, cfg)
	src := fakeSource{events: []model.Event{
		{Name: "Game Night", Start: now.Add(8 * time.Hour), HasTime: true},
		{Name: "Game Night", Start: now.AddDate(0, 0, 7), HasTime: true},
	}}
	client := &countingClient{}
	rc := schedule.NewRunContext(now, true, cfg)

	report := Run(context.Background(), rc, src, discord.NewPublisher(client, rc.DryRun))

	if client.calls != 0 {
		t.Errorf("dry run made %d outbound calls", client.calls)
	}
	if report.Sent != 3 || !report.DigestSent {
		t.Errorf("expected weekly, reminder and digest to be logged, got %+v", report)
	}
}
