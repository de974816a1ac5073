// Package format renders notification text for Discord.
package format

import (
	"fmt"
	"strings"

	"meetupnotify/internal/model"
)

const (
	// DigestHeader opens the weekly digest message.
	DigestHeader = "Upcoming Events This Week:"

	// MaxMessageLen is Discord's content limit for a single webhook post.
	MaxMessageLen = 2000

	timeLayout = "3:04 PM"
)

// WeeklyNotice renders the advance "save the date" message. Feed events
// carry exact start times, so their notice also names the date and time.
func WeeklyNotice(ev model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Don't forget to sign up for %s on %s", ev.Name, ev.Start.Weekday())
	if ev.Source == model.KindFeed && ev.HasTime {
		fmt.Fprintf(&b, ", %s %d at %s", ev.Start.Month(), ev.Start.Day(), ev.Start.Format(timeLayout))
	}
	b.WriteString(".")
	if ev.URL != "" {
		fmt.Fprintf(&b, " RSVP here: <%s>", ev.URL)
	}
	return b.String()
}

// Reminder renders the same-day message. The time and attendance clauses
// are dropped when the source did not supply them.
func Reminder(ev model.Event) string {
	var b strings.Builder
	b.WriteString("Join us today")
	if ev.HasTime {
		fmt.Fprintf(&b, " at %s", ev.Start.Format(timeLayout))
	}
	fmt.Fprintf(&b, " for %s.", ev.Name)
	if ev.RSVPCount != nil {
		fmt.Fprintf(&b, " %d people attending so far!", *ev.RSVPCount)
	}
	if ev.URL != "" {
		fmt.Fprintf(&b, " Sign up: <%s>", ev.URL)
	}
	return b.String()
}

// Digest joins weekly notice lines under DigestHeader.
func Digest(lines []string) string {
	return DigestHeader + "\n" + strings.Join(lines, "\n")
}

// Split breaks text into chunks no longer than limit runes, cutting on line
// boundaries where possible. A single line longer than limit is hard-split.
func Split(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    []rune
	)
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, string(cur))
			cur = cur[:0]
		}
	}

	for i, line := range strings.Split(text, "\n") {
		r := []rune(line)
		sep := 0
		if i > 0 && len(cur) > 0 {
			sep = 1
		}
		if len(cur)+sep+len(r) <= limit {
			if sep == 1 {
				cur = append(cur, '\n')
			}
			cur = append(cur, r...)
			continue
		}
		flush()
		for len(r) > limit {
			chunks = append(chunks, string(r[:limit]))
			r = r[limit:]
		}
		cur = append(cur, r...)
	}
	flush()

	return chunks
}
