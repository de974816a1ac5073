package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type recorded struct {
	path     string
	threadID string
	content  string
}

func newWebhookServer(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		reqs = append(reqs, recorded{path: r.URL.Path, threadID: r.URL.Query().Get("thread_id"), content: p.Content})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestPublish(t *testing.T) {
	srv, requests := newWebhookServer(t, http.StatusNoContent)
	pub := NewPublisher(srv.Client(), false)

	if err := pub.Publish(context.Background(), srv.URL+"/api/webhooks/1/tok", "hello", "555"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := requests()
	if len(got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(got))
	}
	if got[0].path != "/api/webhooks/1/tok" || got[0].threadID != "555" || got[0].content != "hello" {
		t.Errorf("unexpected request %+v", got[0])
	}
}

func TestPublish_NoThread(t *testing.T) {
	srv, requests := newWebhookServer(t, http.StatusOK)
	pub := NewPublisher(srv.Client(), false)

	if err := pub.Publish(context.Background(), srv.URL, "hello", ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := requests(); len(got) != 1 || got[0].threadID != "" {
		t.Errorf("expected no thread_id, got %+v", got)
	}
}

func TestPublish_DryRunMakesNoCall(t *testing.T) {
	srv, requests := newWebhookServer(t, http.StatusNoContent)
	pub := NewPublisher(srv.Client(), true)

	if err := pub.Publish(context.Background(), srv.URL, "hello", "1"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := requests(); len(got) != 0 {
		t.Errorf("dry run must not post, got %d requests", len(got))
	}
}

func TestPublish_StatusError(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusBadRequest)
	pub := NewPublisher(srv.Client(), false)

	if err := pub.Publish(context.Background(), srv.URL, "hello", ""); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestPublish_SplitsLongMessages(t *testing.T) {
	srv, requests := newWebhookServer(t, http.StatusNoContent)
	pub := NewPublisher(srv.Client(), false)

	line := strings.Repeat("a", 1500)
	if err := pub.Publish(context.Background(), srv.URL, line+"\n"+line, ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := requests()
	if len(got) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(got))
	}
	for _, r := range got {
		if r.content != line {
			t.Errorf("unexpected chunk of length %d", len(r.content))
		}
	}
}
