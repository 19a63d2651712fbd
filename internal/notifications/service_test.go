package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vikisync/internal/config"
	"vikisync/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySyncCompleted(context.Background(), 3, 12, time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title    string
		tags     string
		priority string
		body     string
	}
	var last captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		last = captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Sync = true
	cfg.Notifications.Matching = true
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyShowMatched(context.Background(), "Ms. Incognito", "exact_trakt", 1.0); err != nil {
		t.Fatalf("NotifyShowMatched failed: %v", err)
	}
	if last.title != "Vikisync - Show Matched" {
		t.Fatalf("unexpected title %q", last.title)
	}
	if last.body != "Matched: Ms. Incognito (via exact_trakt, confidence 1.00)" {
		t.Fatalf("unexpected body %q", last.body)
	}
	if last.tags != "vikisync,match,completed" {
		t.Fatalf("unexpected tags %q", last.tags)
	}

	if err := svc.NotifyError(context.Background(), errors.New("boom"), "sync"); err != nil {
		t.Fatalf("NotifyError failed: %v", err)
	}
	if last.priority != "high" {
		t.Fatalf("errors should be high priority, got %q", last.priority)
	}
	if last.body != "Error with sync: boom" {
		t.Fatalf("unexpected error body %q", last.body)
	}
}

func TestEventClassesAreToggleable(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Sync = false
	cfg.Notifications.Matching = false
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifySyncStarted(context.Background(), true); err != nil {
		t.Fatalf("NotifySyncStarted failed: %v", err)
	}
	if err := svc.NotifyShowUnmatched(context.Background(), "X"); err != nil {
		t.Fatalf("NotifyShowUnmatched failed: %v", err)
	}
	if calls != 0 {
		t.Fatalf("disabled event classes must not publish, got %d calls", calls)
	}

	if err := svc.NotifyError(context.Background(), errors.New("boom"), ""); err != nil {
		t.Fatalf("NotifyError failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("enabled class should publish, got %d calls", calls)
	}
}
