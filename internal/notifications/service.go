package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vikisync/internal/config"
)

const userAgent = "vikisync/0.1.0"

// Service defines the notification surface exposed to the sync workflow.
type Service interface {
	NotifySyncStarted(ctx context.Context, incremental bool) error
	NotifySyncCompleted(ctx context.Context, shows, episodes int, duration time.Duration) error
	NotifyShowMatched(ctx context.Context, title, method string, confidence float64) error
	NotifyShowUnmatched(ctx context.Context, title string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		syncEvents:  cfg.Notifications.Sync,
		matchEvents: cfg.Notifications.Matching,
		errorEvents: cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	syncEvents  bool
	matchEvents bool
	errorEvents bool
}

func (n *ntfyService) NotifySyncStarted(ctx context.Context, incremental bool) error {
	if !n.syncEvents {
		return nil
	}
	mode := "full history"
	if incremental {
		mode = "incremental"
	}
	data := payload{
		title:   "Vikisync - Sync Started",
		message: fmt.Sprintf("Fetching watch history from Viki (%s)", mode),
		tags:    []string{"vikisync", "sync", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, shows, episodes int, duration time.Duration) error {
	if !n.syncEvents {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title:   "Vikisync - Sync Complete",
		message: fmt.Sprintf("Synced %d episodes across %d shows in %s", episodes, shows, duration),
		tags:    []string{"vikisync", "sync", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyShowMatched(ctx context.Context, title, method string, confidence float64) error {
	if !n.matchEvents {
		return nil
	}
	data := payload{
		title:   "Vikisync - Show Matched",
		message: fmt.Sprintf("Matched: %s (via %s, confidence %.2f)", strings.TrimSpace(title), method, confidence),
		tags:    []string{"vikisync", "match", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyShowUnmatched(ctx context.Context, title string) error {
	if !n.matchEvents {
		return nil
	}
	data := payload{
		title:   "Vikisync - Unmatched Show",
		message: fmt.Sprintf("Could not match: %s\nManual review required", strings.TrimSpace(title)),
		tags:    []string{"vikisync", "match", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorEvents {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Vikisync - Error",
		message:  builder.String(),
		tags:     []string{"vikisync", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Vikisync - Test",
		message:  "Notification system test",
		tags:     []string{"vikisync", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySyncStarted(context.Context, bool) error                      { return nil }
func (noopService) NotifySyncCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyShowMatched(context.Context, string, string, float64) error   { return nil }
func (noopService) NotifyShowUnmatched(context.Context, string) error                  { return nil }
func (noopService) NotifyError(context.Context, error, string) error                   { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
