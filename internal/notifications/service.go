package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"racefeed/internal/config"
)

const userAgent = "racefeed/0.1.0"

// Event identifies an operator alert.
type Event string

const (
	// EventFatal reports an attempt that failed with a non-retryable error.
	EventFatal Event = "fatal"
	// EventDelayedRetry reports platform throttling and the next eligible time.
	EventDelayedRetry Event = "delayed_retry"
	// EventReaperKill reports attempts force-finished for running too long.
	EventReaperKill Event = "reaper_kill"
	// EventTest is sent by the test-notify command.
	EventTest Event = "test"
)

// Payload carries the event fields rendered into the alert body.
type Payload map[string]any

// KilledAttempt identifies one reaped attempt in an EventReaperKill payload
// under the "attempts" key.
type KilledAttempt struct {
	AttemptID      int64
	ScrapedEventID int64
	EventID        string
	URL            string
}

// Service publishes operator alerts.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventFatal:        cfg.Notifications.Fatal,
			EventDelayedRetry: cfg.Notifications.DelayedRetry,
			EventReaperKill:   cfg.Notifications.Reaper,
			EventTest:         true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := render(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, data Payload) (payload, bool) {
	platform := text(data, "platform")
	switch event {
	case EventFatal:
		var b strings.Builder
		fmt.Fprintf(&b, "Scraped event %s on %s failed", text(data, "scrapedEventID"), platform)
		if url := text(data, "url"); url != "" {
			fmt.Fprintf(&b, "\nURL: %s", url)
		}
		fmt.Fprintf(&b, "\n%s", text(data, "error"))
		return payload{
			title:    "racefeed - Fatal error",
			message:  b.String(),
			tags:     []string{"racefeed", "error", platform},
			priority: "high",
		}, true
	case EventDelayedRetry:
		return payload{
			title: "racefeed - Throttled",
			message: fmt.Sprintf("Scraped event %s on %s throttled; next attempt after %s\n%s",
				text(data, "scrapedEventID"), platform, text(data, "notBefore"), text(data, "error")),
			tags: []string{"racefeed", "throttle", platform},
		}, true
	case EventReaperKill:
		var b strings.Builder
		killed, _ := data["attempts"].([]KilledAttempt)
		fmt.Fprintf(&b, "Killed %d attempt(s) on %s as running too long", len(killed), platform)
		for _, a := range killed {
			fmt.Fprintf(&b, "\nattempt %d, scraped event %d", a.AttemptID, a.ScrapedEventID)
			if a.EventID != "" {
				fmt.Fprintf(&b, " (%s)", a.EventID)
			}
			if a.URL != "" {
				fmt.Fprintf(&b, ": %s", a.URL)
			}
		}
		return payload{
			title:    "racefeed - Attempt killed",
			message:  b.String(),
			tags:     []string{"racefeed", "reaper", platform},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "racefeed - Test",
			message:  "Notification system test",
			tags:     []string{"racefeed", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func text(data Payload, key string) string {
	if data == nil {
		return ""
	}
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case error:
		return strings.TrimSpace(val.Error())
	default:
		return fmt.Sprint(val)
	}
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
	tags := make([]string, 0, len(data.tags))
	for _, tag := range data.tags {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
