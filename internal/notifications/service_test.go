package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"racefeed/internal/config"
	"racefeed/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventFatal, notifications.Payload{"platform": "athlinks"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	notBefore := time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "fatal",
			event: notifications.EventFatal,
			payload: notifications.Payload{
				"platform":       "mikatiming",
				"scrapedEventID": int64(12),
				"url":            "https://results.example.com/2026/",
				"error":          "fatal: unknown distance \"ultra\"",
			},
			expectTitle:    "racefeed - Fatal error",
			expectMessage:  "Scraped event 12 on mikatiming failed\nURL: https://results.example.com/2026/\nfatal: unknown distance \"ultra\"",
			expectTags:     "racefeed,error,mikatiming",
			expectPriority: "high",
		},
		{
			name:  "delayed retry",
			event: notifications.EventDelayedRetry,
			payload: notifications.Payload{
				"platform":       "athlinks",
				"scrapedEventID": int64(3),
				"notBefore":      notBefore,
				"error":          "HTTP 429",
			},
			expectTitle:   "racefeed - Throttled",
			expectMessage: "Scraped event 3 on athlinks throttled; next attempt after 2026-05-01T13:00:00Z\nHTTP 429",
			expectTags:    "racefeed,throttle,athlinks",
		},
		{
			name:  "reaper",
			event: notifications.EventReaperKill,
			payload: notifications.Payload{"platform": "trackshack", "attempts": []notifications.KilledAttempt{
				{AttemptID: 7, ScrapedEventID: 3, EventID: "cap10k-2019", URL: "https://www.trackshackresults.com/cap10k-2019"},
				{AttemptID: 9, ScrapedEventID: 5},
			}},
			expectTitle: "racefeed - Attempt killed",
			expectMessage: "Killed 2 attempt(s) on trackshack as running too long\n" +
				"attempt 7, scraped event 3 (cap10k-2019): https://www.trackshackresults.com/cap10k-2019\n" +
				"attempt 9, scraped event 5",
			expectTags:     "racefeed,reaper,trackshack",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DelayedRetry = false
	cfg.Notifications.Reaper = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventDelayedRetry, notifications.EventReaperKill, notifications.Event("unknown")} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"platform": "athlinks"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic gone", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
