package logs_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"racefeed/internal/logs"
)

const sampleLog = `{"time":"2025-03-01T12:00:00Z","level":"INFO","msg":"attempt started","component":"scheduler","platform":"athlinks","scraped_event_id":12,"correlation_id":"0f8e2c1a-aaaa"}
{"time":"2025-03-01T12:00:01Z","level":"WARN","msg":"runner merged","platform":"athlinks","scraped_event_id":12,"correlation_id":"0f8e2c1a-aaaa","event_type":"runner_merge"}
{"time":"2025-03-01T12:00:02Z","level":"INFO","msg":"attempt started","platform":"trackshack","scraped_event_id":7,"correlation_id":"77aa"}
not json
`

func TestParseRecord(t *testing.T) {
	line := strings.Split(sampleLog, "\n")[1]
	rec, ok := logs.ParseRecord(line)
	if !ok {
		t.Fatal("expected JSON line to parse")
	}
	if rec.Level != slog.LevelWarn || rec.Message != "runner merged" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.String("scraped_event_id") != "12" {
		t.Fatalf("expected integer rendering, got %q", rec.String("scraped_event_id"))
	}
	formatted := logs.Format(rec)
	if !strings.Contains(formatted, "WARN  runner merged") || !strings.Contains(formatted, "event_type=runner_merge") {
		t.Fatalf("unexpected formatting: %q", formatted)
	}
	if _, ok := logs.ParseRecord("not json"); ok {
		t.Fatal("expected plain text to be rejected")
	}
}

func TestFilterSelectsOneAttempt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "racefeed-1.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	cases := []struct {
		name   string
		filter logs.Filter
		want   int
	}{
		{"empty keeps everything", logs.Filter{}, 4},
		{"by event", logs.Filter{ScrapedEventID: 12}, 2},
		{"by correlation prefix", logs.Filter{CorrelationID: "0f8e"}, 2},
		{"by platform", logs.Filter{Platform: "TrackShack"}, 1},
		{"by level", logs.Filter{MinLevel: slog.LevelWarn}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, Match: tc.filter.Match})
			if err != nil {
				t.Fatalf("Tail: %v", err)
			}
			if len(res.Lines) != tc.want {
				t.Fatalf("expected %d lines, got %d: %v", tc.want, len(res.Lines), res.Lines)
			}
		})
	}
}

func TestAttemptLogsMatchesEventID(t *testing.T) {
	logDir := t.TempDir()
	dir := filepath.Join(logDir, "attempts", "athlinks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{
		"20250301T120000-12-e-1-0f8e2c1a.log",
		"20250302T120000-12-e-1-1a2b3c4d.log",
		"20250301T130000-120-x-99887766.log",
		"20250301T140000-7-12-aabbccdd.log",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	paths, err := logs.AttemptLogs(logDir, "athlinks", 12)
	if err != nil {
		t.Fatalf("AttemptLogs: %v", err)
	}
	if len(paths) != 2 || !strings.HasSuffix(paths[1], "20250302T120000-12-e-1-1a2b3c4d.log") {
		t.Fatalf("unexpected attempt logs: %v", paths)
	}

	none, err := logs.AttemptLogs(logDir, "mikatiming", 12)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no logs for other platform, got %v (%v)", none, err)
	}
}

func TestDaemonLogPicksNewest(t *testing.T) {
	dir := t.TempDir()
	if got, err := logs.DaemonLog(dir); err != nil || got != "" {
		t.Fatalf("expected no daemon log, got %q (%v)", got, err)
	}
	older := filepath.Join(dir, "racefeed-20250301T000000.000Z.log")
	newer := filepath.Join(dir, "racefeed-20250302T000000.000Z.log")
	for _, p := range []string{older, newer} {
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	past := mustTime(t, "2025-03-01T00:00:00Z")
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	got, err := logs.DaemonLog(dir)
	if err != nil || got != newer {
		t.Fatalf("expected %s, got %q (%v)", newer, got, err)
	}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return parsed
}
