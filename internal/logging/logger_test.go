package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"racefeed/internal/logging"
	"racefeed/internal/services"
)

func TestConsoleLoggerRendersComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "scheduler")
	logger.Debug("hidden")
	logger.Info("attempt started", logging.String("platform", "athlinks"), logging.String("note", "two words"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[scheduler] attempt started") {
		t.Fatalf("expected component prefix, got %q", out)
	}
	if !strings.Contains(out, "platform=athlinks") || !strings.Contains(out, `note="two words"`) {
		t.Fatalf("expected formatted fields, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestFileFanoutWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "racefeed.log")
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", Output: &buf, FilePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Warn("slow platform", logging.Int("status", 429))

	if !strings.Contains(buf.String(), "slow platform") {
		t.Fatalf("expected console output, got %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log file should hold JSON: %v (%q)", err, data)
	}
	if record["msg"] != "slow platform" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestWithContextAddsQueueFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithPlatform(context.Background(), "mikatiming")
	ctx = services.WithScrapedEventID(ctx, 42)
	logging.WithContext(ctx, logger).Info("hello")

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldPlatform] != "mikatiming" {
		t.Fatalf("expected platform field, got %v", record)
	}
	if record[logging.FieldScrapedEventID] != float64(42) {
		t.Fatalf("expected scraped event id field, got %v", record)
	}
}

func TestFailureCarriesErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	failure := services.Wrap(services.KindRetryDelayed, "athlinks", "fetch results", "HTTP 429", nil)
	failure.URL = "https://results.example.com/event/1?page=2"
	logger.Warn("attempt interrupted", logging.Args(logging.Failure(failure)...)...)

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldErrorKind] != string(services.KindRetryDelayed) {
		t.Fatalf("missing error kind: %v", record)
	}
	if record[logging.FieldErrorOperation] != "fetch results" {
		t.Fatalf("missing operation: %v", record)
	}
	if record[logging.FieldErrorURL] != failure.URL {
		t.Fatalf("missing url: %v", record)
	}
	if record["error"] == nil {
		t.Fatalf("missing error: %v", record)
	}
}

func TestFailureOfPlainErrorIsFatal(t *testing.T) {
	attrs := logging.Failure(errors.New("boom"))
	if len(attrs) != 2 || attrs[0].Value.String() != string(services.KindFatal) {
		t.Fatalf("unexpected attrs: %v", attrs)
	}
}
