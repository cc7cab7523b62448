package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"

	"racefeed/internal/config"
	"racefeed/internal/queue"
	"racefeed/internal/textutil"
)

// AttemptLogs manages dedicated JSON log files for attempts.
type AttemptLogs struct {
	baseDir string
	level   slog.Level
}

// NewAttemptLogs keeps attempt logs under the configured log directory.
func NewAttemptLogs(cfg *config.Config) *AttemptLogs {
	level := slog.LevelInfo
	if cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Logging.Level), "debug") {
		level = slog.LevelDebug
	}
	dir := ""
	if cfg != nil {
		dir = filepath.Join(cfg.Paths.LogDir, "attempts")
	}
	return &AttemptLogs{baseDir: dir, level: level}
}

// Open creates the attempt's log file and returns a logger writing to both
// base and the file. closeFn must be called when the attempt ends.
func (a *AttemptLogs) Open(base *slog.Logger, event *queue.ScrapedEvent, correlationID string) (logger *slog.Logger, closeFn func() error, path string, err error) {
	if strings.TrimSpace(a.baseDir) == "" {
		return nil, nil, "", fmt.Errorf("attempt log directory not configured")
	}
	path = filepath.Join(a.baseDir, textutil.FileToken(event.Platform), a.filename(event, correlationID))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, "", fmt.Errorf("ensure attempt log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, nil, "", fmt.Errorf("open attempt log: %w", err)
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: a.level})
	logger = slog.New(slogmulti.Fanout(base.Handler(), fileHandler))
	return logger, file.Close, path, nil
}

func (a *AttemptLogs) filename(event *queue.ScrapedEvent, correlationID string) string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	short := correlationID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%d-%s-%s.log", timestamp, event.ID, textutil.FileToken(event.EventID), textutil.FileToken(short))
}
