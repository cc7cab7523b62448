package logging

import (
	"context"
	"log/slog"
	"time"

	"racefeed/internal/services"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Time(key string, value time.Time) Attr { return slog.Time(key, value) }

func Alert(value string) Attr { return slog.String(FieldAlert, value) }

func EventType(value string) Attr { return slog.String(FieldEventType, value) }

func Impact(value string) Attr { return slog.String(FieldImpact, value) }

func Hint(value string) Attr { return slog.String(FieldErrorHint, value) }

func Platform(name string) Attr { return slog.String(FieldPlatform, name) }

func AttemptID(id int64) Attr { return slog.Int64(FieldAttemptID, id) }

func ScrapedEventID(id int64) Attr { return slog.Int64(FieldScrapedEventID, id) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Failure describes a pipeline error: its services.Kind plus the failing
// operation and URL when the error carries them.
func Failure(err error) []Attr {
	details := services.Details(err)
	if details == nil {
		return []Attr{Error(err)}
	}
	attrs := []Attr{slog.String(FieldErrorKind, string(details.Kind))}
	if details.Operation != "" {
		attrs = append(attrs, slog.String(FieldErrorOperation, details.Operation))
	}
	if details.URL != "" {
		attrs = append(attrs, slog.String(FieldErrorURL, details.URL))
	}
	return append(attrs, Error(err))
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func Args(attrs ...Attr) []any {
	return attrsToArgs(attrs)
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component name. A nil logger yields
// a no-op one.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
