package services

import "context"

type contextKey string

const (
	platformKey       contextKey = "platform"
	scrapedEventIDKey contextKey = "scraped_event_id"
	attemptIDKey      contextKey = "attempt_id"
	stepKey           contextKey = "step"
	requestIDKey      contextKey = "request_id"
)

// WithPlatform annotates context with the timing platform identifier.
func WithPlatform(ctx context.Context, platform string) context.Context {
	if platform == "" {
		return ctx
	}
	return context.WithValue(ctx, platformKey, platform)
}

// PlatformFromContext returns the platform identifier if present.
func PlatformFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(platformKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithScrapedEventID annotates context with the queue row identifier.
func WithScrapedEventID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, scrapedEventIDKey, id)
}

// ScrapedEventIDFromContext extracts the queue row identifier if present.
func ScrapedEventIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx.Value(scrapedEventIDKey))
}

// WithAttemptID annotates context with the download attempt identifier.
func WithAttemptID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, attemptIDKey, id)
}

// AttemptIDFromContext extracts the download attempt identifier if present.
func AttemptIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx.Value(attemptIDKey))
}

// WithStep annotates context with the adapter pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the pipeline step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func int64Value(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
