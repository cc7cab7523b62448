// Package stageexec runs a single attempt of a scraped event and applies the
// resulting queue transition. The scheduler lanes and the run-once command
// share it.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"racefeed/internal/adapter"
	"racefeed/internal/logging"
	"racefeed/internal/notifications"
	"racefeed/internal/queue"
	"racefeed/internal/services"
	"racefeed/internal/stage"
)

// Processor is what an attempt needs from a platform pipeline.
type Processor interface {
	Platform() string
	Process(ctx context.Context, event *queue.ScrapedEvent, deadline time.Time) (adapter.Summary, error)
	HealthCheck(ctx context.Context) stage.Health
}

// Options controls attempt execution and queue persistence behavior.
type Options struct {
	Logger        *slog.Logger
	Store         *queue.Store
	Notifier      notifications.Service
	Processor     Processor
	Event         *queue.ScrapedEvent
	CorrelationID string
	// Timeout is the attempt's wall-clock budget.
	Timeout time.Duration
	// DelayedRetry is the wait applied to throttled attempts.
	DelayedRetry time.Duration
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// Result describes a finished attempt.
type Result struct {
	Attempt *queue.Attempt
	Summary adapter.Summary
	Outcome queue.Outcome
	// Reaped is set when the reaper closed the attempt before it finished.
	Reaped bool
}

// Run starts an attempt for opts.Event, drives the pipeline and records the
// outcome. It returns the pipeline error, if any, after the queue has been
// updated. StartAttempt failures (queue.ErrPlatformBusy, queue.ErrNotEligible)
// are returned before anything runs.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Processor == nil {
		return Result{}, errors.New("pipeline is required")
	}
	if opts.Store == nil {
		return Result{}, errors.New("queue store is required")
	}
	if opts.Event == nil {
		return Result{}, errors.New("scraped event is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	event := opts.Event

	ctx = services.WithPlatform(ctx, event.Platform)
	ctx = services.WithScrapedEventID(ctx, event.ID)
	if opts.CorrelationID != "" {
		ctx = services.WithRequestID(ctx, opts.CorrelationID)
	}

	attempt, err := opts.Store.StartAttempt(ctx, event.ID, opts.CorrelationID)
	if err != nil {
		return Result{}, err
	}
	ctx = services.WithAttemptID(ctx, attempt.ID)
	attemptLogger := logging.WithContext(ctx, logger)

	started := now()
	deadline := started.Add(opts.Timeout)
	attemptLogger.Info(
		"attempt started",
		logging.EventType("attempt_start"),
		logging.String("event_id", event.EventID),
		logging.String("url", strings.TrimSpace(event.URL)),
		logging.Time("deadline", deadline),
	)

	summary, procErr := opts.Processor.Process(ctx, event, deadline)
	result := Result{Attempt: attempt, Summary: summary}

	// the attempt must be closed even when shutdown cancelled the run
	finishCtx := context.WithoutCancel(ctx)
	if procErr == nil {
		result.Outcome = queue.OutcomeSuccess
		err := opts.Store.FinishAttempt(finishCtx, attempt.ID, queue.FinishParams{
			Outcome:     queue.OutcomeSuccess,
			EventStatus: queue.StatusSuccess,
		})
		if errors.Is(err, queue.ErrAttemptFinished) {
			result.Reaped = true
			attemptLogger.Warn("attempt finished by reaper before it completed; results are loaded",
				logging.EventType("attempt_reaped"),
				logging.Impact("event will be scraped again"),
			)
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("persist attempt success: %w", err)
		}
		if summary.CanonicalEventID != 0 && summary.CanonicalEventID != event.CanonicalEventID {
			if err := opts.Store.SetCanonicalEvent(finishCtx, event.ID, summary.CanonicalEventID); err != nil {
				attemptLogger.Warn("canonical event link not saved",
					logging.Error(err),
					logging.EventType("canonical_link_failed"),
					logging.Impact("next scrape resolves the event by series and date"),
				)
			}
		}
		attemptLogger.Info(
			"attempt completed",
			logging.EventType("attempt_complete"),
			logging.Int64("canonical_event_id", summary.CanonicalEventID),
			logging.Int("races", summary.Stats.Races),
			logging.Int("results", summary.Stats.Results),
			logging.Int("inserted", summary.Load.Inserted),
			logging.Int("relinked", summary.Load.Relinked),
			logging.Int("warnings", len(summary.Warnings)),
			logging.Bool("resumed", summary.Resumed),
			logging.Duration("duration", now().Sub(started)),
		)
		return result, nil
	}

	return handleFailure(finishCtx, attemptLogger, opts, result, procErr, now())
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, result Result, procErr error, finished time.Time) (Result, error) {
	details := services.Details(procErr)
	policy := services.Policy(details.Kind, opts.DelayedRetry)
	result.Outcome = outcomeFor(details.Kind)

	params := queue.FinishParams{
		Outcome:     result.Outcome,
		EventStatus: queue.Status(policy.EventStatus),
		Message:     procErr.Error(),
	}
	if policy.NotBefore > 0 {
		notBefore := finished.Add(policy.NotBefore)
		params.NotBefore = &notBefore
	}

	attrs := []logging.Attr{
		logging.EventType("attempt_failure"),
		logging.String("resolved_status", policy.EventStatus),
		logging.Int("processed", result.Summary.Processed),
	}
	attrs = append(attrs, logging.Failure(procErr)...)
	if params.NotBefore != nil {
		attrs = append(attrs, logging.Time("not_before", *params.NotBefore))
	}
	if details.Kind == services.KindFatal {
		attrs = append(attrs, logging.Alert("attempt_fatal"), logging.Hint("inspect the platform page; allow-list known bad data"))
		logger.Error("attempt failed", logging.Args(attrs...)...)
	} else {
		logger.Warn("attempt interrupted", logging.Args(attrs...)...)
	}

	if err := opts.Store.FinishAttempt(ctx, result.Attempt.ID, params); err != nil {
		if errors.Is(err, queue.ErrAttemptFinished) {
			result.Reaped = true
			logger.Warn("attempt already finished by reaper; outcome dropped",
				logging.EventType("attempt_reaped"),
				logging.Impact("the reaper's not_started transition stands"),
			)
			return result, procErr
		}
		logger.Error("failed to persist attempt failure", logging.Error(err))
		return result, errors.Join(procErr, err)
	}

	if policy.Alert && opts.Notifier != nil {
		event := notifications.EventFatal
		payload := notifications.Payload{
			"platform":       opts.Event.Platform,
			"scrapedEventID": opts.Event.ID,
			"url":            opts.Event.URL,
			"error":          procErr,
		}
		if details.Kind == services.KindRetryDelayed {
			event = notifications.EventDelayedRetry
			if params.NotBefore != nil {
				payload["notBefore"] = *params.NotBefore
			}
		}
		if err := opts.Notifier.Publish(ctx, event, payload); err != nil {
			logger.Debug("attempt notification failed", logging.Error(err))
		}
	}
	return result, procErr
}

func outcomeFor(kind services.Kind) queue.Outcome {
	switch kind {
	case services.KindRetry:
		return queue.OutcomeRetry
	case services.KindRetryDelayed:
		return queue.OutcomeRetryDelayed
	case services.KindTimeout:
		return queue.OutcomeTimeout
	default:
		return queue.OutcomeFatal
	}
}
