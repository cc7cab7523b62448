package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"racefeed/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the scrape queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, health)
				}
				if health.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := [][]string{
					{string(queue.StatusNotStarted), strconv.Itoa(health.NotStarted)},
					{"  deferred", strconv.Itoa(health.Deferred)},
					{string(queue.StatusInProgress), strconv.Itoa(health.InProgress)},
					{string(queue.StatusSuccess), strconv.Itoa(health.Success)},
					{string(queue.StatusError), strconv.Itoa(health.Error)},
					{"total", strconv.Itoa(health.Total)},
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(out, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var platform string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scraped events",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				events, err := store.List(cmd.Context(), queue.ListFilter{
					Statuses: statuses,
					Platform: platform,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, events)
				}
				out := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(events))
				for _, e := range events {
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						e.Platform,
						e.SeriesID,
						e.EventID,
						formatDate(e.EventDate),
						statusColor(out, string(e.Status)),
						formatCanonical(e.CanonicalEventID),
						formatTimestamp(e.NotBefore),
						truncate(e.ErrorMessage, 60),
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Platform", "Series", "Event", "Date", "Status", "Canonical", "Not before", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Filter by platform")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many events")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var params queue.NewEventParams
	var date string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enqueue an event to scrape",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(date) != "" {
				parsed, err := time.Parse("2006-01-02", strings.TrimSpace(date))
				if err != nil {
					return fmt.Errorf("--date: expected YYYY-MM-DD: %w", err)
				}
				params.EventDate = &parsed
			}
			return ctx.withStore(func(store *queue.Store) error {
				event, err := store.NewEvent(cmd.Context(), params)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, event)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued scraped event %d (%s %s/%s, %s)\n",
					event.ID, event.Platform, event.SeriesID, event.EventID, event.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&params.Platform, "platform", "", "Platform id")
	cmd.Flags().StringVar(&params.URL, "url", "", "Event page URL")
	cmd.Flags().StringVar(&params.SeriesID, "series", "", "Platform series id")
	cmd.Flags().StringVar(&params.EventID, "event", "", "Platform event id")
	cmd.Flags().Int64Var(&params.CanonicalEventID, "canonical-event", 0, "Known canonical event id")
	cmd.Flags().StringVar(&date, "date", "", "Event start date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Move errored events back to not_started",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid scraped event id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(store *queue.Store) error {
				updated, err := store.RetryErrored(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if updated == 0 {
					fmt.Fprintln(out, "No errored events matched")
					return nil
				}
				fmt.Fprintf(out, "Retrying %d event(s)\n", updated)
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, errors.New("unknown status " + strconv.Quote(value))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatCanonical(id int64) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
