package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"racefeed/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		filter  logs.Filter
		level   string
		lines   int
		follow  bool
		attempt bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon or attempt log records",
		Long: "Prints the newest daemon log, filtered by platform, scraped event or correlation id.\n" +
			"With --attempt and --event, reads that event's newest attempt log instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if level != "" {
				if err := filter.MinLevel.UnmarshalText([]byte(level)); err != nil {
					return fmt.Errorf("--level: %w", err)
				}
			}

			path, err := logs.DaemonLog(cfg.Paths.LogDir)
			if attempt {
				if filter.ScrapedEventID == 0 {
					return errors.New("--attempt requires --event")
				}
				event, lookupErr := lookupEvent(cmd, ctx, filter.ScrapedEventID)
				if lookupErr != nil {
					return lookupErr
				}
				var paths []string
				paths, err = logs.AttemptLogs(cfg.Paths.LogDir, event.Platform, event.ID)
				path = ""
				if len(paths) > 0 {
					path = paths[len(paths)-1]
				}
			}
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No log file found")
				return nil
			}
			return printLog(cmd.Context(), cmd.OutOrStdout(), path, filter, lines, follow)
		},
	}

	cmd.Flags().StringVarP(&filter.Platform, "platform", "p", "", "Only records of this platform")
	cmd.Flags().Int64Var(&filter.ScrapedEventID, "event", 0, "Only records of this scraped event id")
	cmd.Flags().StringVar(&filter.CorrelationID, "correlation", "", "Only records whose correlation id starts with this")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of records to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records")
	cmd.Flags().BoolVar(&attempt, "attempt", false, "Read the event's attempt log")
	return cmd
}

func printLog(ctx context.Context, out io.Writer, path string, filter logs.Filter, limit int, follow bool) error {
	emit := func(lines []string) {
		for _, line := range lines {
			if rec, ok := logs.ParseRecord(line); ok {
				fmt.Fprintln(out, colorLevel(out, rec.Level, logs.Format(rec)))
			} else {
				fmt.Fprintln(out, line)
			}
		}
	}

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: limit, Match: filter.Match})
	if err != nil {
		return err
	}
	emit(result.Lines)

	for follow {
		result, err = logs.Tail(ctx, path, logs.TailOptions{
			Offset: result.Offset,
			Follow: true,
			Wait:   5 * time.Second,
			Match:  filter.Match,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		emit(result.Lines)
	}
	return nil
}

func colorLevel(out io.Writer, level slog.Level, line string) string {
	if !isTerminal(out) {
		return line
	}
	switch {
	case level >= slog.LevelError:
		return text.FgRed.Sprint(line)
	case level >= slog.LevelWarn:
		return text.FgYellow.Sprint(line)
	default:
		return line
	}
}
