package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"racefeed/internal/daemonrun"
	"racefeed/internal/fileutil"
	"racefeed/internal/logging"
	"racefeed/internal/queue"
	"racefeed/internal/stageexec"
	"racefeed/internal/textutil"
	"racefeed/internal/workflow"
)

func newRunOnceCommand(ctx *commandContext) *cobra.Command {
	var platforms []string
	var eventID int64
	var formDir string

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run one scheduling pass per platform and exit",
		Long: "Runs the oldest eligible event of each platform (or of --platform) once.\n" +
			"With --event, runs that scraped event regardless of the settling window.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg, "racefeed-run-once.log")
			if err != nil {
				return err
			}

			opts := daemonrun.BootstrapOptions{Platforms: platforms, AttemptLogs: true}
			if eventID > 0 {
				event, err := lookupEvent(cmd, ctx, eventID)
				if err != nil {
					return err
				}
				opts.Platforms = []string{event.Platform}
			}
			rt, err := daemonrun.Bootstrap(cfg, logger, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			if eventID > 0 {
				result, err := rt.Manager.RunEvent(cmd.Context(), eventID)
				printRunResult(out, fmt.Sprintf("event %d", eventID), result, err)
				if writeErr := writeForm(out, formDir, result); writeErr != nil && err == nil {
					err = writeErr
				}
				return err
			}

			var failed []error
			for _, platform := range rt.Manager.Platforms() {
				result, err := rt.Manager.RunOnce(cmd.Context(), platform)
				printRunResult(out, platform, result, err)
				if writeErr := writeForm(out, formDir, result); writeErr != nil {
					failed = append(failed, fmt.Errorf("%s: %w", platform, writeErr))
				}
				if err != nil && !errors.Is(err, workflow.ErrPlatformLocked) && !errors.Is(err, queue.ErrPlatformBusy) {
					failed = append(failed, fmt.Errorf("%s: %w", platform, err))
				}
			}
			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringSliceVarP(&platforms, "platform", "p", nil, "Restrict the pass to these platforms (repeatable)")
	cmd.Flags().Int64Var(&eventID, "event", 0, "Run this scraped event id")
	cmd.Flags().StringVar(&formDir, "form-out", "", "Write the Standard Form of each successful run to this directory")
	return cmd
}

func lookupEvent(cmd *cobra.Command, ctx *commandContext, id int64) (*queue.ScrapedEvent, error) {
	var event *queue.ScrapedEvent
	err := ctx.withStore(func(store *queue.Store) error {
		found, err := store.GetByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		if found == nil {
			return fmt.Errorf("scraped event %d not found", id)
		}
		event = found
		return nil
	})
	return event, err
}

func printRunResult(out io.Writer, label string, result *stageexec.Result, err error) {
	switch {
	case result == nil && err == nil:
		fmt.Fprintf(out, "%s: nothing eligible\n", label)
	case result == nil:
		fmt.Fprintf(out, "%s: skipped (%v)\n", label, err)
	default:
		line := fmt.Sprintf("%s: attempt %d on event %d finished %s", label, result.Attempt.ID, result.Attempt.ScrapedEventID, result.Outcome)
		if result.Reaped {
			line += " (reaped)"
		}
		if s := result.Summary; result.Outcome == queue.OutcomeSuccess {
			line += fmt.Sprintf("; canonical event %d, %d races, %d results inserted", s.CanonicalEventID, s.Load.Races, s.Load.Inserted)
			if len(s.Warnings) > 0 {
				line += fmt.Sprintf(", %d warnings", len(s.Warnings))
			}
		} else if err != nil {
			line += ": " + strings.TrimSpace(err.Error())
		}
		fmt.Fprintln(out, line)
	}
}

// writeForm saves the final Standard Form of a successful run as
// <platform>-<event>.json under dir.
func writeForm(out io.Writer, dir string, result *stageexec.Result) error {
	if dir == "" || result == nil || result.Outcome != queue.OutcomeSuccess || result.Summary.Form == nil {
		return nil
	}
	form := result.Summary.Form
	data, err := form.Encode()
	if err != nil {
		return fmt.Errorf("encode standard form: %w", err)
	}
	name := textutil.FileToken(form.Platform) + "-" + textutil.KeyToken(form.Event.PlatformID) + ".json"
	path := filepath.Join(dir, name)
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write standard form: %w", err)
	}
	fmt.Fprintf(out, "  form written to %s\n", path)
	return nil
}
