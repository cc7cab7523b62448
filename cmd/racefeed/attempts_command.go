package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"racefeed/internal/queue"
)

func newAttemptsCommand(ctx *commandContext) *cobra.Command {
	var platform string
	var limit int
	var running bool

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Show recent download attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				var (
					attempts []*queue.Attempt
					err      error
				)
				if running {
					attempts, err = store.RunningAttempts(cmd.Context(), platform)
				} else {
					attempts, err = store.Attempts(cmd.Context(), platform, limit)
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, attempts)
				}
				out := cmd.OutOrStdout()
				if len(attempts) == 0 {
					fmt.Fprintln(out, "No attempts recorded")
					return nil
				}
				rows := make([][]string, 0, len(attempts))
				for _, a := range attempts {
					outcome := string(a.Outcome)
					if a.Running() {
						outcome = "running"
					}
					rows = append(rows, []string{
						strconv.FormatInt(a.ID, 10),
						strconv.FormatInt(a.ScrapedEventID, 10),
						a.Platform,
						a.StartedAt.Local().Format("2006-01-02 15:04:05"),
						attemptDuration(a),
						statusColor(out, outcome),
						a.CorrelationID,
						truncate(a.ErrorMessage, 60),
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Event", "Platform", "Started", "Duration", "Outcome", "Correlation", "Error"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Filter by platform")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most this many attempts")
	cmd.Flags().BoolVar(&running, "running", false, "Only show unfinished attempts")
	return cmd
}

func attemptDuration(a *queue.Attempt) string {
	end := time.Now()
	if a.FinishedAt != nil {
		end = *a.FinishedAt
	}
	return end.Sub(a.StartedAt).Round(time.Second).String()
}
