package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"racefeed/internal/queue"
)

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, tables)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				resp, checkErr := store.CheckHealth(cmd.Context())
				if ctx.JSONMode() {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
					return checkErr
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", resp.SchemaVersion)
				if len(resp.TablesPresent) > 0 {
					fmt.Fprintf(out, "Tables: %s\n", strings.Join(resp.TablesPresent, ", "))
				}
				if len(resp.MissingTables) > 0 {
					fmt.Fprintf(out, "Missing tables: %s\n", strings.Join(resp.MissingTables, ", "))
				} else {
					fmt.Fprintln(out, "Missing tables: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(out, "Total events: %d\n", resp.TotalEvents)
				fmt.Fprintf(out, "Running attempts: %d\n", resp.RunningAttempts)
				if resp.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", resp.Error)
				}
				return checkErr
			})
		},
	}
}
