package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"racefeed/internal/results"
)

var auditedTables = []string{"events", "races", "runners", "results"}

func newChangesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "changes <table> <id>",
		Short: "Show the audit trail of a canonical row",
		Long:  "Show every recorded change of one row in the results database. Tables: " + strings.Join(auditedTables, ", ") + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := strings.ToLower(strings.TrimSpace(args[0]))
			if !slices.Contains(auditedTables, table) {
				return fmt.Errorf("unknown table %q (want one of %s)", args[0], strings.Join(auditedTables, ", "))
			}
			id, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid row id %q", args[1])
			}
			return ctx.withResults(func(store *results.Store) error {
				var changes []results.Change
				err := store.View(cmd.Context(), func(tx *results.Tx) error {
					var err error
					changes, err = tx.Changes(table, id)
					return err
				})
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if changes == nil {
						changes = []results.Change{}
					}
					return writeJSON(cmd, changes)
				}
				out := cmd.OutOrStdout()
				if len(changes) == 0 {
					fmt.Fprintf(out, "No changes recorded for %s %d\n", table, id)
					return nil
				}
				rows := make([][]string, 0, len(changes))
				for _, c := range changes {
					rows = append(rows, []string{
						c.At.Local().Format("2006-01-02 15:04:05"),
						c.Actor,
						c.Field,
						truncate(c.OldValue, 40),
						truncate(c.NewValue, 40),
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"At", "Actor", "Field", "Old", "New"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
