package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"racefeed/internal/distance"
)

func newDistanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "distance <text>",
		Short:       "Show how a platform distance label normalizes",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			d, err := distance.Parse(raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q -> %d m (%s)\n", raw, d.Length, d.Name)
			return nil
		},
	}
}
