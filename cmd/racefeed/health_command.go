package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"racefeed/internal/daemonrun"
	"racefeed/internal/notifications"
	"racefeed/internal/preflight"
	"racefeed/internal/stage"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check directories, stores and platform pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg, online)

			rt, err := daemonrun.Bootstrap(cfg, nil, daemonrun.BootstrapOptions{Notifier: notifications.NewService(nil)})
			if err != nil {
				checks = append(checks, preflight.Result{Name: "Runtime", Detail: err.Error()})
			} else {
				defer rt.Close()
				checks = append(checks, pipelineChecks(cmd.Context(), rt)...)
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, checks)
			}
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(checks))
			for _, c := range checks {
				state := "ok"
				if !c.Passed {
					state = "error"
				}
				rows = append(rows, []string{c.Name, statusColor(out, state), c.Detail})
			}
			fmt.Fprint(out, renderTable(out, []string{"Check", "State", "Detail"}, rows, nil))
			if failed := preflight.Failed(checks); len(failed) > 0 {
				return fmt.Errorf("%d health check(s) failed", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&online, "online", false, "Also contact every enabled platform")
	return cmd
}

func pipelineChecks(ctx context.Context, rt *daemonrun.Runtime) []preflight.Result {
	status := rt.Manager.Status(ctx)
	ids := make([]string, 0, len(status.PlatformHealth))
	for id := range status.PlatformHealth {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]preflight.Result, 0, len(ids)+1)
	if _, err := rt.Queue.CheckHealth(ctx); err != nil {
		results = append(results, preflight.Result{Name: "Queue database", Detail: err.Error()})
	} else {
		results = append(results, preflight.Result{Name: "Queue database", Passed: true, Detail: rt.Config.QueueDBPath()})
	}
	for _, id := range ids {
		results = append(results, healthResult(status.PlatformHealth[id]))
	}
	return results
}

func healthResult(h stage.Health) preflight.Result {
	detail := h.Detail
	if detail == "" {
		detail = "ready"
	}
	return preflight.Result{Name: "Pipeline " + h.Name, Passed: h.Ready, Detail: detail}
}
