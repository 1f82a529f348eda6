package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"futures/internal/api"
	"futures/internal/daemonrun"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that every work item type has a configured processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := daemonrun.BuildRegistry(ctx.configValue())
			if err != nil {
				return err
			}
			checks := registry.HealthChecks(cmd.Context())
			if ctx.jsonOutput() {
				out := make([]api.Health, 0, len(checks))
				for _, h := range checks {
					out = append(out, api.Health{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
				}
				return writeJSON(cmd, out)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Processors", colorize) {
				fmt.Fprintln(stdout, line)
			}
			unhealthy := 0
			for _, h := range checks {
				if h.Ready {
					fmt.Fprintln(stdout, renderStatusLine(humanize(h.Name), statusOK, "ready", colorize))
					continue
				}
				unhealthy++
				fmt.Fprintln(stdout, renderStatusLine(humanize(h.Name), statusError, h.Detail, colorize))
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d processor(s) not ready", unhealthy)
			}
			return nil
		},
	}
}
