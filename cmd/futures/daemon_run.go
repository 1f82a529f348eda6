package main

import (
	"github.com/spf13/cobra"

	"futures/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var paused bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the futures daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel, Paused: paused})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&paused, "paused", false, "Accept control requests but do not process items until started")
	return cmd
}
