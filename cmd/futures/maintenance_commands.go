package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"futures/internal/ipc"
	"futures/internal/workitem"
)

func newMaintenanceCommand(ctx *commandContext) *cobra.Command {
	maintenanceCmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run scheduled maintenance jobs on demand",
	}

	maintenanceCmd.AddCommand(&cobra.Command{
		Use:   "reclaim",
		Short: "Release leases whose heartbeat has expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReclaimStale()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d item(s)\n", resp.Affected)
				return nil
			})
		},
	})

	var olderThan int
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed items past the retention window",
		Long: "Purge deletes completed items older than the configured retention. With --days it runs " +
			"directly against the database using that window instead, so it also works while the daemon is down.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan > 0 {
				return ctx.withStore(func(store *workitem.Store) error {
					cutoff := time.Now().Add(-time.Duration(olderThan) * 24 * time.Hour)
					n, err := store.PurgeCompleted(cmd.Context(), cutoff)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Purged %d item(s)\n", n)
					return nil
				})
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PurgeCompleted()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d item(s)\n", resp.Affected)
				return nil
			})
		},
	}
	purgeCmd.Flags().IntVar(&olderThan, "days", 0, "Purge completed items older than this many days")
	maintenanceCmd.AddCommand(purgeCmd)

	return maintenanceCmd
}
