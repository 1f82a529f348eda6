package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"futures/internal/api"
	"futures/internal/workitem"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"queue"},
		Short:   "Inspect and manage work items",
	}
	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsShowCommand(ctx))
	itemsCmd.AddCommand(newItemsStatsCommand(ctx))
	itemsCmd.AddCommand(newItemsRetryCommand(ctx))
	itemsCmd.AddCommand(newItemsTreeCommand(ctx))
	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var typeFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			var filterType workitem.Type
			if strings.TrimSpace(typeFlag) != "" {
				t, ok := workitem.ParseType(typeFlag)
				if !ok {
					return fmt.Errorf("unknown work item type %q", typeFlag)
				}
				filterType = t
			}
			return ctx.withStore(func(store *workitem.Store) error {
				items, err := api.NewItemService(store).List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if filterType != "" {
					filtered := items[:0]
					for _, item := range items {
						if item.Type == string(filterType) {
							filtered = append(filtered, item)
						}
					}
					items = filtered
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.ItemListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No work items")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Operation", "Subject", "Status", "Attempts", "Created"},
					itemListRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (created, processed, completed, failed)")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Filter by work item type")
	return cmd
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work item with its dependencies and dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *workitem.Store) error {
				resp, err := api.NewItemService(store).Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if errors.Is(err, workitem.ErrNotFound) {
					return fmt.Errorf("work item %s not found", args[0])
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderItemDetail(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func newItemsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show work item counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *workitem.Store) error {
				counts, err := api.NewItemService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.StatsResponse{Counts: counts})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, queueStatusRows(counts), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newItemsRetryCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "retry <id>...",
		Short: "Replace failed work items with fresh copies",
		Long: "Retry creates a new item with the failed item's original payload and dependencies, " +
			"re-points the failed item's dependents at it, and marks the failed item superseded. " +
			"Items whose failure is not retriable require --force.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *workitem.Store) error {
				out := cmd.OutOrStdout()
				var failed []string
				for _, id := range args {
					id = strings.TrimSpace(id)
					replacement, err := store.Retry(cmd.Context(), id, force)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
						failed = append(failed, id)
						continue
					}
					fmt.Fprintf(out, "%s replaced by %s\n", id, replacement.ID)
				}
				if len(failed) > 0 {
					return fmt.Errorf("%d of %d items not retried", len(failed), len(args))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Retry even when the failure is marked non-retriable")
	return cmd
}

func newItemsTreeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <id>",
		Short: "Show the chain of items that depend on a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *workitem.Store) error {
				tree, err := renderItemTree(cmd.Context(), store, strings.TrimSpace(args[0]))
				if errors.Is(err, workitem.ErrNotFound) {
					return fmt.Errorf("work item %s not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tree)
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]workitem.Status, error) {
	var statuses []workitem.Status
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := workitem.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
