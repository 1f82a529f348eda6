package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/list"

	"futures/internal/api"
	"futures/internal/workitem"
)

const maxTreeDepth = 32

func itemListRows(items []api.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		status := item.Status
		if item.SupersededBy != "" {
			status += " (superseded)"
		}
		rows = append(rows, []string{
			item.ID,
			item.Type,
			item.Operation,
			item.Subject,
			status,
			strconv.Itoa(item.Attempts),
			item.CreatedAt,
		})
	}
	return rows
}

func renderItemDetail(out io.Writer, resp *api.ItemResponse) {
	item := resp.Item
	fields := [][2]string{
		{"ID", item.ID},
		{"Type", fmt.Sprintf("%s (%s)", item.Type, item.Family)},
		{"Operation", item.Operation},
		{"Subject", item.Subject},
		{"Status", item.Status},
		{"Attempts", strconv.Itoa(item.Attempts)},
		{"Lease owner", item.LeaseOwner},
		{"Not before", item.NotBefore},
		{"Created", item.CreatedAt},
		{"Processed", item.ProcessedAt},
		{"Completed", item.CompletedAt},
		{"Superseded by", item.SupersededBy},
	}
	if item.ErrorMessage != "" {
		fields = append(fields, [2]string{"Error", item.ErrorMessage}, [2]string{"Retriable", yesNo(item.Retriable)})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintf(out, "%-14s %s\n", f[0]+":", f[1])
	}
	if len(item.DependsOn) > 0 {
		fmt.Fprintln(out, "\nDepends on:")
		for _, id := range item.DependsOn {
			fmt.Fprintf(out, "  %s\n", id)
		}
	}
	if len(resp.Dependents) > 0 {
		fmt.Fprintln(out, "\nDependents:")
		for _, dep := range resp.Dependents {
			fmt.Fprintf(out, "  %s %s (%s)\n", dep.ID, dep.Type, dep.Status)
		}
	}
	if len(item.Metadata) > 0 {
		fmt.Fprintf(out, "\nMetadata:\n  %s\n", item.Metadata)
	}
}

// renderItemTree walks dependents depth-first from rootID and renders them
// as a nested list. Items reachable through several parents appear under each.
func renderItemTree(ctx context.Context, store *workitem.Store, rootID string) (string, error) {
	root, err := store.Get(ctx, rootID)
	if err != nil {
		return "", err
	}
	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedRounded)
	if err := appendTreeNode(ctx, store, lw, root, 0); err != nil {
		return "", err
	}
	return lw.Render(), nil
}

func appendTreeNode(ctx context.Context, store *workitem.Store, lw list.Writer, item *workitem.Item, depth int) error {
	lw.AppendItem(treeLabel(item))
	if depth >= maxTreeDepth {
		return nil
	}
	children, err := store.Dependents(ctx, item.ID)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}
	lw.Indent()
	for _, child := range children {
		if err := appendTreeNode(ctx, store, lw, child, depth+1); err != nil {
			return err
		}
	}
	lw.UnIndent()
	return nil
}

func treeLabel(item *workitem.Item) string {
	label := fmt.Sprintf("%s %s", item.ID, item.Type)
	if meta, err := item.Metadata(); err == nil {
		if op, ok := workitem.SubOperation(meta); ok {
			label += "/" + string(op)
		}
	}
	return fmt.Sprintf("%s [%s]", label, item.Status)
}
