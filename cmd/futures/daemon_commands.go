package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"futures/internal/api"
	"futures/internal/daemonctl"
	"futures/internal/workitem"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the futures daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.configValue().SocketPath(), exe, daemonLaunchOptions(ctx), 10*time.Second)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			default:
				if msg := strings.TrimSpace(result.Message); msg != "" {
					fmt.Fprintln(stdout, msg)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the futures daemon and terminate its process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon process %d did not exit; killed\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, processor, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.StatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			renderDaemonStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderDaemonStatus(out io.Writer, status api.DaemonStatus) {
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("Workflow", statusOK, fmt.Sprintf("running (pid %d, %d workers)", status.PID, status.Workflow.Workers), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Workflow", statusWarn, "not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	if status.NextReclaim != "" {
		fmt.Fprintln(out, renderStatusLine("Next reclaim", statusInfo, status.NextReclaim, colorize))
	}
	if status.NextPurge != "" {
		fmt.Fprintln(out, renderStatusLine("Next purge", statusInfo, status.NextPurge, colorize))
	}
	if status.Workflow.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
	}
	if last := status.Workflow.LastItem; last != nil {
		fmt.Fprintln(out, renderStatusLine("Last item", statusInfo, fmt.Sprintf("%s %s (%s)", last.ID, last.Type, last.Status), colorize))
	}

	if len(status.Workflow.Health) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Processors", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, h := range status.Workflow.Health {
			kind, detail := statusOK, "ready"
			if !h.Ready {
				kind, detail = statusError, h.Detail
			}
			fmt.Fprintln(out, renderStatusLine(humanize(h.Name), kind, detail, colorize))
		}
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, queueStatusRows(status.Workflow.QueueStats), []columnAlignment{alignLeft, alignRight}))
}

func queueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range workitem.AllStatuses() {
		rows = append(rows, []string{humanize(string(status)), strconv.Itoa(stats[string(status)])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
}
