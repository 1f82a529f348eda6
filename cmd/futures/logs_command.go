package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"futures/internal/ipc"
	"futures/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var item string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			tail := localTail(ctx.configValue().LogPath())
			if client, err := ipc.Dial(ctx.configValue().SocketPath()); err == nil {
				defer client.Close()
				tail = remoteTail(client)
			}

			req := ipc.LogTailRequest{Offset: -1, Limit: lines, Match: item}
			for {
				resp, err := tail(cmd.Context(), req)
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				req = ipc.LogTailRequest{Offset: resp.Offset, Follow: true, WaitMillis: 5000, Match: item}
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&item, "item", "", "Only show lines mentioning this work item id")
	return cmd
}

type tailFunc func(context.Context, ipc.LogTailRequest) (*ipc.LogTailResponse, error)

func remoteTail(client *ipc.Client) tailFunc {
	return func(_ context.Context, req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
		return client.LogTail(req)
	}
}

// localTail reads the log file directly when the daemon is not reachable.
func localTail(path string) tailFunc {
	return func(ctx context.Context, req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
		result, err := logs.Tail(ctx, path, logs.TailOptions{
			Offset: req.Offset,
			Limit:  req.Limit,
			Follow: req.Follow,
			Wait:   time.Duration(req.WaitMillis) * time.Millisecond,
			Match:  req.Match,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
		return &ipc.LogTailResponse{Lines: result.Lines, Offset: result.Offset}, nil
	}
}
