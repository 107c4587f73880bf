package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wrolpi/archivaid/internal/model"
)

// newStatusCmd builds `archivaid status`: a snapshot of Download counts
// and the most recent events in place of a drive-sync status report.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current index and download status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context())
		},
	}
}

type statusJSON struct {
	MediaRoot      string         `json:"media_root"`
	DownloadCounts map[string]int `json:"download_counts"`
	RecentEvents   []string       `json:"recent_events"`
}

func runStatus(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	counts := make(map[string]int)

	for _, status := range []model.DownloadStatus{
		model.DownloadStatusNew, model.DownloadStatusPending,
		model.DownloadStatusComplete, model.DownloadStatusFailed, model.DownloadStatusDeferred,
	} {
		rows, err := cc.App.Downloads.ListByStatus(ctx, status)
		if err != nil {
			return err
		}

		counts[string(status)] = len(rows)
	}

	events := cc.App.Events.Recent()

	if cc.Flags.JSON {
		recent := make([]string, 0, len(events))
		for _, e := range events {
			recent = append(recent, e.Event+" "+e.Subject)
		}

		return printJSON(statusJSON{
			MediaRoot:      cc.App.Config.Media.Root,
			DownloadCounts: counts,
			RecentEvents:   recent,
		})
	}

	cc.Statusf("Media root: %s\n", cc.App.Config.Media.Root)
	cc.Statusf("Downloads: new=%d pending=%d complete=%d failed=%d deferred=%d\n",
		counts[string(model.DownloadStatusNew)],
		counts[string(model.DownloadStatusPending)],
		counts[string(model.DownloadStatusComplete)],
		counts[string(model.DownloadStatusFailed)],
		counts[string(model.DownloadStatusDeferred)],
	)

	if len(events) == 0 {
		cc.Statusf("No recent events.\n")
		return nil
	}

	cc.Statusf("Recent events:\n")

	start := 0
	if len(events) > 10 {
		start = len(events) - 10
	}

	for _, e := range events[start:] {
		cc.Statusf("  [%s] %s %s %s\n", e.Timestamp.Format("15:04:05"), e.Event, e.Subject, e.Message)
	}

	return nil
}
