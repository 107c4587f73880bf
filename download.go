package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// newDownloadCmd builds `archivaid download`, driving internal/downloadmgr —
// downloads here are durable queue rows, not sync actions or OneDrive
// conflict-resolution/pause/resume commands.
func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Manage the download queue",
	}

	cmd.AddCommand(newDownloadAddCmd())
	cmd.AddCommand(newDownloadListCmd())
	cmd.AddCommand(newDownloadKillCmd())
	cmd.AddCommand(newDownloadRetryCmd())
	cmd.AddCommand(newDownloadRetryFailedCmd())
	cmd.AddCommand(newDownloadAlreadyCmd())

	return cmd
}

func newDownloadAddCmd() *cobra.Command {
	var (
		flagDownloader  string
		flagDestination string
		flagFrequency   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a URL for download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			downloaderName := flagDownloader
			if downloaderName == "" {
				name, ok := cc.App.Downloader.Registry().ResolveByURL(args[0])
				if !ok {
					return apperr.Validation("no downloader accepts url %s; pass --downloader explicitly", args[0])
				}

				downloaderName = name
			}

			d := &model.Download{
				URL:         args[0],
				Downloader:  downloaderName,
				Destination: flagDestination,
				Status:      model.DownloadStatusNew,
			}

			if flagFrequency > 0 {
				d.Frequency = &flagFrequency
			}

			id, err := cc.App.Downloads.Create(cmd.Context(), d)
			if err != nil {
				return fmt.Errorf("queueing download: %w", err)
			}

			cc.App.Events.SendDirectoryRefresh(flagDestination)
			cc.Statusf("Queued download %d: %s\n", id, args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&flagDownloader, "downloader", "", "downloader plugin name (auto-selected by URL when omitted)")
	cmd.Flags().StringVar(&flagDestination, "destination", "", "destination directory")
	cmd.Flags().DurationVar(&flagFrequency, "frequency", 0, "recurrence interval (0 = one-shot)")

	cmd.MarkFlagRequired("destination")

	return cmd
}

func newDownloadAlreadyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "already <url> [url...]",
		Short: "Report which urls already have a downloaded entity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			result, err := cc.App.Downloader.AlreadyDownloaded(cmd.Context(), args...)
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return printJSON(result)
			}

			headers := []string{"URL", "ALREADY_DOWNLOADED"}

			rows := make([][]string, 0, len(args))
			for _, url := range args {
				rows = append(rows, []string{url, fmt.Sprintf("%t", result[url])})
			}

			printTable(cc.Writer(), headers, rows)

			return nil
		},
	}
}

func newDownloadListCmd() *cobra.Command {
	var flagStatus string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List downloads, optionally filtered by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDownloadList(cmd.Context(), flagStatus)
		},
	}

	cmd.Flags().StringVar(&flagStatus, "status", "", "filter by status (new, pending, complete, failed, deferred)")

	return cmd
}

func runDownloadList(ctx context.Context, statusFilter string) error {
	cc := mustCLIContext(ctx)

	statuses := []model.DownloadStatus{
		model.DownloadStatusNew, model.DownloadStatusPending,
		model.DownloadStatusComplete, model.DownloadStatusFailed, model.DownloadStatusDeferred,
	}

	if statusFilter != "" {
		statuses = []model.DownloadStatus{model.DownloadStatus(statusFilter)}
	}

	var downloads []*model.Download

	for _, status := range statuses {
		rows, err := cc.App.Downloads.ListByStatus(ctx, status)
		if err != nil {
			return err
		}

		downloads = append(downloads, rows...)
	}

	if cc.Flags.JSON {
		return printJSON(downloads)
	}

	if len(downloads) == 0 {
		cc.Statusf("No downloads.\n")

		return nil
	}

	headers := []string{"ID", "STATUS", "URL", "ATTEMPTS"}

	rows := make([][]string, 0, len(downloads))
	for _, d := range downloads {
		rows = append(rows, []string{
			fmt.Sprintf("%d", d.ID), string(d.Status), d.URL, fmt.Sprintf("%d", d.Attempts),
		})
	}

	printTable(cc.Writer(), headers, rows)

	return nil
}

func newDownloadKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <id>",
		Short: "Cancel an in-flight download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if !cc.App.Downloader.Kill(id) {
				return fmt.Errorf("download %d is not currently running", id)
			}

			cc.Statusf("Killed download %d\n", id)

			return nil
		},
	}
}

func newDownloadRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Reset a failed download back to new",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := cc.App.Downloads.Retry(cmd.Context(), id); err != nil {
				return fmt.Errorf("retrying download %d: %w", id, err)
			}

			cc.Statusf("Download %d reset to new\n", id)

			return nil
		},
	}
}

func newDownloadRetryFailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry_failed",
		Short: "Reset every failed download back to new",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			failed, err := cc.App.Downloads.ListByStatus(cmd.Context(), model.DownloadStatusFailed)
			if err != nil {
				return err
			}

			retried := 0

			for _, d := range failed {
				if err := cc.App.Downloads.Retry(cmd.Context(), d.ID); err != nil {
					cc.Statusf("download %d: retry failed: %v\n", d.ID, err)

					continue
				}

				retried++
			}

			cc.Statusf("Retried %s\n", formatCount(retried, "download"))

			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	var id int64

	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}

	return id, nil
}
