package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrolpi/archivaid/internal/refresh"
)

// newRefreshCmd builds `archivaid refresh`: instead of reconciling a
// local directory against a remote drive, it runs the discovery → index →
// model → hooks → delete pipeline
// against a directory under the media root.
func newRefreshCmd() *cobra.Command {
	var flagWatch bool

	cmd := &cobra.Command{
		Use:   "refresh [directory]",
		Short: "Refresh the file index under a directory",
		Long: `Run a refresh cycle: discover files, upsert FileGroups, surface-index new
files, deep-model newly-indexed ones, run after-refresh hooks, and delete
tracked FileGroups whose files are gone.

With no directory, refreshes the whole media root. With --watch, the
directory is refreshed once immediately and again on every debounced burst
of filesystem activity, until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			directory := cc.App.Config.Media.Root
			if len(args) == 1 {
				directory = args[0]
			}

			if flagWatch {
				return runRefreshWatch(shutdownContext(cmd.Context(), cc.App.Logger), cc, directory)
			}

			return runRefreshOnce(cmd.Context(), cc, directory)
		},
	}

	cmd.Flags().BoolVar(&flagWatch, "watch", false, "keep refreshing on filesystem changes")

	return cmd
}

func runRefreshOnce(ctx context.Context, cc *CLIContext, directory string) error {
	cc.App.Events.SendGlobalRefreshStarted()

	report, err := cc.App.Pipeline.Run(ctx, directory)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	cc.App.Events.SendRefreshCompleted(directory)

	if cc.Flags.JSON {
		return printJSON(reportJSON{
			Directory: directory,
			Discovered: report.Discovered,
			Indexed:    report.Indexed,
			Modeled:    report.Modeled,
			Deleted:    report.Deleted,
		})
	}

	cc.Statusf("Refreshed %s\n", directory)
	cc.Statusf("  discovered: %d  indexed: %d  modeled: %d  deleted: %d\n",
		report.Discovered, report.Indexed, report.Modeled, report.Deleted)

	return nil
}

// runRefreshWatch runs the debounced filesystem watcher against directory
// until ctx is canceled. Callers that already hold a shutdown context
// (e.g. `serve`) should pass it directly; the standalone `refresh --watch`
// command wraps one itself.
func runRefreshWatch(ctx context.Context, cc *CLIContext, directory string) error {
	watcher := refresh.NewWatcher(cc.App.Pipeline, cc.App.Logger)

	cc.Statusf("Watching %s (Ctrl-C to stop)\n", directory)

	return watcher.Watch(ctx, directory)
}

type reportJSON struct {
	Directory  string `json:"directory"`
	Discovered int    `json:"discovered"`
	Indexed    int    `json:"indexed"`
	Modeled    int    `json:"modeled"`
	Deleted    int    `json:"deleted"`
}
