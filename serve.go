package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
)

const pidFileName = "archivaid.pid"

// newServeCmd builds `archivaid serve`: the long-running daemon entry
// point, starting the switch bus, the download manager's dispatch loop,
// and (optionally) a refresh watch on the media root, under a PID-file
// lock and graceful-shutdown signal handling, reused from pidfile.go/
// signal.go for a local daemon instead of a background `sync --watch`
// process.
func newServeCmd() *cobra.Command {
	var flagWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the archivaid daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			return runServe(cmd.Context(), cc, flagWatch)
		},
	}

	cmd.Flags().BoolVar(&flagWatch, "watch", true, "also watch the media root for live refresh triggers")

	return cmd
}

func runServe(ctx context.Context, cc *CLIContext, watch bool) error {
	pidPath := filepath.Join(configDir(cc.App.Config), pidFileName)

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	defer cleanup()

	ctx = shutdownContext(ctx, cc.App.Logger)

	sighup := sighupChannel()
	defer signal.Stop(sighup)

	go watchForConfigReload(ctx, cc, sighup)

	cc.App.Switches.Start(ctx)
	cc.App.Downloader.Start(ctx)

	cc.App.Events.SendReady()
	cc.Statusf("archivaid serving on %s:%d (media root %s)\n",
		cc.App.Config.Server.Host, cc.App.Config.Server.Port, cc.App.Config.Media.Root)

	if watch {
		if err := runRefreshWatch(ctx, cc, cc.App.Config.Media.Root); err != nil && ctx.Err() == nil {
			return err
		}
	} else {
		<-ctx.Done()
	}

	cc.App.Downloader.Stop()
	cc.App.Events.SendShutdown("")

	return nil
}

// watchForConfigReload re-imports domains.yaml/tags.yaml/channels.yaml/
// download_manager.yaml/inventories.yaml on each SIGHUP, so `archivaid config reload` (sent
// via sendSIGHUP) applies edits made to those files without a restart.
func watchForConfigReload(ctx context.Context, cc *CLIContext, sighup chan os.Signal) {
	for {
		select {
		case <-sighup:
			cc.App.Logger.Info("SIGHUP received, reloading config")

			for file, ok := range cc.App.ConfigMirror.ImportAll(ctx) {
				if !ok {
					cc.App.Logger.Error("config reload failed", "file", file)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
