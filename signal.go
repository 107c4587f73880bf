package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM,
// giving `archivaid serve` a chance to stop the download manager and close
// out the refresh watch cleanly. A second signal before that drain finishes
// force-exits instead of waiting.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go waitForSignals(ctx, parent, cancel, sigCh, logger)

	return ctx
}

func waitForSignals(ctx, parent context.Context, cancel context.CancelFunc, sigCh chan os.Signal, logger *slog.Logger) {
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, draining download manager before exit", slog.String("signal", sig.String()))
		cancel()
	case <-ctx.Done():
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn("received second signal, forcing exit before drain finished", slog.String("signal", sig.String()))
		os.Exit(1)
	case <-parent.Done():
		return
	}
}

// sighupChannel returns a channel fed SIGHUP, for `archivaid serve` to
// re-import domains.yaml/tags.yaml/channels.yaml/download_manager.yaml/
// inventories.yaml without a restart. Caller owns the channel and must signal.Stop it.
func sighupChannel() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	return sigCh
}
