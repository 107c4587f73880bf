package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newConfigCmd builds `archivaid config`, driving internal/configmirror's
// DB↔YAML mirror instead of a multi-drive-config resolver.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Mirror tag/download/channel/domain/inventory config to YAML",
	}

	cmd.AddCommand(newConfigImportCmd())
	cmd.AddCommand(newConfigDumpCmd())
	cmd.AddCommand(newConfigReloadCmd())

	return cmd
}

func newConfigImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import YAML config files into the database",
		Long: `Runs every config mirror's Import in its fixed dependency order
(tags, download_manager, channels, domains, inventories). A failure
importing one file does not abort the others; per-file results are
reported. Once the import has run, the download manager is enabled, even
when some files failed to import.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigImport(cmd.Context())
		},
	}
}

func newConfigDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Dump the database to YAML config files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigDump(cmd.Context())
		},
	}
}

func newConfigReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Tell a running `archivaid serve` to re-import YAML config via SIGHUP",
		Long: `Sends SIGHUP to the daemon named in archivaid.pid instead of running
import in this process, so the reload happens against the daemon's own
database connection rather than racing a second one open on the same file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			pidPath := filepath.Join(configDir(cc.App.Config), pidFileName)
			if err := sendSIGHUP(pidPath); err != nil {
				return fmt.Errorf("reloading config: %w", err)
			}

			cc.Statusf("Reload signal sent.\n")

			return nil
		},
	}
}

func runConfigImport(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	results := cc.App.ConfigMirror.ImportAll(ctx)

	failed := reportConfigResults(cc, "import", results)

	cc.App.Downloader.Enable()
	cc.Statusf("Download manager enabled.\n")

	if failed > 0 {
		return fmt.Errorf("config import: %d of %d files failed", failed, len(results))
	}

	return nil
}

func runConfigDump(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	results := cc.App.ConfigMirror.DumpAll(ctx)

	failed := reportConfigResults(cc, "dump", results)

	if failed > 0 {
		return fmt.Errorf("config dump: %d of %d files failed", failed, len(results))
	}

	return nil
}

func reportConfigResults(cc *CLIContext, verb string, results map[string]bool) (failed int) {
	if cc.Flags.JSON {
		printJSON(results)

		for _, ok := range results {
			if !ok {
				failed++
			}
		}

		return failed
	}

	for name, ok := range results {
		if ok {
			cc.Statusf("%s %s: ok\n", verb, name)
		} else {
			cc.Statusf("%s %s: FAILED (see log)\n", verb, name)

			failed++
		}
	}

	return failed
}
