package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wrolpi/archivaid/internal/appconfig"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that must not open the database
// (e.g. a bare `config path` helper). Commands without this annotation get
// a fully-built *App in their context before RunE executes.
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles the resolved App and the output flags every command
// formatting helper needs, eliminating redundant flag threading through
// RunE handlers.
type CLIContext struct {
	App   *App
	Flags OutputFlags
}

// OutputFlags are the output-affecting persistent flags, bundled so
// Statusf and friends don't need four separate bool parameters.
type OutputFlags struct {
	JSON    bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message. Programmer error only: the command tree guarantees
// PersistentPreRunE populates the context before RunE runs.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — command is missing from newRootCmd's PersistentPreRunE path")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "archivaid",
		Short:         "Self-hosted archive appliance core",
		Long:          "archivaid indexes and archives files under a media root, drives downloads, and mirrors domain config to YAML.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadApp(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc := cliContextFrom(cmd.Context()); cc != nil {
				return cc.App.Close()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", defaultConfigPath(), "daemon config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newCollectionCmd())
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// defaultConfigPath returns the default daemon TOML config location.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "archivaid.toml"
	}

	return dir + "/archivaid/archivaid.toml"
}

// loadApp reads the daemon's TOML config, opens the database, wires every
// service, and stores the resulting CLIContext in the command's context.
func loadApp(cmd *cobra.Command) error {
	logger := buildLogger()

	cfg, err := appconfig.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	cc := &CLIContext{
		App: app,
		Flags: OutputFlags{
			JSON:    flagJSON,
			Verbose: flagVerbose,
			Debug:   flagDebug,
			Quiet:   flagQuiet,
		},
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger from the CLI output flags. --verbose,
// --debug, and --quiet are mutually exclusive (enforced by Cobra).
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
