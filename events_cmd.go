package main

import (
	"github.com/spf13/cobra"
)

// newEventsCmd builds `archivaid events`: dumps the in-memory event feed
//, the CLI counterpart of wrolpi's Events API.
func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			events := cc.App.Events.Recent()

			if cc.Flags.JSON {
				return printJSON(events)
			}

			if len(events) == 0 {
				cc.Statusf("No events.\n")

				return nil
			}

			for _, e := range events {
				cc.Statusf("[%s] %-28s %-20s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Event, e.Subject, e.Message)
			}

			return nil
		},
	}
}
