package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrolpi/archivaid/internal/model"
)

// newInspectCmd builds `archivaid inspect`: read-only
// lookups over the local FileGroup/Collection store instead of remote
// ls/get/put/rm/mkdir/stat CRUD, since this domain's files live on the local
// media root, not behind a remote API.
func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect indexed FileGroups and Collections",
	}

	cmd.AddCommand(newInspectFileGroupsCmd())
	cmd.AddCommand(newInspectCollectionsCmd())

	return cmd
}

func newInspectFileGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file-groups <directory>",
		Short: "List FileGroups under a directory (including descendants)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			groups, err := cc.App.FileGroups.ListByDirectory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return printJSON(groups)
			}

			if len(groups) == 0 {
				cc.Statusf("No file groups under %s\n", args[0])

				return nil
			}

			headers := []string{"ID", "PRIMARY_PATH", "MIMETYPE", "INDEXED", "DEEP_INDEXED", "SIZE"}

			rows := make([][]string, 0, len(groups))
			for _, fg := range groups {
				rows = append(rows, []string{
					fmt.Sprintf("%d", fg.ID), fg.PrimaryPath, fg.Mimetype,
					fmt.Sprintf("%v", fg.Indexed), fmt.Sprintf("%v", fg.DeepIndexed),
					formatSize(fg.Size),
				})
			}

			printTable(cc.Writer(), headers, rows)

			return nil
		},
	}
}

func newInspectCollectionsCmd() *cobra.Command {
	var flagKind string

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List Collections, optionally filtered by kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			var (
				collections []*model.Collection
				err         error
			)

			if flagKind != "" {
				collections, err = cc.App.Collections.ListByKind(cmd.Context(), model.CollectionKind(flagKind))
			} else {
				collections, err = cc.App.Collections.All(cmd.Context())
			}

			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return printJSON(collections)
			}

			if len(collections) == 0 {
				cc.Statusf("No collections.\n")

				return nil
			}

			headers := []string{"ID", "NAME", "KIND", "DIRECTORY", "TAGGED"}

			rows := make([][]string, 0, len(collections))
			for _, c := range collections {
				directory := "-"
				if c.Directory != nil {
					directory = *c.Directory
				}

				rows = append(rows, []string{
					fmt.Sprintf("%d", c.ID), c.Name, string(c.Kind), directory,
					fmt.Sprintf("%v", c.TagID != nil),
				})
			}

			printTable(cc.Writer(), headers, rows)

			return nil
		},
	}

	cmd.Flags().StringVar(&flagKind, "kind", "", "filter by kind (domain, channel, manual)")

	return cmd
}
