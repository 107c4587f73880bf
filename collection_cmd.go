package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCollectionCmd builds `archivaid collection`, driving
// internal/collection.Service — the tag/move/update lifecycle from spec
// §4.3 — there is no sync-conflict resolve command in this domain.
func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage Collection directory/tag/description",
	}

	cmd.AddCommand(newCollectionTagCmd())
	cmd.AddCommand(newCollectionUpdateCmd())

	return cmd
}

func newCollectionTagCmd() *cobra.Command {
	var (
		flagTag       string
		flagDirectory string
	)

	cmd := &cobra.Command{
		Use:   "tag <collection-id>",
		Short: "Apply or remove a tag, optionally moving the collection's files",
		Long: `Sets (or, with an empty --tag, removes) a Collection's tag. If --directory
is given, the collection's files are moved there. Otherwise, when a tag is
set on a collection that has a directory, the files are moved to
<media>/<kind_root>/<tag>/<name>; removing a tag without --directory keeps
the existing directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var oldDirectory string
			if before, getErr := cc.App.Collections.GetByID(cmd.Context(), id); getErr == nil && before.Directory != nil {
				oldDirectory = *before.Directory
			}

			result, err := cc.App.CollectionSvc.Tag(cmd.Context(), id, flagTag, flagDirectory)
			if err != nil {
				return fmt.Errorf("tagging collection %d: %w", id, err)
			}

			if cc.Flags.JSON {
				return printJSON(result)
			}

			if result.Moved {
				cc.App.Events.SendCollectionMoved(oldDirectory, result.Directory)
			}

			cc.Statusf("Collection %d (%s): tag=%q directory=%q moved=%v\n",
				result.CollectionID, result.CollectionName, result.TagName, result.Directory, result.Moved)

			return nil
		},
	}

	cmd.Flags().StringVar(&flagTag, "tag", "", "tag name (empty removes the tag)")
	cmd.Flags().StringVar(&flagDirectory, "directory", "", "target directory (empty: the formatted tag directory when tagging, else the existing one)")

	return cmd
}

func newCollectionUpdateCmd() *cobra.Command {
	var (
		flagDirectory   string
		flagTag         string
		flagDescription string
		hasDirectory    bool
		hasTag          bool
		hasDescription  bool
	)

	cmd := &cobra.Command{
		Use:   "update <collection-id>",
		Short: "Edit a collection's directory, tag, or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var directory, tag, description *string

			if hasDirectory {
				directory = &flagDirectory
			}

			if hasTag {
				tag = &flagTag
			}

			if hasDescription {
				description = &flagDescription
			}

			updated, err := cc.App.CollectionSvc.Update(cmd.Context(), id, directory, tag, description)
			if err != nil {
				return fmt.Errorf("updating collection %d: %w", id, err)
			}

			if cc.Flags.JSON {
				return printJSON(updated)
			}

			cc.Statusf("Collection %d (%s) updated\n", updated.ID, updated.Name)

			return nil
		},
	}

	cmd.Flags().StringVar(&flagDirectory, "directory", "", "new directory (empty string clears it)")
	cmd.Flags().StringVar(&flagTag, "tag", "", "new tag name (empty string clears it)")
	cmd.Flags().StringVar(&flagDescription, "description", "", "new description")

	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		hasDirectory = cmd.Flags().Changed("directory")
		hasTag = cmd.Flags().Changed("tag")
		hasDescription = cmd.Flags().Changed("description")
	}

	return cmd
}
