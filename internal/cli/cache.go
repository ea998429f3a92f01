package cli

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the media folder cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Rediscover every media folder and merge the results into the cache",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
					found, err := a.folders.DiscoverAll(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "discovered %d folders\n", len(found))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop discovered folders; overrides are kept",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
					n, err := a.folders.Clear(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "cleared %d folders\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List cached folders and overrides",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
					entries, err := a.folders.Status(ctx)
					if err != nil {
						return err
					}
					sort.Slice(entries, func(i, j int) bool {
						if entries[i].Name != entries[j].Name {
							return entries[i].Name < entries[j].Name
						}
						return entries[i].Source < entries[j].Source
					})

					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "FOLDER\tSOURCE\tID\tUPDATED")
					for _, e := range entries {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Source, e.ID, e.UpdatedAt.Format("2006-01-02 15:04"))
					}
					return tw.Flush()
				})
			},
		},
	)
	return cmd
}

func newOverrideCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Pin media folder names to folder ids",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <folder-name> <folder-id>",
			Short: "Set a folder override; it wins over discovery",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
					if err := a.folders.SetOverride(ctx, args[0], args[1]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "override %q -> %s\n", args[0], args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <folder-name>",
			Short: "Remove a folder override",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
					return a.folders.DeleteOverride(ctx, args[0])
				})
			},
		},
	)
	return cmd
}
