package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAuthCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect Graph credentials",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Acquire a token and resolve the media library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				_, expiry, err := a.tokens.Token(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "token ok, expires %s\n", expiry.Format(time.RFC3339))

				lists, err := a.graph.GetLists(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "site reachable, %d lists\n", len(lists))
				return nil
			})
		},
	})
	return cmd
}

func newPurgeCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <type>",
		Short: "Delete every local entity of a type",
		Long: `Delete every local entity of a type together with its media bindings.
Stored media stays behind and is reattached by the next sync.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("purge of %s is destructive, pass --yes to confirm", args[0])
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				n, err := a.syncer.Purge(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d %s\n", n, args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the purge")
	return cmd
}

func newRunsCmd(opts *options) *cobra.Command {
	var (
		entityType string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				runs, err := a.syncer.Runs(ctx, entityType, limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "", "Only show runs of this entity type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}
