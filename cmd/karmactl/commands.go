package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/ew73/slack-karma/internal/adapter/storage"
	"github.com/ew73/slack-karma/internal/app"
	"github.com/ew73/slack-karma/internal/platform/version"
	"github.com/spf13/cobra"
)

func newListCmd(flags *storeFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show subjects ordered by karma",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", limit)
			}
			return flags.withService(cmd, func(ctx context.Context, svc *app.KarmaService) error {
				standings, err := svc.Standings(ctx, limit)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(w, "KARMA\tSUBJECT\t")
				for _, s := range standings {
					fmt.Fprintf(w, "%d\t%s\t\n", s.Karma, s.Subject)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of subjects (0 for all)")
	return cmd
}

func newGetCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <subject>",
		Short: "Print the karma of one subject (quotes included for phrases)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withService(cmd, func(ctx context.Context, svc *app.KarmaService) error {
				karma, err := svc.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), karma)
				return nil
			})
		},
	}
}

func newSetCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <subject> <karma>",
		Short: "Overwrite the karma of one subject",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("karma must be an integer: %w", err)
			}
			return flags.withService(cmd, func(ctx context.Context, svc *app.KarmaService) error {
				if err := svc.Set(ctx, args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s has %d karma.\n", args[0], value)
				return nil
			})
		},
	}
}

func newMigrateCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema of the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withBackend(cmd, func(ctx context.Context, b *storage.Backend) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date: %s\n", describeTarget(flags))
				return nil
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			v := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s, %s)\n", v.Service, v.Version, v.Commit, v.BuildTime, v.GoVersion)
		},
	}
}
