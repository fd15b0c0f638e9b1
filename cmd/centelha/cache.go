package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the offline cache",
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Fetch the manifest into the current cache version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			m, err := a.requireOffline()
			if err != nil {
				return err
			}
			if err := m.Install(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %d entries into %s.\n", len(a.cfg.Offline.Manifest), m.Version())
			return nil
		},
	}

	activateCmd := &cobra.Command{
		Use:   "activate",
		Short: "Make the current version active and delete older versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			m, err := a.requireOffline()
			if err != nil {
				return err
			}
			if err := m.Activate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s.\n", m.Version())
			return nil
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show offline cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			m, err := a.requireOffline()
			if err != nil {
				return err
			}
			stats, err := m.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatCacheStats(stats))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cache version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			m, err := a.requireOffline()
			if err != nil {
				return err
			}
			n, err := m.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cache versions.\n", n)
			return nil
		},
	}

	cmd.AddCommand(installCmd, activateCmd, statsCmd, clearCmd)
	return cmd
}
