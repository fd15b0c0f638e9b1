package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/centelha-ai/centelha/pkg/models"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query and manage the generation history",
	}

	cmd.AddCommand(
		newHistorySearchCmd(configPath),
		newHistoryShowCmd(configPath),
		newHistoryStatsCmd(configPath),
		newHistoryCleanupCmd(configPath),
	)
	return cmd
}

func newHistorySearchCmd(configPath *string) *cobra.Command {
	var (
		subject string
		outcome string
		since   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search past generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := models.AuditQueryOpts{
				Subject: subject,
				Outcome: outcome,
				Limit:   limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			a, err := openApp(context.Background(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			h, err := a.requireHistory()
			if err != nil {
				return err
			}
			entries, err := h.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatHistoryEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "filter by subject")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (ok, remote_error, ...)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newHistoryShowCmd(configPath *string) *cobra.Command {
	var requestID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single generation by request ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request-id is required")
			}

			a, err := openApp(context.Background(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			h, err := a.requireHistory()
			if err != nil {
				return err
			}
			entries, err := h.Query(context.Background(), models.AuditQueryOpts{
				RequestID: requestID,
				Limit:     1,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entry found for that request ID.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatHistoryEntry(entries[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request-id", "", "request ID to show")
	return cmd
}

func newHistoryStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show generation counts by subject, outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(context.Background(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			h, err := a.requireHistory()
			if err != nil {
				return err
			}
			stats, err := h.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatHistoryStats(stats))
			return nil
		},
	}
}

func newHistoryCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete history entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(context.Background(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			h, err := a.requireHistory()
			if err != nil {
				return err
			}
			deleted, err := h.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d history entries.\n", deleted)
			return nil
		},
	}
}
