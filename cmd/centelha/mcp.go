package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/centelha-ai/centelha/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start Centelha as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			// Interface values stay nil when a subsystem is disabled.
			var cache mcp.CacheStatter
			if a.offline != nil {
				cache = a.offline
			}
			var history mcp.HistorySearcher
			if a.history != nil {
				history = a.history
			}

			srv := mcp.New(a.gen, cache, history, version, a.logger)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
