package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/centelha-ai/centelha/pkg/proxy"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Centelha app server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if listen != "" {
				a.cfg.Listen = listen
			}

			opts := []proxy.Option{
				proxy.WithLogger(a.logger),
				proxy.WithMetrics(a.recorder),
			}
			if a.offline != nil {
				if err := a.offline.Start(ctx); err != nil {
					return fmt.Errorf("start offline cache: %w", err)
				}
				opts = append(opts, proxy.WithOffline(a.offline))
			}

			srv, err := proxy.New(a.cfg, a.gen, a.creds, opts...)
			if err != nil {
				return err
			}
			a.logger.Info("app server starting", zap.String("listen", a.cfg.Listen))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}
