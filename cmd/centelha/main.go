package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "centelha",
		Short:         "Centelha - lesson spark generator with an offline-capable app server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults are used when empty)")

	root.AddCommand(
		newGenerateCmd(&configPath),
		newKeyCmd(&configPath),
		newCacheCmd(&configPath),
		newServeCmd(&configPath),
		newMCPCmd(&configPath),
		newHistoryCmd(&configPath),
	)
	return root
}
