package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/centelha-ai/centelha/pkg/credential"
)

func newKeyCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key",
	}

	setCmd := &cobra.Command{
		Use:   "set [token]",
		Short: "Store the API key (reads stdin when no token is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				token = line
			}

			a, err := openApp(context.Background(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.creds.Set(context.Background(), token); err != nil {
				if errors.Is(err, credential.ErrInvalidCredential) {
					return fmt.Errorf("the API key must not be empty")
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key saved.")
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show whether an API key is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(context.Background(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			token, ok, err := a.creds.Get(context.Background())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No API key configured.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key: %s\n", maskToken(token))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(context.Background(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.creds.Clear(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key cleared.")
			return nil
		},
	}

	cmd.AddCommand(setCmd, showCmd, clearCmd)
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// maskToken keeps the first and last four characters of long tokens.
func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}
