package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/centelha-ai/centelha/pkg/models"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		req     models.GenerationRequest
		stage   string
		asJSON  bool
		listing bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a lesson spark for a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listing {
				fmt.Fprint(cmd.OutOrStdout(), formatOptions(models.AllOptions()))
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			r := req
			r.Stage = models.EducationStage(stage)
			if r.Grade == "" {
				r = r.WithStage(r.Stage)
			}

			res, err := a.gen.Generate(ctx, r)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res, asJSON)
		},
	}

	cmd.Flags().StringVarP(&req.Topic, "topic", "t", "", "lesson topic")
	cmd.Flags().StringVarP(&req.Subject, "subject", "s", "", "school subject")
	cmd.Flags().StringVar(&stage, "stage", string(models.DefaultStage), "education stage")
	cmd.Flags().StringVarP(&req.Grade, "grade", "g", "", "grade (defaults to the stage's first grade)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&listing, "options", false, "list subjects, stages and grades and exit")

	return cmd
}

func writeResult(w io.Writer, res models.GenerationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	}
	_, err := fmt.Fprintf(w, "%s\n[%s]\n\nQue tal... %s\n", res.Title, res.Format, res.Hook)
	return err
}
