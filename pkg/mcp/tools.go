package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/centelha-ai/centelha/pkg/generation"
	"github.com/centelha-ai/centelha/pkg/models"
)

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"centelha_generate":    handleGenerate,
	"centelha_options":     handleOptions,
	"centelha_cache_stats": handleCacheStats,
	"centelha_history":     handleHistory,
}

func stageNames() []string {
	names := make([]string, len(models.Stages))
	for i, s := range models.Stages {
		names[i] = string(s)
	}
	return names
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "centelha_generate",
		Description: "Generate a lesson idea (title, format and a short 'Que tal...' hook) for a topic, subject and grade.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"topic", "subject"},
			"properties": map[string]any{
				"topic": map[string]any{
					"type":        "string",
					"description": "Lesson topic, e.g. Frações",
				},
				"subject": map[string]any{
					"type":        "string",
					"description": "School subject, e.g. Matemática",
				},
				"stage": map[string]any{
					"type":        "string",
					"enum":        stageNames(),
					"description": "Education stage (optional, defaults to " + string(models.DefaultStage) + ")",
				},
				"grade": map[string]any{
					"type":        "string",
					"description": "Grade within the stage (optional, defaults to the stage's first grade)",
				},
			},
		},
	},
	{
		Name:        "centelha_options",
		Description: "List the subjects, education stages and grades accepted by centelha_generate.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "centelha_cache_stats",
		Description: "Show offline cache statistics (version, entries, hits, misses, namespaces).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "centelha_history",
		Description: "Search past generation calls with optional filters.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"subject": map[string]any{
					"type":        "string",
					"description": "Filter by subject (optional)",
				},
				"outcome": map[string]any{
					"type":        "string",
					"description": "Filter by outcome, e.g. ok or remote_error (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of entries (optional, default 20)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

type generateArgs struct {
	Topic   string `json:"topic"`
	Subject string `json:"subject"`
	Stage   string `json:"stage"`
	Grade   string `json:"grade"`
}

func handleGenerate(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args generateArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}

	req := models.GenerationRequest{Topic: args.Topic, Subject: args.Subject, Grade: args.Grade}
	stage := models.EducationStage(strings.TrimSpace(args.Stage))
	if stage == "" {
		stage = models.DefaultStage
	}
	if args.Grade == "" {
		req = req.WithStage(stage)
	} else {
		req.Stage = stage
	}

	res, err := s.gen.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, generation.ErrCredentialRequired) {
			return errorResult("No API key configured. Run `centelha key set` first.")
		}
		return errorResult("Generation failed (" + generation.Kind(err) + "): " + err.Error())
	}
	return textResult(formatResult(res))
}

func handleOptions(_ context.Context, _ *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatOptions(models.AllOptions()))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Offline cache is not configured.")
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

type historyArgs struct {
	Subject string `json:"subject"`
	Outcome string `json:"outcome"`
	Since   string `json:"since"`
	Limit   int    `json:"limit"`
}

func handleHistory(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("Generation history is not configured.")
	}
	var args historyArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	opts := models.AuditQueryOpts{
		Subject: args.Subject,
		Outcome: args.Outcome,
		Limit:   args.Limit,
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.history.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching history: " + err.Error())
	}
	return textResult(formatHistory(entries))
}
