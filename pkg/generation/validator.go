package generation

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/centelha-ai/centelha/pkg/models"
	"github.com/centelha-ai/centelha/pkg/prompt"
)

// Required payload fields, in the order they are checked.
const (
	FieldTitle  = "titulo"
	FieldFormat = "tipo"
	FieldHook   = "centelha"
)

var requiredFields = []string{FieldTitle, FieldFormat, FieldHook}

// Validate turns a 2xx response body into a GenerationResult.
func Validate(raw []byte) (models.GenerationResult, error) {
	res, _, err := ValidateEnvelope(raw)
	return res, err
}

// ValidateEnvelope is Validate that also returns the token usage reported by
// the endpoint, when present.
func ValidateEnvelope(raw []byte) (models.GenerationResult, *models.Usage, error) {
	var env models.ChatCompletionResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.GenerationResult{}, nil, fmt.Errorf("%w: decode envelope: %v", ErrMalformedPayload, err)
	}
	if len(env.Choices) == 0 || env.Choices[0].Message == nil || strings.TrimSpace(env.Choices[0].Message.Content) == "" {
		return models.GenerationResult{}, env.Usage, ErrEmptyResponse
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(env.Choices[0].Message.Content), &payload); err != nil {
		return models.GenerationResult{}, env.Usage, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload == nil {
		// content was the JSON literal null
		return models.GenerationResult{}, env.Usage, fmt.Errorf("%w: content is not an object", ErrMalformedPayload)
	}

	values := make(map[string]string, len(requiredFields))
	for _, field := range requiredFields {
		rawField, ok := payload[field]
		if !ok {
			return models.GenerationResult{}, env.Usage, &SchemaError{Field: field}
		}
		var s *string
		if err := json.Unmarshal(rawField, &s); err != nil || s == nil {
			return models.GenerationResult{}, env.Usage, &SchemaError{Field: field}
		}
		values[field] = *s
	}

	return models.GenerationResult{
		Title:  values[FieldTitle],
		Format: values[FieldFormat],
		Hook:   NormalizeHook(values[FieldHook]),
	}, env.Usage, nil
}

// NormalizeHook strips every leading occurrence of the hook phrase, with or
// without a trailing ellipsis, plus surrounding whitespace. Matching is
// case-insensitive and stops at a word boundary: "Que talvez" opens a
// different sentence ("Perhaps..."), and cutting it would leave "vez ..." in
// front of the learner. The result never starts with the phrase as a word, so
// NormalizeHook(NormalizeHook(s)) == NormalizeHook(s).
func NormalizeHook(s string) string {
	out := strings.TrimSpace(s)
	for {
		rest, ok := cutPhrase(out)
		if !ok {
			return out
		}
		out = strings.TrimSpace(rest)
	}
}

func cutPhrase(s string) (string, bool) {
	n := len(prompt.HookPhrase)
	if len(s) < n || !strings.EqualFold(s[:n], prompt.HookPhrase) {
		return s, false
	}
	rest := s[n:]
	for _, ellipsis := range []string{"...", "…"} {
		if strings.HasPrefix(rest, ellipsis) {
			return rest[len(ellipsis):], true
		}
	}
	if r, _ := utf8.DecodeRuneInString(rest); rest != "" && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
		return s, false
	}
	return rest, true
}
