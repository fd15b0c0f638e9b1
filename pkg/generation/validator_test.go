package generation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":    "chatcmpl-1",
		"model": "llama-3.3-70b-versatile",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 40, "total_tokens": 160},
	})
	require.NoError(t, err)
	return b
}

func TestValidate(t *testing.T) {
	raw := envelope(t, `{"titulo":"Pizza Fracionada","tipo":"Oficina Prática","centelha":"Que tal... dividir uma pizza para entender numeradores e denominadores?"}`)

	res, usage, err := ValidateEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "Pizza Fracionada", res.Title)
	assert.Equal(t, "Oficina Prática", res.Format)
	assert.Equal(t, "dividir uma pizza para entender numeradores e denominadores?", res.Hook)
	require.NotNil(t, usage)
	assert.Equal(t, 160, usage.TotalTokens)
}

func TestValidateMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"envelope not json", []byte("<html>bad gateway</html>")},
		{"content not json", envelope(t, "Que tal uma aula sobre frações?")},
		{"content is array", envelope(t, `["titulo","tipo"]`)},
		{"content is null", envelope(t, `null`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestValidateEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no choices", `{"choices":[]}`},
		{"no message", `{"choices":[{"index":0}]}`},
		{"blank content", `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrEmptyResponse)
		})
	}
}

func TestValidateSchemaViolation(t *testing.T) {
	tests := []struct {
		content string
		field   string
	}{
		{`{"tipo":"Aula Única","centelha":"Que tal medir a sala?"}`, FieldTitle},
		{`{"titulo":"Medidas","centelha":"Que tal medir a sala?"}`, FieldFormat},
		{`{"titulo":"Medidas","tipo":"Aula Única"}`, FieldHook},
		{`{"titulo":42,"tipo":"Aula Única","centelha":"x"}`, FieldTitle},
		{`{"titulo":"Medidas","tipo":null,"centelha":"x"}`, FieldFormat},
		{`{"titulo":"Medidas","tipo":"Aula Única","centelha":{"texto":"x"}}`, FieldHook},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := Validate(envelope(t, tt.content))
			require.ErrorIs(t, err, ErrSchemaViolation)
			var se *SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestNormalizeHook(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Que tal... medir a sombra da escola?", "medir a sombra da escola?"},
		{"QUE TAL medir a sombra?", "medir a sombra?"},
		{"que tal… medir a sombra?", "medir a sombra?"},
		{"  Que tal...   ", ""},
		{"Que tal... Que tal medir?", "medir?"},
		{"Que talvez medir?", "Que talvez medir?"},
		{"Medir a sombra?", "Medir a sombra?"},
		{"Imagine: que tal medir?", "Imagine: que tal medir?"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeHook(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeHook(got), "normalization must be idempotent")
		})
	}
}
