package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, baseURL string, auditEnabled bool) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
db_path: %q
generation:
  base_url: %q
  timeout: 2s
offline:
  backend: memory
logging:
  level: error
audit:
  enabled: %t
  db_path: %q
  include: ["prompts", "responses"]
`, filepath.Join(dir, "centelha.db"), baseURL, auditEnabled, filepath.Join(dir, "history.db"))

	path := filepath.Join(dir, "centelha.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", configPath))
	err := root.Execute()
	return out.String(), err
}

func groqStub(t *testing.T) *httptest.Server {
	t.Helper()
	content := `{"titulo":"Pizza Fracionada","tipo":"Oficina Prática","centelha":"Que tal... dividir uma pizza?"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gsk_test_token_1234" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
			return
		}
		body, err := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
			"usage":   map[string]int{"prompt_tokens": 120, "completion_tokens": 40, "total_tokens": 160},
		})
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestKeyLifecycle(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/", false)

	out, err := run(t, cfg, "", "key", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No API key configured.")

	out, err = run(t, cfg, "  gsk_test_token_1234\n", "key", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "API key saved.")

	out, err = run(t, cfg, "", "key", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "gsk_...1234")
	assert.NotContains(t, out, "gsk_test_token_1234")

	_, err = run(t, cfg, "", "key", "clear")
	require.NoError(t, err)
	out, err = run(t, cfg, "", "key", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No API key configured.")
}

func TestKeySetRejectsBlank(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/", false)
	_, err := run(t, cfg, "   \n", "key", "set")
	assert.Error(t, err)
}

func TestGenerateAndHistory(t *testing.T) {
	srv := groqStub(t)
	cfg := writeConfig(t, srv.URL, true)

	_, err := run(t, cfg, "", "key", "set", "gsk_test_token_1234")
	require.NoError(t, err)

	out, err := run(t, cfg, "", "generate", "--topic", "Frações", "--subject", "Matemática")
	require.NoError(t, err)
	assert.Contains(t, out, "Pizza Fracionada")
	assert.Contains(t, out, "[Oficina Prática]")
	assert.Contains(t, out, "Que tal... dividir uma pizza?")

	out, err = run(t, cfg, "", "generate", "--topic", "Frações", "--subject", "Matemática", "--json")
	require.NoError(t, err)
	var res map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "dividir uma pizza?", res["centelha"])

	out, err = run(t, cfg, "", "history", "search", "--subject", "Matemática")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, " ok "))

	out, err = run(t, cfg, "", "history", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Matemática")
}

func TestGenerateWithoutKey(t *testing.T) {
	srv := groqStub(t)
	cfg := writeConfig(t, srv.URL, false)

	_, err := run(t, cfg, "", "generate", "--topic", "Frações", "--subject", "Matemática")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential")
}

func TestGenerateOptions(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/", false)
	out, err := run(t, cfg, "", "generate", "--options")
	require.NoError(t, err)
	assert.Contains(t, out, "Matemática")
	assert.Contains(t, out, "EJA - Ensino Médio")
}

func TestHistoryDisabled(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/", false)
	_, err := run(t, cfg, "", "history", "stats")
	assert.ErrorIs(t, err, errHistoryDisabled)
}

func TestCacheStats(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/", false)
	out, err := run(t, cfg, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "centelha-v3")
	assert.Contains(t, out, "Namespaces: (none)")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("abcd"))
	assert.Equal(t, "gsk_...wxyz", maskToken("gsk_0123456789wxyz"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Física", truncate("Física", 10))
	assert.Equal(t, "LPT (Le...", truncate("LPT (Leitura e Prod. Textual)", 10))
}
