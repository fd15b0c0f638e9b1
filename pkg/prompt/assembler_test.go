package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centelha-ai/centelha/pkg/models"
)

func fractions() models.GenerationRequest {
	return models.GenerationRequest{
		Topic:   "Frações",
		Subject: "Matemática",
		Stage:   models.StageMiddleYears,
		Grade:   "6º Ano",
	}
}

func TestBuildDefaultTemplate(t *testing.T) {
	a, err := New("")
	require.NoError(t, err)

	p, err := a.Build(fractions())
	require.NoError(t, err)
	assert.Equal(t, "Tema: Frações. Disciplina: Matemática. Público: 6º Ano (Ensino Fundamental II).", p.User)
	assert.Equal(t, System, p.System)
}

func TestBuildTrimsTopic(t *testing.T) {
	a, err := New("")
	require.NoError(t, err)
	req := fractions()
	req.Topic = "  Frações  "

	p, err := a.Build(req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.User, "Tema: Frações. "))
}

func TestSystemInstructionContract(t *testing.T) {
	for _, want := range []string{`"titulo"`, `"tipo"`, `"centelha"`, "40 palavras", HookPhrase, "realidade material", "JSON"} {
		assert.Contains(t, System, want)
	}
	for _, f := range Formats {
		assert.Contains(t, System, f)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := New("")
	require.NoError(t, err)
	p1, err := a.Build(fractions())
	require.NoError(t, err)
	p2, err := a.Build(fractions())
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestCustomTemplate(t *testing.T) {
	a, err := New(`{{ .Subject | upper }} / {{ .Stage }} / {{ .Grade }}: {{ .Topic }}`)
	require.NoError(t, err)
	p, err := a.Build(fractions())
	require.NoError(t, err)
	assert.Equal(t, "MATEMÁTICA / middle-years / 6º Ano: Frações", p.User)
}

func TestInvalidTemplate(t *testing.T) {
	_, err := New(`{{ .Topic `)
	assert.Error(t, err)
}

func TestUnknownFieldFailsAtBuild(t *testing.T) {
	a, err := New(`{{ .Nope }}`)
	require.NoError(t, err)
	_, err = a.Build(fractions())
	assert.Error(t, err)
}

func TestMessages(t *testing.T) {
	msgs := Prompt{System: "s", User: "u"}.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
}
