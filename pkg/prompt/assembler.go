// Package prompt turns a generation request into the system and user
// instructions sent to the model.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	sprig "github.com/Masterminds/sprig/v3"

	"github.com/centelha-ai/centelha/pkg/models"
)

// HookPhrase is the phrase every hook must start with.
const HookPhrase = "Que tal"

// Formats lists the lesson formats the model may choose from.
var Formats = []string{"Aula Única", "Sequência Didática", "Projeto Interdisciplinar", "Oficina Prática"}

// DefaultUserTemplate interpolates the four request fields.
const DefaultUserTemplate = `Tema: {{ .Topic | trim }}. Disciplina: {{ .Subject | trim }}. Público: {{ .Grade }} ({{ .StageLabel }}).`

// System is the fixed system instruction.
var System = `Você é um consultor pedagógico sênior, especialista em Metodologias Ativas e Pensamento Crítico. Sua missão é destravar a criatividade de professores com ideias breves e impactantes.

Quando receber um TEMA, uma DISCIPLINA e um PÚBLICO, responda SOMENTE com um único objeto JSON, sem texto fora dele, contendo:

"titulo": um nome curto e cativante para a aula.

"tipo": o melhor formato, escolhido entre ` + strings.Join(Formats, ", ") + `.

"centelha": um parágrafo curto (no máximo 40 palavras) que comece OBRIGATORIAMENTE com a frase '` + HookPhrase + `...'.

Regra de ouro: a ideia deve conectar, com sutileza, o conteúdo à realidade material, social ou histórica vivida pelo aluno. Evite jargões acadêmicos. Use linguagem convidativa, curiosa e provocadora.`

// Prompt is the pair of instructions for one call.
type Prompt struct {
	System string
	User   string
}

// Messages returns the prompt as chat messages, system first.
func (p Prompt) Messages() []models.ChatMessage {
	return []models.ChatMessage{
		{Role: "system", Content: p.System},
		{Role: "user", Content: p.User},
	}
}

// Assembler renders prompts. It is safe for concurrent use.
type Assembler struct {
	user *template.Template
}

// New compiles userTemplate, or DefaultUserTemplate when it is blank. The
// template sees Topic, Subject, Stage, StageLabel and Grade.
func New(userTemplate string) (*Assembler, error) {
	if strings.TrimSpace(userTemplate) == "" {
		userTemplate = DefaultUserTemplate
	}
	funcs := sprig.TxtFuncMap()
	for _, name := range []string{"env", "expandenv"} {
		delete(funcs, name)
	}
	tmpl, err := template.New("user").Funcs(funcs).Option("missingkey=error").Parse(userTemplate)
	if err != nil {
		return nil, fmt.Errorf("prompt: parse user template: %w", err)
	}
	return &Assembler{user: tmpl}, nil
}

type templateData struct {
	Topic      string
	Subject    string
	Stage      string
	StageLabel string
	Grade      string
}

// Build renders the prompt for req. Callers keep req.Grade within req.Stage's set.
func (a *Assembler) Build(req models.GenerationRequest) (Prompt, error) {
	data := templateData{
		Topic:      req.Topic,
		Subject:    req.Subject,
		Stage:      string(req.Stage),
		StageLabel: req.Stage.Label(),
		Grade:      req.Grade,
	}
	var buf bytes.Buffer
	if err := a.user.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("prompt: render user template: %w", err)
	}
	return Prompt{System: System, User: buf.String()}, nil
}
