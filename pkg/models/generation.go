package models

import "slices"

// EducationStage groups grade levels. It constrains which grades are valid.
type EducationStage string

const (
	StageEarlyYears     EducationStage = "early-years"
	StageMiddleYears    EducationStage = "middle-years"
	StageSecondary      EducationStage = "secondary"
	StageAdultEducation EducationStage = "adult-education"
)

// DefaultStage is the stage selected when a request does not name one.
const DefaultStage = StageMiddleYears

// Stages lists every education stage in display order.
var Stages = []EducationStage{
	StageEarlyYears,
	StageMiddleYears,
	StageSecondary,
	StageAdultEducation,
}

var gradesByStage = map[EducationStage][]string{
	StageEarlyYears:     {"1º Ano", "2º Ano", "3º Ano", "4º Ano", "5º Ano"},
	StageMiddleYears:    {"6º Ano", "7º Ano", "8º Ano", "9º Ano"},
	StageSecondary:      {"1ª Série", "2ª Série", "3ª Série"},
	StageAdultEducation: {"EJA - Anos Iniciais", "EJA - Anos Finais", "EJA - Ensino Médio"},
}

var stageLabels = map[EducationStage]string{
	StageEarlyYears:     "Ensino Fundamental I",
	StageMiddleYears:    "Ensino Fundamental II",
	StageSecondary:      "Ensino Médio",
	StageAdultEducation: "EJA",
}

// Subjects is the fixed list of school subjects offered to the user.
var Subjects = []string{
	"Artes", "Biologia", "Ciências", "Educação Física",
	"Ensino Religioso", "Filosofia", "Física", "Geografia",
	"História", "Língua Inglesa", "Língua Portuguesa",
	"LPT (Leitura e Prod. Textual)", "Matemática", "Química", "Sociologia",
}

// Valid reports whether s is a known stage.
func (s EducationStage) Valid() bool {
	_, ok := gradesByStage[s]
	return ok
}

// Label returns the human-readable name of the stage.
func (s EducationStage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Grades returns a copy of the grade labels valid for the stage, or nil for an
// unknown stage.
func (s EducationStage) Grades() []string {
	return slices.Clone(gradesByStage[s])
}

// HasGrade reports whether grade belongs to the stage's set.
func (s EducationStage) HasGrade(grade string) bool {
	return slices.Contains(gradesByStage[s], grade)
}

// IsSubject reports whether name is one of the fixed subjects.
func IsSubject(name string) bool {
	return slices.Contains(Subjects, name)
}

// GenerationRequest carries the user-supplied parameters of one generation.
type GenerationRequest struct {
	Topic   string         `json:"topic"`
	Subject string         `json:"subject"`
	Stage   EducationStage `json:"stage"`
	Grade   string         `json:"grade"`
}

// WithStage switches the request to stage. The grade is kept only when it
// belongs to the new stage's set; otherwise it becomes the set's first entry.
func (r GenerationRequest) WithStage(stage EducationStage) GenerationRequest {
	r.Stage = stage
	if !stage.HasGrade(r.Grade) {
		r.Grade = ""
		if grades := gradesByStage[stage]; len(grades) > 0 {
			r.Grade = grades[0]
		}
	}
	return r
}

// GenerationResult is the validated lesson spark returned to callers.
type GenerationResult struct {
	Title  string `json:"titulo"`
	Format string `json:"tipo"`
	Hook   string `json:"centelha"`
}

// StageOptions describes one stage and its grades for option listings.
type StageOptions struct {
	Stage  EducationStage `json:"stage"`
	Label  string         `json:"label"`
	Grades []string       `json:"grades"`
}

// Options lists every stage with its grades plus the subjects.
type Options struct {
	Subjects []string       `json:"subjects"`
	Stages   []StageOptions `json:"stages"`
}

// AllOptions returns the selectable subjects, stages and grades.
func AllOptions() Options {
	opts := Options{Subjects: slices.Clone(Subjects)}
	for _, s := range Stages {
		opts.Stages = append(opts.Stages, StageOptions{Stage: s, Label: s.Label(), Grades: s.Grades()})
	}
	return opts
}
