package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/hems/examhall/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var examContentRegex = regexp.MustCompile(`(?i)</?\s*exam-content\b[^>]*>`)

// Variant selects a study tips prompt.
type Variant string

const (
	// VariantConcise asks for one-sentence tips.
	VariantConcise Variant = "concise"
	// VariantDetailed asks for tips with explanations and exercises.
	VariantDetailed Variant = "detailed"
)

var validVariants = map[Variant]bool{
	VariantConcise:  true,
	VariantDetailed: true,
}

// maxFieldRunes bounds each question or answer text placed in a prompt.
const maxFieldRunes = 2000

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// TipsData holds template data for study tips prompts.
type TipsData struct {
	ExamTitle string
	Missed    []model.MissedQuestion
	MaxTips   int
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Load parses the embedded prompt templates once.
func Load() error {
	loadOnce.Do(func() {
		loadErr = load(templateFS)
	})
	return loadErr
}

func load(fsys fs.FS) error {
	templates = make(map[Variant]*template.Template)
	for v := range validVariants {
		name := "templates/tips_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read prompt file %s: %w", name, err)
		}
		tmpl, err := template.New(string(v)).Funcs(funcs).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		templates[v] = tmpl
	}
	return nil
}

// BuildStudyTips renders the study tips prompt for a set of missed questions.
func BuildStudyTips(variant Variant, examTitle string, missed []model.MissedQuestion, maxTips int) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	if maxTips <= 0 {
		maxTips = 3
	}

	data := TipsData{ExamTitle: sanitize(examTitle), MaxTips: maxTips}
	for _, m := range missed {
		data.Missed = append(data.Missed, model.MissedQuestion{
			Question: sanitize(m.Question),
			Chosen:   sanitize(m.Chosen),
			Correct:  sanitize(m.Correct),
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize strips content delimiters and bounds the length of text taken
// from exam data.
func sanitize(s string) string {
	s = strings.TrimSpace(examContentRegex.ReplaceAllString(s, ""))
	if utf8.RuneCountInString(s) > maxFieldRunes {
		s = string([]rune(s)[:maxFieldRunes]) + " [truncated]"
	}
	return s
}
