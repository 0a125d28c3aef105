// Package generate turns a procedure document into a model.Procedure. Step
// text is produced elsewhere; this package only normalises what it is given.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/sopd/internal/model"
)

const (
	DefaultName            = "Untitled SOP"
	DefaultStepDuration    = 10
	procedureIDPrefix      = "sop-"
	stepIDPrefix           = "step-"
	defaultStepTitlePrefix = "Step "
)

var ErrNoDocument = errors.New("generate: no procedure document found")

// Generator produces an ordered step list with per-step duration estimates.
type Generator interface {
	Generate(ctx context.Context, input string) (model.Procedure, error)
}

var (
	fenceRe  = regexp.MustCompile("```(?:json|yaml|yml)?[ \t]*\n?")
	objectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

type document struct {
	Name          string         `json:"name" yaml:"name"`
	Summary       string         `json:"summary" yaml:"summary"`
	Steps         []stepDocument `json:"steps" yaml:"steps"`
	UnclearPoints []string       `json:"unclearPoints" yaml:"unclearPoints"`
}

type stepDocument struct {
	Number            int      `json:"stepNumber" yaml:"stepNumber"`
	Title             string   `json:"title" yaml:"title"`
	Description       string   `json:"description" yaml:"description"`
	Owner             string   `json:"owner" yaml:"owner"`
	EstimatedDuration int      `json:"estimatedDuration" yaml:"estimatedDuration"`
	Tips              []string `json:"tips" yaml:"tips"`
}

// DocumentGenerator reads a JSON or YAML procedure document. Markdown code
// fences are ignored and JSON may be surrounded by prose.
type DocumentGenerator struct {
	Now   func() time.Time
	NewID func() string
}

func NewDocumentGenerator() *DocumentGenerator {
	return &DocumentGenerator{}
}

func (g *DocumentGenerator) Generate(ctx context.Context, input string) (model.Procedure, error) {
	if err := ctx.Err(); err != nil {
		return model.Procedure{}, err
	}
	doc, err := parseDocument(input)
	if err != nil {
		return model.Procedure{}, err
	}
	return g.build(doc), nil
}

func parseDocument(input string) (document, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(input, ""))
	if cleaned == "" {
		return document{}, ErrNoDocument
	}

	if !strings.HasPrefix(cleaned, "{") {
		var doc document
		var fields map[string]any
		if yaml.Unmarshal([]byte(cleaned), &fields) == nil && looksLikeProcedure(fields) {
			if err := yaml.Unmarshal([]byte(cleaned), &doc); err != nil {
				return document{}, fmt.Errorf("parse procedure yaml: %w", err)
			}
			return doc, nil
		}
	}

	match := objectRe.FindString(cleaned)
	if match == "" {
		return document{}, ErrNoDocument
	}
	var doc document
	if err := json.Unmarshal([]byte(match), &doc); err != nil {
		return document{}, fmt.Errorf("parse procedure json: %w", err)
	}
	return doc, nil
}

func looksLikeProcedure(m map[string]any) bool {
	for _, key := range []string{"name", "summary", "steps"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

func (g *DocumentGenerator) build(doc document) model.Procedure {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	newID := func() string { return procedureIDPrefix + uuid.NewString() }
	if g.NewID != nil {
		newID = g.NewID
	}

	steps := make([]model.Step, 0, len(doc.Steps))
	for i, s := range doc.Steps {
		n := i + 1
		step := model.Step{
			ID:                fmt.Sprintf("%s%d", stepIDPrefix, n),
			Number:            s.Number,
			Title:             strings.TrimSpace(s.Title),
			Description:       s.Description,
			Owner:             s.Owner,
			EstimatedDuration: s.EstimatedDuration,
			Tips:              s.Tips,
		}
		if step.Number == 0 {
			step.Number = n
		}
		if step.Title == "" {
			step.Title = fmt.Sprintf("%s%d", defaultStepTitlePrefix, n)
		}
		if step.EstimatedDuration == 0 {
			step.EstimatedDuration = DefaultStepDuration
		}
		if step.Tips == nil {
			step.Tips = []string{}
		}
		steps = append(steps, step)
	}

	name := strings.TrimSpace(doc.Name)
	if name == "" {
		name = DefaultName
	}
	unclear := doc.UnclearPoints
	if unclear == nil {
		unclear = []string{}
	}
	return model.Procedure{
		ID:            newID(),
		Name:          name,
		Summary:       doc.Summary,
		TotalDuration: model.SumDurations(steps),
		Steps:         steps,
		UnclearPoints: unclear,
		CreatedAt:     now().UTC(),
	}
}
