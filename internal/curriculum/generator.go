// Package curriculum produces study roadmaps and assessment question sets,
// either from an AI provider or from a pre-authored catalog on disk.
package curriculum

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// ErrGeneration marks any failure to obtain usable content.
var ErrGeneration = errors.New("content generation failed")

// Generator produces curricula and question sets.
type Generator interface {
	GenerateCurriculum(ctx context.Context, req CurriculumRequest) ([]Module, error)
	GenerateAssessment(ctx context.Context, scope Scope) ([]Question, error)
}

// Chain tries generators in order and returns the first usable result.
type Chain struct {
	names      []string
	generators []Generator
}

// NewChain creates an empty generator chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a named generator to the chain.
func (c *Chain) Add(name string, g Generator) *Chain {
	c.names = append(c.names, name)
	c.generators = append(c.generators, g)
	return c
}

// Len returns the number of generators in the chain.
func (c *Chain) Len() int {
	return len(c.generators)
}

func (c *Chain) GenerateCurriculum(ctx context.Context, req CurriculumRequest) ([]Module, error) {
	var errs []error
	for i, g := range c.generators {
		modules, err := g.GenerateCurriculum(ctx, req)
		if err == nil {
			return modules, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrGeneration, ctx.Err())
		}
		slog.Warn("curriculum generator failed, trying next",
			"generator", c.names[i],
			"topic", req.Topic,
			"error", err,
		)
		errs = append(errs, fmt.Errorf("%s: %w", c.names[i], err))
	}
	return nil, chainError(errs)
}

func (c *Chain) GenerateAssessment(ctx context.Context, scope Scope) ([]Question, error) {
	var errs []error
	for i, g := range c.generators {
		questions, err := g.GenerateAssessment(ctx, scope)
		if err == nil {
			return questions, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrGeneration, ctx.Err())
		}
		slog.Warn("assessment generator failed, trying next",
			"generator", c.names[i],
			"kind", scope.Kind,
			"error", err,
		)
		errs = append(errs, fmt.Errorf("%s: %w", c.names[i], err))
	}
	return nil, chainError(errs)
}

func chainError(errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("%w: no generators configured", ErrGeneration)
	}
	return fmt.Errorf("%w: %w", ErrGeneration, errors.Join(errs...))
}

// normalizeModules checks module numbering and returns the modules sorted by week.
func normalizeModules(modules []Module) ([]Module, error) {
	if len(modules) == 0 {
		return nil, errors.New("curriculum has no modules")
	}
	seen := make(map[int]bool, len(modules))
	out := make([]Module, 0, len(modules))
	for _, m := range modules {
		if m.Number < 0 || m.Number > MaxWeek {
			return nil, fmt.Errorf("week number %d out of range", m.Number)
		}
		if seen[m.Number] {
			return nil, fmt.Errorf("duplicate week number %d", m.Number)
		}
		seen[m.Number] = true
		m.Title = strings.TrimSpace(m.Title)
		if m.Title == "" {
			return nil, fmt.Errorf("week %d has no title", m.Number)
		}
		m.KeyConcepts = slices.DeleteFunc(slices.Clone(m.KeyConcepts), func(s string) bool {
			return strings.TrimSpace(s) == ""
		})
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Module) int { return cmp.Compare(a.Number, b.Number) })
	return out, nil
}

// normalizeQuestions validates each item and assigns stable IDs where missing.
func normalizeQuestions(kind Kind, questions []Question) ([]Question, error) {
	if len(questions) == 0 {
		return nil, errors.New("question set is empty")
	}
	out := make([]Question, 0, len(questions))
	for i, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("question %d has no prompt", i+1)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %d has %d options, need at least 2", i+1, len(q.Options))
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return nil, fmt.Errorf("question %d correct index %d out of range", i+1, q.Correct)
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("%s-%02d", kind, i+1)
		}
		q.Options = slices.Clone(q.Options)
		out = append(out, q)
	}
	return out, nil
}
