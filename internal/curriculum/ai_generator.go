package curriculum

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/skillforge/internal/ai"
)

// Completer is the subset of the AI router the generator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// AIGeneratorConfig holds dependencies for the AI-backed generator.
type AIGeneratorConfig struct {
	AI     Completer
	Budget ai.BudgetChecker // optional per-learner token quota
	Model  string
	// Weeks overrides the roadmap length per difficulty.
	Weeks map[Difficulty]int
}

// AIGenerator asks a language model for curricula and question sets as JSON.
type AIGenerator struct {
	ai     Completer
	budget ai.BudgetChecker
	model  string
	weeks  map[Difficulty]int
}

var defaultWeeks = map[Difficulty]int{
	Beginner:     4,
	Intermediate: 6,
	Advanced:     8,
}

// NewAIGenerator creates a generator backed by the given completer.
func NewAIGenerator(cfg AIGeneratorConfig) *AIGenerator {
	weeks := make(map[Difficulty]int, len(defaultWeeks))
	for d, n := range defaultWeeks {
		weeks[d] = n
	}
	for d, n := range cfg.Weeks {
		if n > 0 {
			weeks[d] = n
		}
	}
	return &AIGenerator{
		ai:     cfg.AI,
		budget: cfg.Budget,
		model:  cfg.Model,
		weeks:  weeks,
	}
}

type curriculumDoc struct {
	Modules []Module `json:"modules"`
}

type questionsDoc struct {
	Questions []Question `json:"questions"`
}

func (g *AIGenerator) GenerateCurriculum(ctx context.Context, req CurriculumRequest) ([]Module, error) {
	weeks := g.weeks[req.Difficulty]
	if weeks == 0 {
		weeks = g.weeks[Beginner]
	}

	content, err := g.complete(ctx, req.Learner, ai.TaskCurriculum, curriculumPrompt(req, weeks))
	if err != nil {
		return nil, err
	}

	var doc curriculumDoc
	if err := decode(curriculumSchema, content, &doc); err != nil {
		return nil, err
	}
	modules, err := normalizeModules(doc.Modules)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	slog.Info("curriculum generated",
		"learner", req.Learner,
		"topic", req.Topic,
		"difficulty", req.Difficulty,
		"modules", len(modules),
	)
	return modules, nil
}

func (g *AIGenerator) GenerateAssessment(ctx context.Context, scope Scope) ([]Question, error) {
	if scope.Count <= 0 {
		scope.Count = DefaultCount(scope.Kind)
	}
	task := ai.TaskWeeklyQuiz
	if scope.Kind == KindFinal {
		task = ai.TaskFinalExam
	}

	content, err := g.complete(ctx, scope.Learner, task, assessmentPrompt(scope))
	if err != nil {
		return nil, err
	}

	var doc questionsDoc
	if err := decode(questionsSchema, content, &doc); err != nil {
		return nil, err
	}
	questions, err := normalizeQuestions(scope.Kind, doc.Questions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if len(questions) != scope.Count {
		slog.Warn("generator returned unexpected question count",
			"kind", scope.Kind,
			"want", scope.Count,
			"got", len(questions),
		)
	}
	return questions, nil
}

func (g *AIGenerator) complete(ctx context.Context, learner string, task ai.TaskType, prompt string) (string, error) {
	if g.budget != nil && learner != "" {
		ok, err := g.budget.Check(ctx, learner)
		if err != nil {
			slog.Warn("budget check failed, allowing request", "learner", learner, "error", err)
		} else if !ok {
			return "", fmt.Errorf("%w: %w", ErrGeneration, ai.ErrBudgetExhausted)
		}
	}

	resp, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Model:     g.model,
		Task:      task,
		MaxTokens: 4096,
		JSON:      true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	if g.budget != nil && learner != "" {
		if err := g.budget.Record(ctx, learner, resp.TotalTokens()); err != nil {
			slog.Warn("failed to record token usage", "learner", learner, "error", err)
		}
	}
	return resp.Content, nil
}

func decode(s schemaValidator, content string, v any) error {
	doc, err := extractJSON(content)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if err := validateDocument(s, doc); err != nil {
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return fmt.Errorf("%w: decode generated JSON: %w", ErrGeneration, err)
	}
	return nil
}

const systemPrompt = `You are SkillForge, a curriculum designer for a business consulting academy.
Always answer with a single JSON object and nothing else.`

func curriculumPrompt(req CurriculumRequest, weeks int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Design a %d-week study roadmap on %q for a %s learner.\n\n", weeks, req.Topic, req.Difficulty)
	sb.WriteString("Requirements:\n")
	sb.WriteString("- Number weeks from 1 upward, one module per week\n")
	sb.WriteString("- Each week builds on the previous one\n")
	sb.WriteString("- Give each week a short title, a two-sentence description and 3-5 key concepts\n\n")
	sb.WriteString(`Respond as {"modules":[{"week":1,"title":"...","description":"...","key_concepts":["..."]}]}`)
	return sb.String()
}

func assessmentPrompt(scope Scope) string {
	var sb strings.Builder
	if scope.Kind == KindFinal {
		fmt.Fprintf(&sb, "Write a cumulative final exam of %d multiple choice questions for the course %q.\n", scope.Count, scope.Topic)
		sb.WriteString("Cover every one of these weekly modules:\n")
		for _, t := range scope.ModuleTitles {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
	} else {
		fmt.Fprintf(&sb, "Write a quiz of %d multiple choice questions on the module %q.\n", scope.Count, scope.Title)
		if len(scope.Concepts) > 0 {
			fmt.Fprintf(&sb, "Focus on these concepts: %s.\n", strings.Join(scope.Concepts, ", "))
		}
	}
	if scope.Difficulty != "" {
		fmt.Fprintf(&sb, "Difficulty level: %s\n", scope.Difficulty)
	}
	sb.WriteString("\nRequirements:\n")
	sb.WriteString("- Exactly 4 options per question, one correct\n")
	sb.WriteString("- correct_index is the 0-based index of the correct option\n")
	sb.WriteString("- Add a one-sentence explanation of the correct answer\n\n")
	sb.WriteString(`Respond as {"questions":[{"question":"...","options":["a","b","c","d"],"correct_index":0,"explanation":"..."}]}`)
	return sb.String()
}
