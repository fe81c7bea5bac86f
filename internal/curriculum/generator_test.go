package curriculum_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/skillforge/internal/curriculum"
)

type stubGenerator struct {
	modules   []curriculum.Module
	questions []curriculum.Question
	err       error
	calls     int
}

func (s *stubGenerator) GenerateCurriculum(context.Context, curriculum.CurriculumRequest) ([]curriculum.Module, error) {
	s.calls++
	return s.modules, s.err
}

func (s *stubGenerator) GenerateAssessment(context.Context, curriculum.Scope) ([]curriculum.Question, error) {
	s.calls++
	return s.questions, s.err
}

func TestChain_FirstSuccessWins(t *testing.T) {
	failing := &stubGenerator{err: errors.New("down")}
	ok := &stubGenerator{modules: []curriculum.Module{{Number: 1, Title: "A"}}}
	unused := &stubGenerator{modules: []curriculum.Module{{Number: 9, Title: "Z"}}}

	chain := curriculum.NewChain().Add("ai", failing).Add("catalog", ok).Add("spare", unused)

	modules, err := chain.GenerateCurriculum(context.Background(), curriculum.CurriculumRequest{Topic: "x"})
	if err != nil {
		t.Fatalf("GenerateCurriculum() error = %v", err)
	}
	if len(modules) != 1 || modules[0].Title != "A" {
		t.Errorf("modules = %+v, want the catalog result", modules)
	}
	if unused.calls != 0 {
		t.Errorf("generator after a success was called %d times", unused.calls)
	}
}

func TestChain_AllFail(t *testing.T) {
	chain := curriculum.NewChain().
		Add("a", &stubGenerator{err: errors.New("a down")}).
		Add("b", &stubGenerator{err: errors.New("b down")})

	_, err := chain.GenerateAssessment(context.Background(), curriculum.Scope{Kind: curriculum.KindWeekly})
	if !errors.Is(err, curriculum.ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}
}

func TestChain_Empty(t *testing.T) {
	_, err := curriculum.NewChain().GenerateCurriculum(context.Background(), curriculum.CurriculumRequest{})
	if !errors.Is(err, curriculum.ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in      string
		want    curriculum.Difficulty
		wantErr bool
	}{
		{"", curriculum.Beginner, false},
		{"Advanced", curriculum.Advanced, false},
		{" intermediate ", curriculum.Intermediate, false},
		{"expert", "", true},
	}
	for _, tt := range tests {
		got, err := curriculum.ParseDifficulty(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDifficulty(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDifficulty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
