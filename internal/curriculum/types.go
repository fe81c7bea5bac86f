package curriculum

import (
	"fmt"
	"math"
	"strings"
)

// Difficulty is the tier a learner asks for when requesting a roadmap.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// rank orders tiers from easiest to hardest. Unknown tiers rank as Beginner.
func (d Difficulty) rank() int {
	switch d {
	case Intermediate:
		return 1
	case Advanced:
		return 2
	default:
		return 0
	}
}

// ParseDifficulty normalises a tier name. An empty string yields Beginner.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Beginner, nil
	case Beginner, Intermediate, Advanced:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// Kind distinguishes weekly quizzes from the cumulative final exam.
type Kind string

const (
	KindWeekly Kind = "weekly"
	KindFinal  Kind = "final"
)

// MaxWeek is the largest module number a curriculum may use. Module numbers
// are stored as 32-bit integers.
const MaxWeek = math.MaxInt32

// Module is one weekly unit of a curriculum.
type Module struct {
	Number      int      `json:"week" yaml:"week"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	KeyConcepts []string `json:"key_concepts" yaml:"key_concepts"`
}

// Question is a single multiple-choice assessment item.
type Question struct {
	ID          string   `json:"id" yaml:"id"`
	Prompt      string   `json:"question" yaml:"question"`
	Options     []string `json:"options" yaml:"options"`
	Correct     int      `json:"correct_index" yaml:"correct_index"`
	Explanation string   `json:"explanation" yaml:"explanation"`
}

// CurriculumRequest asks for a roadmap on a topic.
type CurriculumRequest struct {
	Learner    string
	Topic      string
	Difficulty Difficulty
}

// Scope describes which question set to produce.
// Weekly scopes carry Title and Concepts; final scopes carry ModuleTitles.
type Scope struct {
	Kind         Kind
	Learner      string
	Topic        string
	Difficulty   Difficulty
	Title        string
	Concepts     []string
	ModuleTitles []string
	Count        int
}

// Question counts agreed with content generators.
const (
	WeeklyQuestionCount = 10
	FinalQuestionCount  = 20
)

// DefaultCount returns the contracted number of questions for a kind.
func DefaultCount(k Kind) int {
	if k == KindFinal {
		return FinalQuestionCount
	}
	return WeeklyQuestionCount
}
