package progression

import (
	"fmt"
	"time"

	"github.com/p-n-ai/skillforge/internal/curriculum"
)

// Pass thresholds in percent of questions answered correctly.
const (
	WeeklyPassPercent = 70
	FinalPassPercent  = 80
)

// PassPercent returns the pass threshold for an assessment kind.
func PassPercent(k curriculum.Kind) int {
	if k == curriculum.KindFinal {
		return FinalPassPercent
	}
	return WeeklyPassPercent
}

// Session is one in-progress run of a weekly quiz or the final exam.
// Sessions are never persisted as part of a plan; a retake is a new session.
type Session struct {
	ID        string                `json:"id"`
	PlanID    string                `json:"plan_id"`
	Owner     string                `json:"owner"`
	Kind      curriculum.Kind       `json:"kind"`
	Module    int                   `json:"module,omitempty"` // weekly only
	Questions []curriculum.Question `json:"questions"`
	Answers   map[int]int           `json:"answers"`
	StartedAt time.Time             `json:"started_at"`
	Submitted bool                  `json:"submitted"`
	Result    *Result               `json:"result,omitempty"` // set on submit
}

// QuestionOutcome reports how one question was answered.
type QuestionOutcome struct {
	Prompt      string `json:"question"`
	Selected    int    `json:"selected"`
	CorrectIdx  int    `json:"correct_index"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

// Result is the scored outcome of a submitted session.
type Result struct {
	SessionID   string            `json:"session_id"`
	Kind        curriculum.Kind   `json:"kind"`
	Module      int               `json:"module,omitempty"`
	Score       int               `json:"score"`
	Total       int               `json:"total"`
	Passed      bool              `json:"passed"`
	PerQuestion []QuestionOutcome `json:"per_question"`
}

// Unanswered returns the indexes of questions without an answer.
func (s *Session) Unanswered() []int {
	var missing []int
	for i := range s.Questions {
		if _, ok := s.Answers[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// RecordAnswer stores the selected option for question q. Later answers to
// the same question replace earlier ones.
func (s *Session) RecordAnswer(q, option int) error {
	if s.Submitted {
		return ErrSessionClosed
	}
	if q < 0 || q >= len(s.Questions) {
		return fmt.Errorf("%w: question %d out of range [0,%d)", ErrInvalidAnswer, q, len(s.Questions))
	}
	if n := len(s.Questions[q].Options); option < 0 || option >= n {
		return fmt.Errorf("%w: option %d out of range [0,%d)", ErrInvalidAnswer, option, n)
	}
	if s.Answers == nil {
		s.Answers = make(map[int]int, len(s.Questions))
	}
	s.Answers[q] = option
	return nil
}

// Submit scores the session and closes it. It does not touch the plan;
// callers act on a passing result through CompleteModule or IssueCredential.
func (s *Session) Submit() (Result, error) {
	if s.Submitted {
		return Result{}, ErrSessionClosed
	}
	if len(s.Questions) == 0 {
		return Result{}, fmt.Errorf("%w: session has no questions", ErrIncompleteSubmission)
	}
	if missing := s.Unanswered(); len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %d of %d unanswered", ErrIncompleteSubmission, len(missing), len(s.Questions))
	}

	res := Result{
		SessionID:   s.ID,
		Kind:        s.Kind,
		Module:      s.Module,
		Total:       len(s.Questions),
		PerQuestion: make([]QuestionOutcome, len(s.Questions)),
	}
	for i, q := range s.Questions {
		selected := s.Answers[i]
		correct := selected == q.Correct
		if correct {
			res.Score++
		}
		res.PerQuestion[i] = QuestionOutcome{
			Prompt:      q.Prompt,
			Selected:    selected,
			CorrectIdx:  q.Correct,
			Correct:     correct,
			Explanation: q.Explanation,
		}
	}
	res.Passed = passes(res.Score, res.Total, PassPercent(s.Kind))
	s.Submitted = true
	s.Result = &res
	return res, nil
}

// passes compares in integers so that exact thresholds such as 7/10 pass.
func passes(score, total, percent int) bool {
	return score*100 >= percent*total
}
