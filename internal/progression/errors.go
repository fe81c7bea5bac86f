package progression

import (
	"errors"

	"github.com/p-n-ai/skillforge/internal/curriculum"
)

// Failure kinds surfaced by the engine. Check them with errors.Is.
var (
	// ErrGeneration means the content generator was unavailable or returned unusable data.
	ErrGeneration = curriculum.ErrGeneration
	// ErrPersistence means the durable store could not be reached or refused the write.
	ErrPersistence = errors.New("persistence failed")

	ErrModuleLocked         = errors.New("module is locked")
	ErrFinalLocked          = errors.New("final assessment is locked")
	ErrIncompleteSubmission = errors.New("assessment has unanswered questions")
	ErrInvalidAnswer        = errors.New("invalid answer")
	ErrModuleNotFound       = errors.New("module not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrSessionClosed        = errors.New("assessment already submitted")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSessionNotFound      = errors.New("assessment session not found")
)

// Retryable reports whether the same call may succeed if simply repeated.
func Retryable(err error) bool {
	return errors.Is(err, ErrGeneration) || errors.Is(err, ErrPersistence)
}
