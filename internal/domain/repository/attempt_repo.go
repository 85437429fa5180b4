package repository

import (
	"errors"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// Attempt repository errors
var (
	// ErrAttemptAlreadyActive is returned when a user already has an
	// in_progress attempt for the exam (enforced by a partial unique index).
	ErrAttemptAlreadyActive = errors.New("user already has an active attempt for this exam")

	// ErrAttemptNotInProgress is returned by guarded writes when the attempt
	// record has already left in_progress. The final submit write and the
	// autosave write are both conditional on status, so a stale writer
	// observes this instead of clobbering terminal fields.
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
)

// AttemptProgress carries the fields an autosave cycle persists
type AttemptProgress struct {
	Answers       entity.AnswerMap
	Flagged       entity.UintArray
	TabSwitches   int
	CopyAttempts  int
	PasteAttempts int
}

// AttemptCompletion carries the terminal fields written exactly once on submit
type AttemptCompletion struct {
	Answers          entity.AnswerMap
	Flagged          entity.UintArray
	Score            int
	TotalPoints      int
	Percentage       int
	TimeSpentSeconds int
	CompletedAt      time.Time
}

// AttemptRepository defines persistence for exam attempts. SaveProgress and
// Complete are conditional writes: they only touch rows still in_progress,
// which makes the final submit the causally-last write to the record.
type AttemptRepository interface {
	Create(attempt *entity.Attempt) error
	GetByID(id string) (*entity.Attempt, error)
	GetInProgress(userID, examID uint) (*entity.Attempt, error)
	SaveProgress(id string, progress AttemptProgress) error
	Complete(id string, completion AttemptCompletion) error
	GetUserAttempts(userID uint, limit, offset int) ([]entity.Attempt, int64, error)
	GetCompletedByUser(userID uint) ([]entity.Attempt, error)
	GetCompletedByUserAndExam(userID, examID uint) ([]entity.Attempt, error)
}
