package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// AttemptRepo implements repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo creates a new attempt repository
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Create inserts a new attempt record.
// Partial unique index idx_attempt_single_active guarantees max one
// in_progress attempt per (user_id, exam_id); a 23505 unique violation maps
// to repository.ErrAttemptAlreadyActive.
func (r *AttemptRepo) Create(attempt *entity.Attempt) error {
	if err := r.db.Create(attempt).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: exam #%d", repository.ErrAttemptAlreadyActive, attempt.ExamID)
		}
		return err
	}
	return nil
}

// GetByID returns an attempt by ID
func (r *AttemptRepo) GetByID(id string) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := r.db.First(&attempt, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// GetInProgress returns the user's in_progress attempt for an exam, if any
func (r *AttemptRepo) GetInProgress(userID, examID uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := r.db.Where("user_id = ? AND exam_id = ? AND status = ?",
		userID, examID, entity.AttemptStatusInProgress).
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// SaveProgress persists an autosave snapshot. Conditional on the row still
// being in_progress so a debounced save that fires after submission cannot
// clobber terminal fields.
func (r *AttemptRepo) SaveProgress(id string, progress repository.AttemptProgress) error {
	result := r.db.Model(&entity.Attempt{}).
		Where("id = ? AND status = ?", id, entity.AttemptStatusInProgress).
		Updates(map[string]interface{}{
			"answers":        progress.Answers,
			"flagged":        progress.Flagged,
			"tab_switches":   progress.TabSwitches,
			"copy_attempts":  progress.CopyAttempts,
			"paste_attempts": progress.PasteAttempts,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrAttemptNotInProgress
	}
	return nil
}

// Complete writes the terminal fields exactly once. The status predicate makes
// the transition in_progress -> completed atomic: the second of two racing
// submits affects zero rows and gets ErrAttemptNotInProgress.
func (r *AttemptRepo) Complete(id string, completion repository.AttemptCompletion) error {
	result := r.db.Model(&entity.Attempt{}).
		Where("id = ? AND status = ?", id, entity.AttemptStatusInProgress).
		Updates(map[string]interface{}{
			"status":             entity.AttemptStatusCompleted,
			"completed_at":       completion.CompletedAt,
			"answers":            completion.Answers,
			"flagged":            completion.Flagged,
			"score":              completion.Score,
			"total_points":       completion.TotalPoints,
			"percentage":         completion.Percentage,
			"time_spent_seconds": completion.TimeSpentSeconds,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrAttemptNotInProgress
	}
	return nil
}

// GetUserAttempts returns the user's attempts, newest first, with total count
func (r *AttemptRepo) GetUserAttempts(userID uint, limit, offset int) ([]entity.Attempt, int64, error) {
	var attempts []entity.Attempt
	var total int64

	query := r.db.Model(&entity.Attempt{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Limit(limit).Offset(offset).
		Order("started_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

// GetCompletedByUser returns all completed attempts for a user, oldest first.
// The ordering matters: the improvement trend compares early attempts against
// recent ones.
func (r *AttemptRepo) GetCompletedByUser(userID uint) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.Where("user_id = ? AND status = ?", userID, entity.AttemptStatusCompleted).
		Order("completed_at ASC").
		Find(&attempts).Error
	return attempts, err
}

// GetCompletedByUserAndExam returns a user's completed attempts for one exam, oldest first
func (r *AttemptRepo) GetCompletedByUserAndExam(userID, examID uint) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.Where("user_id = ? AND exam_id = ? AND status = ?",
		userID, examID, entity.AttemptStatusCompleted).
		Order("completed_at ASC").
		Find(&attempts).Error
	return attempts, err
}

// isUniqueViolation checks a Postgres unique violation (23505) for both the
// pgconn and lib/pq drivers
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
