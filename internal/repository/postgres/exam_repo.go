package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// ExamRepo implements repository.ExamRepository
type ExamRepo struct {
	db *gorm.DB
}

// NewExamRepo creates a new exam repository
func NewExamRepo(db *gorm.DB) *ExamRepo {
	return &ExamRepo{db: db}
}

// GetByID returns an exam by ID
func (r *ExamRepo) GetByID(id uint) (*entity.Exam, error) {
	var exam entity.Exam
	err := r.db.First(&exam, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &exam, nil
}

// List returns exams matching the filters plus the total count
func (r *ExamRepo) List(filters repository.ExamFilters, limit, offset int) ([]entity.Exam, int64, error) {
	var exams []entity.Exam
	var total int64

	query := r.db.Model(&entity.Exam{})

	if filters.Subject != "" {
		query = query.Where("subject = ?", filters.Subject)
	}
	if filters.YearLevel > 0 {
		query = query.Where("year_level = ?", filters.YearLevel)
	}
	if filters.ExamType != "" {
		query = query.Where("exam_type = ?", filters.ExamType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Limit(limit).Offset(offset).
		Order("year_level ASC, subject ASC, id ASC").
		Find(&exams).Error
	if err != nil {
		return nil, 0, err
	}

	return exams, total, nil
}
