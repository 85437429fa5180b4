package repository

import (
	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// ExamFilters narrows exam catalog listings
type ExamFilters struct {
	Subject   string
	YearLevel int
	ExamType  string
}

// ExamRepository defines read access to the exam catalog
type ExamRepository interface {
	GetByID(id uint) (*entity.Exam, error)
	List(filters ExamFilters, limit, offset int) ([]entity.Exam, int64, error)
}
