package repository

import (
	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// QuestionRepository defines read-only access to an exam's question set.
// Questions are returned ordered by question_number; they are immutable once
// an attempt references them.
type QuestionRepository interface {
	GetByExamID(examID uint) ([]entity.Question, error)
}
