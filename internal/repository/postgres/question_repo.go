package postgres

import (
	"gorm.io/gorm"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// QuestionRepo implements repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo creates a new question repository
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// GetByExamID returns the exam's questions ordered by question_number
func (r *QuestionRepo) GetByExamID(examID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("exam_id = ?", examID).
		Order("question_number ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}
