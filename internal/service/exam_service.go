package service

import (
	"fmt"
	"log"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
)

// ExamService provides read access to the exam catalog
type ExamService struct {
	examRepo     repository.ExamRepository
	questionRepo repository.QuestionRepository
	cacheRepo    repository.CacheRepository
	questionTTL  time.Duration
}

// NewExamService creates a new exam catalog service
func NewExamService(
	examRepo repository.ExamRepository,
	questionRepo repository.QuestionRepository,
	cacheRepo repository.CacheRepository,
	questionTTL time.Duration,
) *ExamService {
	if questionTTL <= 0 {
		questionTTL = 10 * time.Minute
	}
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		cacheRepo:    cacheRepo,
		questionTTL:  questionTTL,
	}
}

// ListExams returns the exam catalog filtered by subject, year level and type
func (s *ExamService) ListExams(filters repository.ExamFilters, limit, offset int) ([]entity.Exam, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.examRepo.List(filters, limit, offset)
}

// GetExam returns one exam by ID
func (s *ExamService) GetExam(examID uint) (*entity.Exam, error) {
	return s.examRepo.GetByID(examID)
}

// GetExamQuestions returns the ordered question set for an exam, cached in
// Redis under exam:{id}:questions. Cache failures fall through to the store.
func (s *ExamService) GetExamQuestions(examID uint) ([]entity.Question, error) {
	cacheKey := fmt.Sprintf("exam:%d:questions", examID)

	if s.cacheRepo != nil {
		var cached []entity.Question
		if err := s.cacheRepo.GetJSON(cacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	questions, err := s.questionRepo.GetByExamID(examID)
	if err != nil {
		return nil, err
	}

	if s.cacheRepo != nil && len(questions) > 0 {
		if err := s.cacheRepo.SetJSON(cacheKey, questions, s.questionTTL); err != nil {
			log.Printf("[ExamService] failed to cache questions for exam %d: %v", examID, err)
		}
	}

	return questions, nil
}
