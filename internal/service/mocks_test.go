package service

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
)

// ============================================================================
// Shared repository mocks for the service tests
// ============================================================================

// MockExamRepo implements repository.ExamRepository
type MockExamRepo struct {
	mock.Mock
}

func (m *MockExamRepo) GetByID(id uint) (*entity.Exam, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Exam), args.Error(1)
}

func (m *MockExamRepo) List(filters repository.ExamFilters, limit, offset int) ([]entity.Exam, int64, error) {
	args := m.Called(filters, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Exam), args.Get(1).(int64), args.Error(2)
}

// MockQuestionRepo implements repository.QuestionRepository
type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) GetByExamID(examID uint) ([]entity.Question, error) {
	args := m.Called(examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

// MockAttemptRepo implements repository.AttemptRepository
type MockAttemptRepo struct {
	mock.Mock
}

func (m *MockAttemptRepo) Create(attempt *entity.Attempt) error {
	args := m.Called(attempt)
	return args.Error(0)
}

func (m *MockAttemptRepo) GetByID(id string) (*entity.Attempt, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepo) GetInProgress(userID, examID uint) (*entity.Attempt, error) {
	args := m.Called(userID, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepo) SaveProgress(id string, progress repository.AttemptProgress) error {
	args := m.Called(id, progress)
	return args.Error(0)
}

func (m *MockAttemptRepo) Complete(id string, completion repository.AttemptCompletion) error {
	args := m.Called(id, completion)
	return args.Error(0)
}

func (m *MockAttemptRepo) GetUserAttempts(userID uint, limit, offset int) ([]entity.Attempt, int64, error) {
	args := m.Called(userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Attempt), args.Get(1).(int64), args.Error(2)
}

func (m *MockAttemptRepo) GetCompletedByUser(userID uint) ([]entity.Attempt, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepo) GetCompletedByUserAndExam(userID, examID uint) ([]entity.Attempt, error) {
	args := m.Called(userID, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Attempt), args.Error(1)
}

// MockCacheRepo implements repository.CacheRepository
type MockCacheRepo struct {
	mock.Mock
}

func (m *MockCacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepo) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepo) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}
