package attemptmanager

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// fakeExamRepo serves a fixed exam catalog
type fakeExamRepo struct {
	exams map[uint]*entity.Exam
}

func (f *fakeExamRepo) GetByID(id uint) (*entity.Exam, error) {
	exam, ok := f.exams[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *exam
	return &copied, nil
}

func (f *fakeExamRepo) List(filters repository.ExamFilters, limit, offset int) ([]entity.Exam, int64, error) {
	out := make([]entity.Exam, 0, len(f.exams))
	for _, e := range f.exams {
		out = append(out, *e)
	}
	return out, int64(len(out)), nil
}

// fakeQuestionRepo serves a fixed question set per exam
type fakeQuestionRepo struct {
	byExam map[uint][]entity.Question
}

func (f *fakeQuestionRepo) GetByExamID(examID uint) ([]entity.Question, error) {
	return f.byExam[examID], nil
}

// fakeAttemptRepo is an in-memory store with the same conditional-write
// semantics as the postgres implementation: progress and completion writes
// only touch records still in_progress.
type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*entity.Attempt

	saveCalls     int
	completeCalls int
	failSave      bool
	failComplete  bool
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[string]*entity.Attempt)}
}

func (f *fakeAttemptRepo) Create(attempt *entity.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.UserID == attempt.UserID && a.ExamID == attempt.ExamID && a.Status == entity.AttemptStatusInProgress {
			return repository.ErrAttemptAlreadyActive
		}
	}
	copied := *attempt
	f.attempts[attempt.ID] = &copied
	return nil
}

func (f *fakeAttemptRepo) GetByID(id string) (*entity.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *a
	copied.Answers = a.Answers.Clone()
	copied.Flagged = append(entity.UintArray{}, a.Flagged...)
	return &copied, nil
}

func (f *fakeAttemptRepo) GetInProgress(userID, examID uint) (*entity.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.UserID == userID && a.ExamID == examID && a.Status == entity.AttemptStatusInProgress {
			copied := *a
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeAttemptRepo) SaveProgress(id string, progress repository.AttemptProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.failSave {
		return assertError("save failed")
	}
	a, ok := f.attempts[id]
	if !ok || a.Status != entity.AttemptStatusInProgress {
		return repository.ErrAttemptNotInProgress
	}
	a.Answers = progress.Answers.Clone()
	a.Flagged = append(entity.UintArray{}, progress.Flagged...)
	a.TabSwitches = progress.TabSwitches
	a.CopyAttempts = progress.CopyAttempts
	a.PasteAttempts = progress.PasteAttempts
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAttemptRepo) Complete(id string, completion repository.AttemptCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	if f.failComplete {
		return assertError("complete failed")
	}
	a, ok := f.attempts[id]
	if !ok || a.Status != entity.AttemptStatusInProgress {
		return repository.ErrAttemptNotInProgress
	}
	a.Status = entity.AttemptStatusCompleted
	completedAt := completion.CompletedAt
	a.CompletedAt = &completedAt
	a.Answers = completion.Answers.Clone()
	a.Flagged = append(entity.UintArray{}, completion.Flagged...)
	score, total, pct, spent := completion.Score, completion.TotalPoints, completion.Percentage, completion.TimeSpentSeconds
	a.Score = &score
	a.TotalPoints = &total
	a.Percentage = &pct
	a.TimeSpentSeconds = &spent
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAttemptRepo) GetUserAttempts(userID uint, limit, offset int) ([]entity.Attempt, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeAttemptRepo) GetCompletedByUser(userID uint) ([]entity.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID && a.Status == entity.AttemptStatusCompleted {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) GetCompletedByUserAndExam(userID, examID uint) ([]entity.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID && a.ExamID == examID && a.Status == entity.AttemptStatusCompleted {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) stored(id string) *entity.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.attempts[id]
	if a == nil {
		return nil
	}
	copied := *a
	return &copied
}

func (f *fakeAttemptRepo) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

func (f *fakeAttemptRepo) completeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls
}

func (f *fakeAttemptRepo) setFailComplete(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failComplete = fail
}

// assertError is a plain error distinct from the repository sentinels
type assertError string

func (e assertError) Error() string { return string(e) }

// fakeCache is a map-backed CacheRepository
type fakeCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string][]byte)}
}

func (c *fakeCache) Set(key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = []byte(fmt.Sprint(value))
	return nil
}

func (c *fakeCache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return string(data), nil
}

func (c *fakeCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *fakeCache) SetJSON(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	return nil
}

func (c *fakeCache) GetJSON(key string, dest interface{}) error {
	c.mu.Lock()
	data, ok := c.items[key]
	c.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

func (c *fakeCache) Exists(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok, nil
}

func (c *fakeCache) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	_, exists := c.items[key]
	c.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, c.SetJSON(key, value, expiration)
}

// recordingEvents captures published events for assertions
type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	AttemptID string
	Type      string
	Data      interface{}
}

func (r *recordingEvents) Publish(attemptID string, eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{AttemptID: attemptID, Type: eventType, Data: data})
}

func (r *recordingEvents) ofType(eventType string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
