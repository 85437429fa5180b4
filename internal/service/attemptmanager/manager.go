package attemptmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// activeAttemptGrace pads the resumable-attempt pointer's TTL past the exam
// time limit so an expired attempt can still be found and timeout-submitted.
const activeAttemptGrace = 15 * time.Minute

// submitMarkerTTL keeps the cross-process submit marker around long enough to
// cover any straggling writer; the conditional status update remains the
// authority on the record itself.
const submitMarkerTTL = 24 * time.Hour

// activeAttemptKey points at the user's in-progress attempt on an exam
func activeAttemptKey(userID, examID uint) string {
	return fmt.Sprintf("user:%d:exam:%d:active_attempt", userID, examID)
}

// submitMarkerKey guards the terminal write across processes
func submitMarkerKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:submitted", attemptID)
}

// Manager is the registry of active attempt sessions. It creates attempts,
// rebuilds sessions after a process restart (the durable clock makes resume
// safe) and routes mutations to the owning session.
type Manager struct {
	config *Config
	deps   *Dependencies

	mu       sync.Mutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates an attempt manager. The background context bounds the
// lifetime of all session goroutines.
func NewManager(config *Config, deps *Dependencies) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:   config,
		deps:     deps,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start creates a new attempt for the user on the given exam and spins up its
// session. At most one in-progress attempt may exist per (user, exam); a
// second start while one is active returns ErrConflict.
func (m *Manager) Start(ctx context.Context, examID, userID uint) (*Session, error) {
	exam, err := m.deps.ExamRepo.GetByID(examID)
	if err != nil {
		return nil, err
	}

	questions, err := m.loadQuestions(examID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: exam #%d has no questions", apperrors.ErrNotFound, examID)
	}

	// total_points is fixed by the question set, so it is known (and stored)
	// from the first write, not only after completion.
	totalPoints := 0
	for i := range questions {
		totalPoints += questions[i].Points
	}

	attempt := &entity.Attempt{
		ID:          uuid.NewString(),
		ExamID:      examID,
		UserID:      userID,
		Status:      entity.AttemptStatusInProgress,
		StartedAt:   m.deps.now(),
		Answers:     entity.AnswerMap{},
		Flagged:     entity.UintArray{},
		TotalPoints: &totalPoints,
	}

	if err := m.deps.AttemptRepo.Create(attempt); err != nil {
		if errors.Is(err, repository.ErrAttemptAlreadyActive) {
			return nil, fmt.Errorf("%w: an attempt for exam #%d is already in progress", apperrors.ErrConflict, examID)
		}
		return nil, err
	}

	if m.deps.CacheRepo != nil {
		ttl := time.Duration(exam.DurationSeconds())*time.Second + activeAttemptGrace
		if err := m.deps.CacheRepo.Set(activeAttemptKey(userID, examID), attempt.ID, ttl); err != nil {
			log.Printf("[AttemptManager] failed to cache active-attempt pointer for user %d, exam %d: %v", userID, examID, err)
		}
	}

	session := m.register(exam, questions, attempt)
	log.Printf("[AttemptManager] attempt %s started (exam=%d, user=%d, duration=%dm)",
		attempt.ID, examID, userID, exam.DurationMinutes)
	return session, nil
}

// ActiveAttemptID resolves the user's in-progress attempt on an exam: the
// cache pointer written at start first, the store as fallback (pointer misses
// happen after TTL expiry or a cache flush). ErrNotFound when nothing is
// active.
func (m *Manager) ActiveAttemptID(userID, examID uint) (string, error) {
	if m.deps.CacheRepo != nil {
		if id, err := m.deps.CacheRepo.Get(activeAttemptKey(userID, examID)); err == nil && id != "" {
			return id, nil
		}
	}

	attempt, err := m.deps.AttemptRepo.GetInProgress(userID, examID)
	if err != nil {
		return "", err
	}
	return attempt.ID, nil
}

// Resume returns the live session for an in-progress attempt, rebuilding it
// from the persisted record if the process restarted since the attempt began.
// Remaining time is re-derived from started_at, so an attempt whose clock ran
// out while no session existed is submitted as a timeout here instead of
// being resumed.
func (m *Manager) Resume(ctx context.Context, attemptID string, userID uint) (*Session, error) {
	m.mu.Lock()
	session, ok := m.sessions[attemptID]
	m.mu.Unlock()
	if ok {
		if session.UserID() != userID {
			return nil, apperrors.ErrForbidden
		}
		return session, nil
	}

	attempt, err := m.deps.AttemptRepo.GetByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	if !attempt.IsInProgress() {
		return nil, apperrors.ErrInvalidState
	}

	exam, err := m.deps.ExamRepo.GetByID(attempt.ExamID)
	if err != nil {
		return nil, err
	}
	questions, err := m.loadQuestions(attempt.ExamID)
	if err != nil {
		return nil, err
	}

	if attempt.Answers == nil {
		attempt.Answers = entity.AnswerMap{}
	}
	if attempt.Flagged == nil {
		attempt.Flagged = entity.UintArray{}
	}

	session = m.register(exam, questions, attempt)

	if session.Remaining() <= 0 {
		log.Printf("[AttemptManager] attempt %s expired while offline, submitting as timeout", attemptID)
		if _, err := session.Submit(ctx, entity.SubmitReasonTimeout); err != nil && !errors.Is(err, apperrors.ErrInvalidState) {
			return nil, err
		}
		return nil, apperrors.ErrInvalidState
	}

	log.Printf("[AttemptManager] attempt %s resumed (user=%d, remaining=%ds)",
		attemptID, userID, session.Remaining())
	return session, nil
}

// Get returns the live session for an attempt, or ErrNotFound if no session
// is active for it.
func (m *Manager) Get(attemptID string, userID uint) (*Session, error) {
	m.mu.Lock()
	session, ok := m.sessions[attemptID]
	m.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if session.UserID() != userID {
		return nil, apperrors.ErrForbidden
	}
	return session, nil
}

// Shutdown cancels all session goroutines. In-flight attempts stay
// in_progress in the store and are resumable after restart.
func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	count := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	if count > 0 {
		log.Printf("[AttemptManager] shut down with %d active sessions (resumable)", count)
	}
}

// register creates the session, stores it and starts its goroutines
func (m *Manager) register(exam *entity.Exam, questions []entity.Question, attempt *entity.Attempt) *Session {
	session := newSession(m.config, m.deps, exam, questions, attempt, m.remove)
	m.mu.Lock()
	m.sessions[attempt.ID] = session
	m.mu.Unlock()
	session.start(m.ctx)
	return session
}

// remove drops a completed session from the registry
func (m *Manager) remove(attemptID string) {
	m.mu.Lock()
	delete(m.sessions, attemptID)
	m.mu.Unlock()
}

// loadQuestions fetches the ordered question set, via the cache when possible.
// Cache failures fall through to the repository.
func (m *Manager) loadQuestions(examID uint) ([]entity.Question, error) {
	cacheKey := fmt.Sprintf("exam:%d:questions", examID)

	if m.deps.CacheRepo != nil {
		var cached []entity.Question
		if err := m.deps.CacheRepo.GetJSON(cacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	questions, err := m.deps.QuestionRepo.GetByExamID(examID)
	if err != nil {
		return nil, err
	}

	if m.deps.CacheRepo != nil && len(questions) > 0 {
		ttl := m.config.QuestionCacheTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		if err := m.deps.CacheRepo.SetJSON(cacheKey, questions, ttl); err != nil {
			log.Printf("[AttemptManager] failed to cache questions for exam %d: %v", examID, err)
		}
	}

	return questions, nil
}
