package attemptmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// Session owns the in-memory state of one active attempt: answers, flags,
// the current-question cursor and the attempt status. All mutations are
// guarded on status; once the attempt leaves in_progress every mutation is an
// ErrInvalidState no-op. Submission is single-flight: the clock-expiry
// auto-submit and a user-triggered submit are mutually exclusive, the loser
// observes status != in_progress.
type Session struct {
	config *Config
	deps   *Dependencies

	mu          sync.Mutex
	attempt     *entity.Attempt
	exam        *entity.Exam
	questions   []entity.Question
	questionIDs map[uint]struct{}
	cursor      int
	submitting  bool
	warned      map[int]bool

	autosaver *Autosaver
	countdown *Countdown
	cancel    context.CancelFunc
	onDone    func(attemptID string)
}

func newSession(config *Config, deps *Dependencies, exam *entity.Exam, questions []entity.Question, attempt *entity.Attempt, onDone func(string)) *Session {
	ids := make(map[uint]struct{}, len(questions))
	for i := range questions {
		ids[questions[i].ID] = struct{}{}
	}

	s := &Session{
		config:      config,
		deps:        deps,
		attempt:     attempt,
		exam:        exam,
		questions:   questions,
		questionIDs: ids,
		warned:      make(map[int]bool),
		onDone:      onDone,
	}

	s.countdown = NewCountdown(attempt.StartedAt, exam.DurationMinutes, config.TickInterval, deps.Now)
	s.autosaver = NewAutosaver(config.AutosaveDebounce, config.AutosaveInterval, s.persistProgress, func(status SaveStatus) {
		deps.events().Publish(attempt.ID, "attempt:save_status", map[string]interface{}{
			"status": string(status),
		})
	})

	return s
}

// start spawns the countdown and autosave goroutines
func (s *Session) start(ctx context.Context) {
	sessionCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.autosaver.Run(sessionCtx)
	go s.countdown.Run(sessionCtx, s.onTick, func() {
		log.Printf("[Session] attempt %s: time expired, auto-submitting", s.AttemptID())
		if _, err := s.Submit(sessionCtx, entity.SubmitReasonTimeout); err != nil && !errors.Is(err, apperrors.ErrInvalidState) {
			log.Printf("[Session] attempt %s: auto-submit failed: %v", s.AttemptID(), err)
		}
	})
}

// stop cancels the session goroutines and removes it from the manager
func (s *Session) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.onDone != nil {
		s.onDone(s.AttemptID())
	}
}

// AttemptID returns the attempt's identifier
func (s *Session) AttemptID() string {
	return s.attempt.ID
}

// UserID returns the owning user
func (s *Session) UserID() uint {
	return s.attempt.UserID
}

// Exam returns the immutable exam reference data
func (s *Session) Exam() *entity.Exam {
	return s.exam
}

// Questions returns the ordered question set
func (s *Session) Questions() []entity.Question {
	return s.questions
}

// Remaining returns the seconds left, derived from started_at
func (s *Session) Remaining() int {
	return s.countdown.Remaining()
}

// SaveStatus returns the autosave indicator
func (s *Session) SaveStatus() SaveStatus {
	return s.autosaver.Status()
}

// Snapshot returns a copy of the attempt record as currently held in memory
func (s *Session) Snapshot() entity.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := *s.attempt
	snapshot.Answers = s.attempt.Answers.Clone()
	snapshot.Flagged = append(entity.UintArray{}, s.attempt.Flagged...)
	return snapshot
}

// CurrentIndex returns the navigation cursor
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// SelectAnswer upserts the user's answer for a question. Valid only while the
// attempt is in progress; the value is not checked against the canonical
// answer here (scoring is deferred to submission). Persistence is delegated
// to the autosaver.
func (s *Session) SelectAnswer(questionID uint, value string) error {
	s.mu.Lock()
	if !s.mutableLocked() {
		s.mu.Unlock()
		return apperrors.ErrInvalidState
	}
	if _, ok := s.questionIDs[questionID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: question #%d does not belong to exam #%d", apperrors.ErrValidation, questionID, s.exam.ID)
	}
	s.attempt.Answers[questionID] = value
	fingerprint := s.fingerprintLocked()
	s.mu.Unlock()

	s.autosaver.MarkDirty(fingerprint)
	return nil
}

// ToggleFlag adds or removes the review flag for a question. Advisory only;
// flags never affect scoring.
func (s *Session) ToggleFlag(questionID uint) error {
	s.mu.Lock()
	if !s.mutableLocked() {
		s.mu.Unlock()
		return apperrors.ErrInvalidState
	}
	if _, ok := s.questionIDs[questionID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: question #%d does not belong to exam #%d", apperrors.ErrValidation, questionID, s.exam.ID)
	}

	if s.attempt.Flagged.Contains(questionID) {
		kept := make(entity.UintArray, 0, len(s.attempt.Flagged)-1)
		for _, id := range s.attempt.Flagged {
			if id != questionID {
				kept = append(kept, id)
			}
		}
		s.attempt.Flagged = kept
	} else {
		s.attempt.Flagged = append(s.attempt.Flagged, questionID)
	}
	fingerprint := s.fingerprintLocked()
	s.mu.Unlock()

	s.autosaver.MarkDirty(fingerprint)
	return nil
}

// GoTo moves the current-question cursor; bounds-checked, no side effects
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.questions) {
		return fmt.Errorf("%w: question index %d out of range [0, %d)", apperrors.ErrValidation, index, len(s.questions))
	}
	s.cursor = index
	return nil
}

// RecordSignals updates the anti-cheat counters. Recording only; the core
// attaches no meaning to the numbers.
func (s *Session) RecordSignals(tabSwitches, copyAttempts, pasteAttempts int) error {
	s.mu.Lock()
	if !s.mutableLocked() {
		s.mu.Unlock()
		return apperrors.ErrInvalidState
	}
	if tabSwitches > s.attempt.TabSwitches {
		s.attempt.TabSwitches = tabSwitches
	}
	if copyAttempts > s.attempt.CopyAttempts {
		s.attempt.CopyAttempts = copyAttempts
	}
	if pasteAttempts > s.attempt.PasteAttempts {
		s.attempt.PasteAttempts = pasteAttempts
	}
	fingerprint := s.fingerprintLocked()
	s.mu.Unlock()

	s.autosaver.MarkDirty(fingerprint)
	return nil
}

// Submit finalizes the attempt: derives time spent from the clock, scores the
// answers and writes the terminal record. Guarded to execute at most once; a
// second caller (user click racing the timeout) observes ErrInvalidState and
// is a no-op. If the persistence write fails the attempt REMAINS in progress
// and the in-memory answers are untouched, so the caller can retry.
func (s *Session) Submit(ctx context.Context, reason string) (*entity.Attempt, error) {
	s.mu.Lock()
	if !s.attempt.IsInProgress() || s.submitting {
		s.mu.Unlock()
		return nil, apperrors.ErrInvalidState
	}
	s.submitting = true
	answers := s.attempt.Answers.Clone()
	flagged := append(entity.UintArray{}, s.attempt.Flagged...)
	s.mu.Unlock()

	// Any debounced autosave that fires from here on is ignored: the
	// completion write below must be the causally-last write to the record.
	s.autosaver.Suspend()

	// Cross-process idempotency: the first submitter claims the marker, a
	// racing session in another process concedes without touching the store.
	// Cache errors fall through; the conditional write is authoritative.
	if s.deps.CacheRepo != nil {
		acquired, nxErr := s.deps.CacheRepo.SetNX(submitMarkerKey(s.attempt.ID), reason, submitMarkerTTL)
		if nxErr == nil && !acquired {
			log.Printf("[Session] attempt %s: submit marker already claimed, conceding", s.attempt.ID)
			return s.concedeSubmit()
		}
	}

	now := s.deps.now()
	remaining := RemainingSeconds(s.attempt.StartedAt, s.exam.DurationMinutes, now)
	score := ScoreAttempt(s.questions, answers)

	completion := repository.AttemptCompletion{
		Answers:          answers,
		Flagged:          flagged,
		Score:            score.Earned,
		TotalPoints:      score.Total,
		Percentage:       score.Percentage,
		TimeSpentSeconds: TimeSpentSeconds(s.exam.DurationMinutes, remaining),
		CompletedAt:      now,
	}

	if err := s.deps.AttemptRepo.Complete(s.attempt.ID, completion); err != nil {
		if errors.Is(err, repository.ErrAttemptNotInProgress) {
			// The record is already terminal (another writer won). Sync the
			// in-memory state and treat this call as the losing no-op.
			return s.concedeSubmit()
		}

		log.Printf("[Session] attempt %s: submit write failed, staying in progress: %v", s.attempt.ID, err)
		if s.deps.CacheRepo != nil {
			// Release the marker so the retry can claim it again.
			_ = s.deps.CacheRepo.Delete(submitMarkerKey(s.attempt.ID))
		}
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
		s.autosaver.Resume()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSubmitFailed, err)
	}

	s.mu.Lock()
	s.attempt.Status = entity.AttemptStatusCompleted
	s.attempt.CompletedAt = &completion.CompletedAt
	s.attempt.Answers = answers
	s.attempt.Flagged = flagged
	s.attempt.Score = &completion.Score
	s.attempt.TotalPoints = &completion.TotalPoints
	s.attempt.Percentage = &completion.Percentage
	s.attempt.TimeSpentSeconds = &completion.TimeSpentSeconds
	s.submitting = false
	final := *s.attempt
	s.mu.Unlock()

	s.autosaver.Stop()
	s.stop()

	if s.deps.CacheRepo != nil {
		_ = s.deps.CacheRepo.Delete(activeAttemptKey(final.UserID, final.ExamID))
	}

	s.deps.events().Publish(s.attempt.ID, "attempt:completed", map[string]interface{}{
		"reason":     reason,
		"score":      completion.Score,
		"percentage": completion.Percentage,
	})
	log.Printf("[Session] attempt %s completed (reason=%s, score=%d/%d)",
		s.attempt.ID, reason, completion.Score, completion.TotalPoints)

	return &final, nil
}

// concedeSubmit is the losing half of a submit race: the record is terminal
// elsewhere, so sync the in-memory state, wind the session down and report
// the attempt as no longer mutable.
func (s *Session) concedeSubmit() (*entity.Attempt, error) {
	s.mu.Lock()
	s.attempt.Status = entity.AttemptStatusCompleted
	s.submitting = false
	s.mu.Unlock()
	s.autosaver.Stop()
	s.stop()
	return nil, apperrors.ErrInvalidState
}

// onTick pushes one-shot time warnings at configured thresholds
func (s *Session) onTick(remaining int) {
	for _, threshold := range s.config.TimeWarningsSec {
		if remaining > threshold {
			continue
		}
		s.mu.Lock()
		already := s.warned[threshold]
		if !already {
			s.warned[threshold] = true
		}
		s.mu.Unlock()
		if !already {
			s.deps.events().Publish(s.attempt.ID, "attempt:time_warning", map[string]interface{}{
				"remaining_seconds": remaining,
				"threshold":         threshold,
			})
		}
	}
}

// persistProgress is the SaveFunc handed to the autosaver. It snapshots the
// current state under the lock and issues a conditional write; a terminal
// record losing the race is not an error.
func (s *Session) persistProgress(ctx context.Context) error {
	s.mu.Lock()
	if !s.attempt.IsInProgress() {
		s.mu.Unlock()
		return nil
	}
	progress := repository.AttemptProgress{
		Answers:       s.attempt.Answers.Clone(),
		Flagged:       append(entity.UintArray{}, s.attempt.Flagged...),
		TabSwitches:   s.attempt.TabSwitches,
		CopyAttempts:  s.attempt.CopyAttempts,
		PasteAttempts: s.attempt.PasteAttempts,
	}
	id := s.attempt.ID
	s.mu.Unlock()

	err := s.deps.AttemptRepo.SaveProgress(id, progress)
	if errors.Is(err, repository.ErrAttemptNotInProgress) {
		return nil
	}
	return err
}

// mutableLocked reports whether mutations are currently allowed.
// Caller holds s.mu.
func (s *Session) mutableLocked() bool {
	return s.attempt.IsInProgress() && !s.submitting
}

// fingerprintLocked serializes the persistable state for redundant-write
// detection. Caller holds s.mu.
func (s *Session) fingerprintLocked() string {
	payload := struct {
		Answers entity.AnswerMap `json:"answers"`
		Flagged entity.UintArray `json:"flagged"`
		Tab     int              `json:"tab"`
		Copy    int              `json:"copy"`
		Paste   int              `json:"paste"`
	}{
		Answers: s.attempt.Answers,
		Flagged: s.attempt.Flagged,
		Tab:     s.attempt.TabSwitches,
		Copy:    s.attempt.CopyAttempts,
		Paste:   s.attempt.PasteAttempts,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Cannot happen for these types; fall back to always-dirty.
		return fmt.Sprintf("%p-%d", s.attempt, len(s.attempt.Answers))
	}
	return string(data)
}
