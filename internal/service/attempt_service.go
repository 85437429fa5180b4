package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service/attemptmanager"
)

// AttemptState is the live view of an in-progress attempt handed to clients:
// the attempt record plus server-derived clock and autosave state.
type AttemptState struct {
	Attempt          entity.Attempt    `json:"attempt"`
	Questions        []entity.Question `json:"questions"`
	RemainingSeconds int               `json:"remaining_seconds"`
	CurrentIndex     int               `json:"current_index"`
	SaveStatus       string            `json:"save_status"`
}

// AttemptService is the facade over the attempt manager and the stores. All
// operations are scoped to the calling user; acting on someone else's attempt
// is ErrForbidden.
type AttemptService struct {
	manager      *attemptmanager.Manager
	examRepo     repository.ExamRepository
	questionRepo repository.QuestionRepository
	attemptRepo  repository.AttemptRepository
	emailService EmailService
}

// NewAttemptService creates a new attempt service
func NewAttemptService(
	manager *attemptmanager.Manager,
	examRepo repository.ExamRepository,
	questionRepo repository.QuestionRepository,
	attemptRepo repository.AttemptRepository,
	emailService EmailService,
) *AttemptService {
	if emailService == nil {
		emailService = &NoopEmailService{}
	}
	return &AttemptService{
		manager:      manager,
		examRepo:     examRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		emailService: emailService,
	}
}

// Start creates a new attempt on the exam and returns its initial state
func (s *AttemptService) Start(ctx context.Context, examID, userID uint) (*AttemptState, error) {
	session, err := s.manager.Start(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	return s.stateOf(session), nil
}

// Get returns the live state of an attempt, resuming it if no session is
// active (e.g. after a page reload or a server restart). A completed attempt
// comes back as its persisted record with zero remaining time.
func (s *AttemptService) Get(ctx context.Context, attemptID string, userID uint) (*AttemptState, error) {
	session, err := s.manager.Resume(ctx, attemptID, userID)
	if err == nil {
		return s.stateOf(session), nil
	}
	if !errors.Is(err, apperrors.ErrInvalidState) {
		return nil, err
	}

	// Terminal attempt: serve the stored record.
	attempt, repoErr := s.ownedAttempt(attemptID, userID)
	if repoErr != nil {
		return nil, repoErr
	}
	return &AttemptState{
		Attempt:          *attempt,
		RemainingSeconds: 0,
		SaveStatus:       string(attemptmanager.SaveStatusSaved),
	}, nil
}

// ActiveAttempt finds the user's in-progress attempt on an exam and returns
// its live state, so the exam page can offer resume instead of a fresh start.
// ErrNotFound when nothing is active (including a stale pointer to an attempt
// that has since completed).
func (s *AttemptService) ActiveAttempt(ctx context.Context, examID, userID uint) (*AttemptState, error) {
	attemptID, err := s.manager.ActiveAttemptID(userID, examID)
	if err != nil {
		return nil, err
	}

	state, err := s.Get(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if !state.Attempt.IsInProgress() {
		return nil, apperrors.ErrNotFound
	}
	return state, nil
}

// SelectAnswer records the user's answer for a question
func (s *AttemptService) SelectAnswer(ctx context.Context, attemptID string, userID, questionID uint, answer string) error {
	session, err := s.manager.Resume(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	return session.SelectAnswer(questionID, answer)
}

// ToggleFlag flips the review flag on a question
func (s *AttemptService) ToggleFlag(ctx context.Context, attemptID string, userID, questionID uint) error {
	session, err := s.manager.Resume(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	return session.ToggleFlag(questionID)
}

// GoTo moves the attempt's current-question cursor
func (s *AttemptService) GoTo(ctx context.Context, attemptID string, userID uint, index int) error {
	session, err := s.manager.Resume(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	return session.GoTo(index)
}

// RecordSignals stores the client-reported anti-cheat counters
func (s *AttemptService) RecordSignals(ctx context.Context, attemptID string, userID uint, tabSwitches, copyAttempts, pasteAttempts int) error {
	session, err := s.manager.Resume(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	return session.RecordSignals(tabSwitches, copyAttempts, pasteAttempts)
}

// Submit finalizes the attempt and kicks off the summary email. The email is
// best-effort: a send failure never affects the submit result.
func (s *AttemptService) Submit(ctx context.Context, attemptID string, userID uint, email string) (*entity.Attempt, error) {
	session, err := s.manager.Resume(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	final, err := session.Submit(ctx, entity.SubmitReasonUser)
	if err != nil {
		return nil, err
	}

	if email != "" {
		exam := session.Exam()
		go func(exam entity.Exam, attempt entity.Attempt) {
			sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.emailService.SendAttemptSummary(sendCtx, email, &exam, &attempt); err != nil {
				log.Printf("[AttemptService] summary email for attempt %s failed: %v", attempt.ID, err)
			}
		}(*exam, *final)
	}

	return final, nil
}

// QuestionReview pairs a question with the user's answer for the result page.
// The canonical answer is exposed here and only here: never while the attempt
// is in progress.
type QuestionReview struct {
	Question      entity.Question `json:"question"`
	CorrectAnswer string          `json:"correct_answer"`
	UserAnswer    string          `json:"user_answer"`
	Answered      bool            `json:"answered"`
	Correct       bool            `json:"correct"`
	Flagged       bool            `json:"flagged"`
}

// AttemptResult is the full result view of a completed attempt
type AttemptResult struct {
	Attempt entity.Attempt   `json:"attempt"`
	Exam    entity.Exam      `json:"exam"`
	Review  []QuestionReview `json:"review"`
}

// GetResult returns the scored result with the per-question review. Only
// completed attempts have results.
func (s *AttemptService) GetResult(attemptID string, userID uint) (*AttemptResult, error) {
	attempt, err := s.ownedAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsCompleted() {
		return nil, fmt.Errorf("%w: attempt is not completed", apperrors.ErrInvalidState)
	}

	exam, err := s.examRepo.GetByID(attempt.ExamID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.GetByExamID(attempt.ExamID)
	if err != nil {
		return nil, err
	}

	review := make([]QuestionReview, 0, len(questions))
	for i := range questions {
		q := questions[i]
		answer, answered := attempt.Answers[q.ID]
		review = append(review, QuestionReview{
			Question:      q,
			CorrectAnswer: q.CorrectAnswer,
			UserAnswer:    answer,
			Answered:      answered && answer != "",
			Correct:       answered && attemptmanager.IsAnswerCorrect(&q, answer),
			Flagged:       attempt.Flagged.Contains(q.ID),
		})
	}

	return &AttemptResult{
		Attempt: *attempt,
		Exam:    *exam,
		Review:  review,
	}, nil
}

// ListUserAttempts returns the user's attempt history, newest first. With a
// non-zero examID only the completed attempts on that exam are returned,
// oldest first, so the history reads as a progress timeline.
func (s *AttemptService) ListUserAttempts(userID, examID uint, limit, offset int) ([]entity.Attempt, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	if examID != 0 {
		attempts, err := s.attemptRepo.GetCompletedByUserAndExam(userID, examID)
		if err != nil {
			return nil, 0, err
		}
		total := int64(len(attempts))
		if offset >= len(attempts) {
			return []entity.Attempt{}, total, nil
		}
		end := offset + limit
		if end > len(attempts) {
			end = len(attempts)
		}
		return attempts[offset:end], total, nil
	}

	return s.attemptRepo.GetUserAttempts(userID, limit, offset)
}

// Shutdown stops all live sessions; in-progress attempts stay resumable
func (s *AttemptService) Shutdown() {
	s.manager.Shutdown()
}

func (s *AttemptService) ownedAttempt(attemptID string, userID uint) (*entity.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return attempt, nil
}

func (s *AttemptService) stateOf(session *attemptmanager.Session) *AttemptState {
	return &AttemptState{
		Attempt:          session.Snapshot(),
		Questions:        session.Questions(),
		RemainingSeconds: session.Remaining(),
		CurrentIndex:     session.CurrentIndex(),
		SaveStatus:       string(session.SaveStatus()),
	}
}
