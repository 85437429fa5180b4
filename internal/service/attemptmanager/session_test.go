package attemptmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

type sessionFixture struct {
	session  *Session
	attempts *fakeAttemptRepo
	events   *recordingEvents
	now      time.Time
	nowMu    sync.Mutex
}

func (f *sessionFixture) advance(d time.Duration) {
	f.nowMu.Lock()
	f.now = f.now.Add(d)
	f.nowMu.Unlock()
}

// newSessionFixture builds a session over the in-memory store without
// starting its background goroutines; tests drive saves and submits directly.
func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		attempts: newFakeAttemptRepo(),
		events:   &recordingEvents{},
		now:      time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC),
	}

	exam := &entity.Exam{ID: 1, Title: "Year 5 Numeracy", Subject: "math", YearLevel: 5, DurationMinutes: 40}
	questions := sampleQuestions()

	attempt := &entity.Attempt{
		ID:        "11111111-1111-1111-1111-111111111111",
		ExamID:    exam.ID,
		UserID:    7,
		Status:    entity.AttemptStatusInProgress,
		StartedAt: f.now,
		Answers:   entity.AnswerMap{},
		Flagged:   entity.UintArray{},
	}
	require.NoError(t, f.attempts.Create(attempt))

	deps := &Dependencies{
		AttemptRepo: f.attempts,
		Events:      f.events,
		Now: func() time.Time {
			f.nowMu.Lock()
			defer f.nowMu.Unlock()
			return f.now
		},
	}

	f.session = newSession(DefaultConfig(), deps, exam, questions, attempt, nil)
	return f
}

func TestSession_SelectAnswerAndToggleFlag(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session

	require.NoError(t, s.SelectAnswer(1, "B"))
	require.NoError(t, s.SelectAnswer(1, "C")) // reselect overwrites
	require.NoError(t, s.ToggleFlag(2))

	snapshot := s.Snapshot()
	assert.Equal(t, "C", snapshot.Answers[1])
	assert.True(t, snapshot.Flagged.Contains(2))

	require.NoError(t, s.ToggleFlag(2)) // second toggle clears
	assert.False(t, s.Snapshot().Flagged.Contains(2))
}

func TestSession_SelectAnswerRejectsForeignQuestion(t *testing.T) {
	f := newSessionFixture(t)

	err := f.session.SelectAnswer(999, "A")

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, f.session.Snapshot().Answers)
}

func TestSession_GoToBounds(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session

	assert.NoError(t, s.GoTo(0))
	assert.NoError(t, s.GoTo(3))
	assert.Equal(t, 3, s.CurrentIndex())

	assert.ErrorIs(t, s.GoTo(-1), apperrors.ErrValidation)
	assert.ErrorIs(t, s.GoTo(4), apperrors.ErrValidation)
	assert.Equal(t, 3, s.CurrentIndex(), "failed navigation leaves cursor unchanged")
}

func TestSession_RecordSignalsIsMonotonic(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session

	require.NoError(t, s.RecordSignals(3, 1, 0))
	require.NoError(t, s.RecordSignals(2, 0, 2)) // stale lower counters are ignored

	snapshot := s.Snapshot()
	assert.Equal(t, 3, snapshot.TabSwitches)
	assert.Equal(t, 1, snapshot.CopyAttempts)
	assert.Equal(t, 2, snapshot.PasteAttempts)
}

func TestSession_SubmitScoresAndCompletes(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session

	require.NoError(t, s.SelectAnswer(1, "B"))
	require.NoError(t, s.SelectAnswer(2, "C"))
	require.NoError(t, s.SelectAnswer(4, "4"))
	f.advance(10 * time.Minute)

	final, err := s.Submit(context.Background(), entity.SubmitReasonUser)
	require.NoError(t, err)

	require.NotNil(t, final.Score)
	assert.Equal(t, 4, *final.Score)
	assert.Equal(t, 5, *final.TotalPoints)
	assert.Equal(t, 80, *final.Percentage)
	assert.Equal(t, 600, *final.TimeSpentSeconds)
	assert.Equal(t, entity.AttemptStatusCompleted, final.Status)
	require.NotNil(t, final.CompletedAt)

	stored := f.attempts.stored(s.AttemptID())
	require.NotNil(t, stored)
	assert.Equal(t, entity.AttemptStatusCompleted, stored.Status)
	assert.Equal(t, 4, *stored.Score)

	completed := f.events.ofType("attempt:completed")
	require.Len(t, completed, 1)
}

func TestSession_SubmitIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session
	require.NoError(t, s.SelectAnswer(1, "B"))

	_, err := s.Submit(context.Background(), entity.SubmitReasonUser)
	require.NoError(t, err)

	// Second submit (e.g. the timeout racing the click) is a no-op.
	_, err = s.Submit(context.Background(), entity.SubmitReasonTimeout)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	stored := f.attempts.stored(s.AttemptID())
	assert.Equal(t, 5, *stored.TotalPoints, "terminal fields written exactly once")
	assert.Len(t, f.events.ofType("attempt:completed"), 1)
}

func TestSession_ConcurrentSubmitsCompleteOnce(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session
	require.NoError(t, s.SelectAnswer(1, "B"))

	const goroutines = 8
	var wg sync.WaitGroup
	results := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Submit(context.Background(), entity.SubmitReasonUser)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, invalidState int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrInvalidState):
			invalidState++
		default:
			t.Errorf("unexpected submit error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one submit wins")
	assert.Equal(t, goroutines-1, invalidState)
	assert.Len(t, f.events.ofType("attempt:completed"), 1)
}

func TestSession_TimeoutSubmitSpendsFullDuration(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session
	require.NoError(t, s.SelectAnswer(1, "B"))

	f.advance(45 * time.Minute) // past the 40 minute limit

	final, err := s.Submit(context.Background(), entity.SubmitReasonTimeout)
	require.NoError(t, err)

	assert.Equal(t, 40*60, *final.TimeSpentSeconds)
	assert.Equal(t, entity.AttemptStatusCompleted, final.Status)
}

func TestSession_FailedSubmitStaysInProgress(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session
	require.NoError(t, s.SelectAnswer(1, "B"))

	f.attempts.setFailComplete(true)
	_, err := s.Submit(context.Background(), entity.SubmitReasonUser)
	assert.ErrorIs(t, err, apperrors.ErrSubmitFailed)

	// Attempt remains mutable and a retry succeeds.
	assert.NoError(t, s.SelectAnswer(2, "C"))
	assert.Equal(t, entity.AttemptStatusInProgress, f.attempts.stored(s.AttemptID()).Status)

	f.attempts.setFailComplete(false)
	final, err := s.Submit(context.Background(), entity.SubmitReasonUser)
	require.NoError(t, err)
	assert.Equal(t, 2, *final.Score)
}

func TestSession_MutationsAfterCompletionAreInvalidState(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session

	_, err := s.Submit(context.Background(), entity.SubmitReasonUser)
	require.NoError(t, err)

	assert.ErrorIs(t, s.SelectAnswer(1, "A"), apperrors.ErrInvalidState)
	assert.ErrorIs(t, s.ToggleFlag(1), apperrors.ErrInvalidState)
	assert.ErrorIs(t, s.RecordSignals(1, 0, 0), apperrors.ErrInvalidState)
}

func TestSession_SubmitWinsAgainstExternalCompletion(t *testing.T) {
	// Another writer completed the record first; this session's submit must
	// become a no-op and sync its in-memory state.
	f := newSessionFixture(t)
	s := f.session

	other, err := f.attempts.GetByID(s.AttemptID())
	require.NoError(t, err)
	require.NoError(t, f.attempts.Complete(other.ID, completionFor(other)))

	_, err = s.Submit(context.Background(), entity.SubmitReasonUser)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, entity.AttemptStatusCompleted, s.Snapshot().Status)
}

func TestSession_PersistProgressTreatsTerminalRecordAsNoop(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session
	require.NoError(t, s.SelectAnswer(1, "B"))

	other, err := f.attempts.GetByID(s.AttemptID())
	require.NoError(t, err)
	require.NoError(t, f.attempts.Complete(other.ID, completionFor(other)))

	// A stale autosave against the terminal record is not an error.
	assert.NoError(t, s.persistProgress(context.Background()))
}

func TestSession_TimeWarningsFireOnce(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session

	f.advance(36 * time.Minute) // 4 minutes left, below the 300s threshold
	s.onTick(s.Remaining())
	s.onTick(s.Remaining())

	warnings := f.events.ofType("attempt:time_warning")
	require.Len(t, warnings, 1)

	f.advance(3*time.Minute + 30*time.Second) // 30s left, below 60s threshold
	s.onTick(s.Remaining())
	s.onTick(s.Remaining())

	assert.Len(t, f.events.ofType("attempt:time_warning"), 2)
}

func completionFor(a *entity.Attempt) repository.AttemptCompletion {
	return repository.AttemptCompletion{
		Answers:     a.Answers,
		Flagged:     a.Flagged,
		CompletedAt: time.Now(),
	}
}
