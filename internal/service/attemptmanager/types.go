package attemptmanager

import (
	"time"

	"github.com/yourusername/examprep-api/internal/domain/repository"
)

// Default tuning values
const (
	DefaultAutosaveDebounce = 2 * time.Second
	DefaultAutosaveInterval = 30 * time.Second
	DefaultTickInterval     = 1 * time.Second
)

// Config holds tuning for the attempt session components
type Config struct {
	// AutosaveDebounce is the quiet period after a mutation before a
	// background save fires; a burst of edits collapses to one write.
	AutosaveDebounce time.Duration

	// AutosaveInterval is the fixed fallback save period for long sessions
	// without mutation bursts.
	AutosaveInterval time.Duration

	// TickInterval is how often the countdown re-derives remaining time
	// from started_at.
	TickInterval time.Duration

	// TimeWarningsSec lists remaining-seconds thresholds at which a warning
	// event is pushed to the session, each at most once.
	TimeWarningsSec []int

	// QuestionCacheTTL bounds how long an exam's question set stays cached.
	QuestionCacheTTL time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		AutosaveDebounce: DefaultAutosaveDebounce,
		AutosaveInterval: DefaultAutosaveInterval,
		TickInterval:     DefaultTickInterval,
		TimeWarningsSec:  []int{300, 60},
		QuestionCacheTTL: 10 * time.Minute,
	}
}

// EventSink receives session events (save status, time warnings, completion)
// for delivery to the client. Implemented by the websocket hub; NoopEvents is
// used where no transport is attached.
type EventSink interface {
	Publish(attemptID string, eventType string, data interface{})
}

// NoopEvents discards all events
type NoopEvents struct{}

// Publish implements EventSink
func (NoopEvents) Publish(attemptID string, eventType string, data interface{}) {}

// Dependencies holds everything the attempt manager needs
type Dependencies struct {
	ExamRepo     repository.ExamRepository
	QuestionRepo repository.QuestionRepository
	AttemptRepo  repository.AttemptRepository
	CacheRepo    repository.CacheRepository
	Events       EventSink

	// Now is the time source; defaults to time.Now. Injected so clock logic
	// is testable without fake timers.
	Now func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dependencies) events() EventSink {
	if d.Events != nil {
		return d.Events
	}
	return NoopEvents{}
}
