package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Attempt status constants
const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusCompleted  = "completed"
	AttemptStatusAbandoned  = "abandoned"
)

// SubmitReason identifies what triggered a submission
const (
	SubmitReasonUser    = "user"
	SubmitReasonTimeout = "timeout"
)

// AnswerMap is a custom type for the JSONB answers column
// (question ID -> submitted answer string).
type AnswerMap map[uint]string

// Scan implements sql.Scanner for AnswerMap
func (m *AnswerMap) Scan(value interface{}) error {
	if value == nil {
		*m = AnswerMap{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*m = AnswerMap{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Value implements driver.Valuer for AnswerMap
func (m AnswerMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil // empty JSON object instead of null
	}
	return json.Marshal(m)
}

// Clone returns an independent copy of the map
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UintArray is a custom type for JSONB columns holding question ID lists
type UintArray []uint

// Scan implements sql.Scanner for UintArray
func (a *UintArray) Scan(value interface{}) error {
	if value == nil {
		*a = UintArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*a = UintArray{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Value implements driver.Valuer for UintArray
func (a UintArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Contains reports whether id is present in the array
func (a UintArray) Contains(id uint) bool {
	for _, v := range a {
		if v == id {
			return true
		}
	}
	return false
}

// Attempt represents one user's timed run through an exam's question set.
// StartedAt is set once at creation and never changes; the score fields stay
// NULL while the attempt is in progress and are written exactly once on
// completion. Flagged is advisory review marking and never affects scoring.
type Attempt struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	ExamID      uint       `gorm:"not null;index" json:"exam_id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Status      string     `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Answers AnswerMap `gorm:"type:jsonb;not null" json:"answers"`
	Flagged UintArray `gorm:"type:jsonb;not null" json:"flagged"`

	Score            *int `json:"score,omitempty"`
	TotalPoints      *int `json:"total_points,omitempty"`
	Percentage       *int `json:"percentage,omitempty"`
	TimeSpentSeconds *int `json:"time_spent_seconds,omitempty"`

	// Anti-cheat signals recorded as plain counters; no detection logic here.
	TabSwitches   int `gorm:"not null;default:0" json:"tab_switches"`
	CopyAttempts  int `gorm:"not null;default:0" json:"copy_attempts"`
	PasteAttempts int `gorm:"not null;default:0" json:"paste_attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName defines the table name for GORM
func (Attempt) TableName() string {
	return "attempts"
}

// IsInProgress reports whether the attempt can still be mutated
func (a *Attempt) IsInProgress() bool {
	return a.Status == AttemptStatusInProgress
}

// IsCompleted reports whether the attempt reached its terminal state
func (a *Attempt) IsCompleted() bool {
	return a.Status == AttemptStatusCompleted
}
