package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for JSONB columns holding ordered string lists
type StringArray []string

// Scan implements sql.Scanner for StringArray.
// Used by GORM to read JSONB data from the database.
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value implements driver.Valuer for StringArray.
// Used by GORM to write StringArray as JSONB.
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // empty JSON array instead of null
	}
	return json.Marshal(o)
}

// Question type constants
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeShortAnswer    = "short_answer"
)

// Question represents a single question within an exam. Questions are
// immutable once any attempt references them; QuestionNumber is unique per
// exam and defines the display/navigation order.
type Question struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	ExamID         uint        `gorm:"not null;index;uniqueIndex:idx_exam_question_number" json:"exam_id"`
	QuestionNumber int         `gorm:"not null;uniqueIndex:idx_exam_question_number" json:"question_number"`
	QuestionType   string      `gorm:"size:20;not null;default:'multiple_choice'" json:"question_type"`
	Text           string      `gorm:"size:2000;not null" json:"text"`
	Options        StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectAnswer  string      `gorm:"size:500;not null" json:"-"` // hidden from clients
	Points         int         `gorm:"not null;default:1" json:"points"`
	Hint           string      `gorm:"size:500;not null;default:''" json:"hint,omitempty"`
	ImageURL       string      `gorm:"size:255;not null;default:''" json:"image_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName defines the table name for GORM
func (Question) TableName() string {
	return "questions"
}

// IsMultipleChoice reports whether the question offers a fixed option list
func (q *Question) IsMultipleChoice() bool {
	return q.QuestionType == QuestionTypeMultipleChoice
}

// OptionsCount returns the number of answer options
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// OptionAtLetter returns the option text for a letter code ("A" -> options[0]).
// The second return value is false when the letter is out of range or the
// question has no options.
func (q *Question) OptionAtLetter(letter string) (string, bool) {
	if len(letter) != 1 {
		return "", false
	}
	c := letter[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return "", false
	}
	idx := int(c - 'A')
	if idx >= len(q.Options) {
		return "", false
	}
	return q.Options[idx], true
}
