package entity

import (
	"time"
)

// Exam type constants
const (
	ExamTypeNaplan   = "naplan"
	ExamTypeICAS     = "icas"
	ExamTypePractice = "practice"
)

// Exam represents a practice exam paper. Reference data: created by content
// authoring, read-only to the attempt flow.
type Exam struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	Subject         string     `gorm:"size:50;not null;index" json:"subject"`
	YearLevel       int        `gorm:"not null;index" json:"year_level"`
	DurationMinutes int        `gorm:"not null;default:30" json:"duration_minutes"`
	TotalQuestions  int        `gorm:"not null;default:0" json:"total_questions"`
	ExamType        string     `gorm:"size:20;not null;default:'practice'" json:"exam_type"`
	Questions       []Question `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName defines the table name for GORM
func (Exam) TableName() string {
	return "exams"
}

// Duration returns the exam time limit as a time.Duration
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// DurationSeconds returns the exam time limit in whole seconds
func (e *Exam) DurationSeconds() int {
	return e.DurationMinutes * 60
}
