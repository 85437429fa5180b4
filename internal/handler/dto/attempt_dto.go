package dto

import (
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/service"
)

// ExamResponse is the catalog view of an exam
type ExamResponse struct {
	ID              uint   `json:"id"`
	Title           string `json:"title"`
	Subject         string `json:"subject"`
	YearLevel       int    `json:"year_level"`
	DurationMinutes int    `json:"duration_minutes"`
	TotalQuestions  int    `json:"total_questions"`
	ExamType        string `json:"exam_type"`
}

// NewExamResponse converts an exam entity to its API shape
func NewExamResponse(exam *entity.Exam) ExamResponse {
	return ExamResponse{
		ID:              exam.ID,
		Title:           exam.Title,
		Subject:         exam.Subject,
		YearLevel:       exam.YearLevel,
		DurationMinutes: exam.DurationMinutes,
		TotalQuestions:  exam.TotalQuestions,
		ExamType:        exam.ExamType,
	}
}

// ExamListResponse is the paginated catalog listing
type ExamListResponse struct {
	Exams []ExamResponse `json:"exams"`
	Total int64          `json:"total"`
}

// NewExamListResponse converts a page of exams
func NewExamListResponse(exams []entity.Exam, total int64) ExamListResponse {
	out := make([]ExamResponse, 0, len(exams))
	for i := range exams {
		out = append(out, NewExamResponse(&exams[i]))
	}
	return ExamListResponse{Exams: out, Total: total}
}

// QuestionResponse is the in-attempt view of a question. The canonical answer
// never appears here; it is only exposed on the result review after
// completion.
type QuestionResponse struct {
	ID             uint     `json:"id"`
	QuestionNumber int      `json:"question_number"`
	QuestionType   string   `json:"question_type"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	Points         int      `json:"points"`
	Hint           string   `json:"hint,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
}

// NewQuestionResponse converts a question entity to its in-attempt shape
func NewQuestionResponse(q *entity.Question) QuestionResponse {
	return QuestionResponse{
		ID:             q.ID,
		QuestionNumber: q.QuestionNumber,
		QuestionType:   q.QuestionType,
		Text:           q.Text,
		Options:        q.Options,
		Points:         q.Points,
		Hint:           q.Hint,
		ImageURL:       q.ImageURL,
	}
}

// AttemptStateResponse is the live attempt view: record plus server-derived
// clock and autosave state.
type AttemptStateResponse struct {
	ID               string             `json:"id"`
	ExamID           uint               `json:"exam_id"`
	Status           string             `json:"status"`
	StartedAt        time.Time          `json:"started_at"`
	RemainingSeconds int                `json:"remaining_seconds"`
	CurrentIndex     int                `json:"current_index"`
	SaveStatus       string             `json:"save_status"`
	Answers          map[uint]string    `json:"answers"`
	Flagged          []uint             `json:"flagged"`
	Questions        []QuestionResponse `json:"questions,omitempty"`
}

// NewAttemptStateResponse converts the service state to its API shape
func NewAttemptStateResponse(state *service.AttemptState) AttemptStateResponse {
	questions := make([]QuestionResponse, 0, len(state.Questions))
	for i := range state.Questions {
		questions = append(questions, NewQuestionResponse(&state.Questions[i]))
	}
	answers := state.Attempt.Answers
	if answers == nil {
		answers = map[uint]string{}
	}
	flagged := []uint(state.Attempt.Flagged)
	if flagged == nil {
		flagged = []uint{}
	}
	return AttemptStateResponse{
		ID:               state.Attempt.ID,
		ExamID:           state.Attempt.ExamID,
		Status:           state.Attempt.Status,
		StartedAt:        state.Attempt.StartedAt,
		RemainingSeconds: state.RemainingSeconds,
		CurrentIndex:     state.CurrentIndex,
		SaveStatus:       state.SaveStatus,
		Answers:          answers,
		Flagged:          flagged,
		Questions:        questions,
	}
}

// AttemptSummaryResponse is the terminal view returned by submit and listings
type AttemptSummaryResponse struct {
	ID               string     `json:"id"`
	ExamID           uint       `json:"exam_id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Score            *int       `json:"score,omitempty"`
	TotalPoints      *int       `json:"total_points,omitempty"`
	Percentage       *int       `json:"percentage,omitempty"`
	TimeSpentSeconds *int       `json:"time_spent_seconds,omitempty"`
}

// NewAttemptSummaryResponse converts an attempt entity to its summary shape
func NewAttemptSummaryResponse(attempt *entity.Attempt) AttemptSummaryResponse {
	return AttemptSummaryResponse{
		ID:               attempt.ID,
		ExamID:           attempt.ExamID,
		Status:           attempt.Status,
		StartedAt:        attempt.StartedAt,
		CompletedAt:      attempt.CompletedAt,
		Score:            attempt.Score,
		TotalPoints:      attempt.TotalPoints,
		Percentage:       attempt.Percentage,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
	}
}

// QuestionReviewResponse is one row of the result review
type QuestionReviewResponse struct {
	Question      QuestionResponse `json:"question"`
	CorrectAnswer string           `json:"correct_answer"`
	UserAnswer    string           `json:"user_answer"`
	Answered      bool             `json:"answered"`
	Correct       bool             `json:"correct"`
	Flagged       bool             `json:"flagged"`
}

// ResultResponse is the full result page payload
type ResultResponse struct {
	Attempt AttemptSummaryResponse   `json:"attempt"`
	Exam    ExamResponse             `json:"exam"`
	Review  []QuestionReviewResponse `json:"review"`
}

// NewResultResponse converts the service result to its API shape
func NewResultResponse(result *service.AttemptResult) ResultResponse {
	review := make([]QuestionReviewResponse, 0, len(result.Review))
	for i := range result.Review {
		r := &result.Review[i]
		review = append(review, QuestionReviewResponse{
			Question:      NewQuestionResponse(&r.Question),
			CorrectAnswer: r.CorrectAnswer,
			UserAnswer:    r.UserAnswer,
			Answered:      r.Answered,
			Correct:       r.Correct,
			Flagged:       r.Flagged,
		})
	}
	return ResultResponse{
		Attempt: NewAttemptSummaryResponse(&result.Attempt),
		Exam:    NewExamResponse(&result.Exam),
		Review:  review,
	}
}
