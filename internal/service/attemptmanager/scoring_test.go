package attemptmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

func sampleQuestions() []entity.Question {
	return []entity.Question{
		{
			ID:             1,
			QuestionNumber: 1,
			QuestionType:   entity.QuestionTypeMultipleChoice,
			Text:           "What is 1/2 + 1/4?",
			Options:        entity.StringArray{"1/4", "3/4", "2/6", "1/6"},
			CorrectAnswer:  "B",
			Points:         1,
		},
		{
			ID:             2,
			QuestionNumber: 2,
			QuestionType:   entity.QuestionTypeMultipleChoice,
			Text:           "Which number is a multiple of 7?",
			Options:        entity.StringArray{"15", "22", "35", "44"},
			CorrectAnswer:  "C",
			Points:         1,
		},
		{
			ID:             3,
			QuestionNumber: 3,
			QuestionType:   entity.QuestionTypeMultipleChoice,
			Text:           "What is 0.25 as a percentage?",
			Options:        entity.StringArray{"2.5%", "25%", "40%", "75%"},
			CorrectAnswer:  "B",
			Points:         1,
		},
		{
			ID:             4,
			QuestionNumber: 4,
			QuestionType:   entity.QuestionTypeShortAnswer,
			Text:           "Solve for x: 2x + 3 = 11",
			CorrectAnswer:  "4",
			Points:         2,
		},
	}
}

func TestScoreAttempt_AllCorrect(t *testing.T) {
	questions := sampleQuestions()
	answers := entity.AnswerMap{1: "B", 2: "C", 3: "B", 4: "4"}

	score := ScoreAttempt(questions, answers)

	assert.Equal(t, 5, score.Earned)
	assert.Equal(t, 5, score.Total)
	assert.Equal(t, 100, score.Percentage)
	assert.Equal(t, 4, score.Correct)
	assert.Equal(t, 4, score.Answered)
}

func TestScoreAttempt_AllBlank(t *testing.T) {
	score := ScoreAttempt(sampleQuestions(), entity.AnswerMap{})

	assert.Equal(t, 0, score.Earned)
	assert.Equal(t, 5, score.Total)
	assert.Equal(t, 0, score.Percentage)
	assert.Equal(t, 0, score.Answered)
}

func TestScoreAttempt_PartiallyCorrect(t *testing.T) {
	// Q1 correct (1pt), Q2 wrong, Q3 blank, Q4 correct (2pt): 3/5 = 60%.
	answers := entity.AnswerMap{1: "B", 2: "A", 4: "4"}

	score := ScoreAttempt(sampleQuestions(), answers)

	assert.Equal(t, 3, score.Earned)
	assert.Equal(t, 5, score.Total)
	assert.Equal(t, 60, score.Percentage)
	assert.Equal(t, 2, score.Correct)
	assert.Equal(t, 3, score.Answered)
}

func TestScoreAttempt_Deterministic(t *testing.T) {
	questions := sampleQuestions()
	answers := entity.AnswerMap{1: "B", 2: "A", 3: "25%", 4: " 4 "}

	first := ScoreAttempt(questions, answers)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ScoreAttempt(questions, answers))
	}
}

func TestScoreAttempt_WhitespaceOnlyAnswerIsUnanswered(t *testing.T) {
	answers := entity.AnswerMap{1: "   "}

	score := ScoreAttempt(sampleQuestions(), answers)

	assert.Equal(t, 0, score.Answered)
	assert.Equal(t, 0, score.Earned)
}

func TestIsAnswerCorrect(t *testing.T) {
	mc := &entity.Question{
		QuestionType:  entity.QuestionTypeMultipleChoice,
		Options:       entity.StringArray{"1/4", "3/4", "2/6", "1/6"},
		CorrectAnswer: "B",
	}
	short := &entity.Question{
		QuestionType:  entity.QuestionTypeShortAnswer,
		CorrectAnswer: "Sydney",
	}

	testCases := []struct {
		name     string
		question *entity.Question
		answer   string
		expected bool
	}{
		{"Exact letter match", mc, "B", true},
		{"Lowercase letter", mc, "b", true},
		{"Padded letter", mc, "  b  ", true},
		{"Option text instead of letter", mc, "3/4", true},
		{"Wrong letter", mc, "A", false},
		{"Wrong option text", mc, "1/4", false},
		{"Empty answer", mc, "", false},
		{"Short answer exact", short, "Sydney", true},
		{"Short answer case-insensitive", short, "sydney", true},
		{"Short answer padded", short, " SYDNEY ", true},
		{"Short answer wrong", short, "Melbourne", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsAnswerCorrect(tc.question, tc.answer))
		})
	}
}

func TestIsAnswerCorrect_CanonicalTextWithLetterSubmission(t *testing.T) {
	// Canonical answer stored as option text; a letter submission does not
	// reverse-map, only the stored encoding plus its option-text expansion
	// are accepted.
	q := &entity.Question{
		QuestionType:  entity.QuestionTypeMultipleChoice,
		Options:       entity.StringArray{"15", "22", "35", "44"},
		CorrectAnswer: "35",
	}

	assert.True(t, IsAnswerCorrect(q, "35"))
	assert.False(t, IsAnswerCorrect(q, "C"))
}

func TestRoundPercentage(t *testing.T) {
	assert.Equal(t, 0, RoundPercentage(0, 0), "zero total guards division")
	assert.Equal(t, 0, RoundPercentage(5, 0))
	assert.Equal(t, 0, RoundPercentage(5, -1))
	assert.Equal(t, 100, RoundPercentage(5, 5))
	assert.Equal(t, 67, RoundPercentage(2, 3), "66.67 rounds up")
	assert.Equal(t, 33, RoundPercentage(1, 3), "33.33 rounds down")
	assert.Equal(t, 13, RoundPercentage(1, 8), "12.5 rounds half up")
}
