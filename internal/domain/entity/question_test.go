package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestion_OptionAtLetter(t *testing.T) {
	// Arrange
	question := &Question{
		QuestionType: QuestionTypeMultipleChoice,
		Options:      StringArray{"1/4", "3/4", "2/6", "1/6"},
	}

	// Act & Assert: valid letters
	text, ok := question.OptionAtLetter("A")
	require.True(t, ok)
	assert.Equal(t, "1/4", text)

	text, ok = question.OptionAtLetter("D")
	require.True(t, ok)
	assert.Equal(t, "1/6", text)

	// Lowercase letters map the same way.
	text, ok = question.OptionAtLetter("b")
	require.True(t, ok)
	assert.Equal(t, "3/4", text)
}

func TestQuestion_OptionAtLetter_Invalid(t *testing.T) {
	question := &Question{
		Options: StringArray{"1/4", "3/4"},
	}

	_, ok := question.OptionAtLetter("C")
	assert.False(t, ok, "letter past the option count is invalid")

	_, ok = question.OptionAtLetter("")
	assert.False(t, ok)

	_, ok = question.OptionAtLetter("AB")
	assert.False(t, ok)

	_, ok = question.OptionAtLetter("1")
	assert.False(t, ok)

	noOptions := &Question{QuestionType: QuestionTypeShortAnswer}
	_, ok = noOptions.OptionAtLetter("A")
	assert.False(t, ok)
}

func TestQuestion_IsMultipleChoice(t *testing.T) {
	mc := &Question{QuestionType: QuestionTypeMultipleChoice}
	short := &Question{QuestionType: QuestionTypeShortAnswer}

	assert.True(t, mc.IsMultipleChoice())
	assert.False(t, short.IsMultipleChoice())
}

func TestAnswerMap_ScanAndValue(t *testing.T) {
	// Arrange
	original := AnswerMap{1: "B", 2: "3/4"}

	// Act
	value, err := original.Value()
	require.NoError(t, err)

	var restored AnswerMap
	require.NoError(t, restored.Scan(value))

	// Assert
	assert.Equal(t, original, restored)
}

func TestAnswerMap_EmptySerializesToObject(t *testing.T) {
	value, err := AnswerMap{}.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), value, "empty map must not become SQL NULL")

	var restored AnswerMap
	require.NoError(t, restored.Scan(nil))
	assert.NotNil(t, restored)
	assert.Empty(t, restored)
}

func TestUintArray_Contains(t *testing.T) {
	flagged := UintArray{3, 7, 12}

	assert.True(t, flagged.Contains(7))
	assert.False(t, flagged.Contains(4))
	assert.False(t, UintArray{}.Contains(1))
}

func TestAttempt_StatusHelpers(t *testing.T) {
	inProgress := &Attempt{Status: AttemptStatusInProgress}
	completed := &Attempt{Status: AttemptStatusCompleted}

	assert.True(t, inProgress.IsInProgress())
	assert.False(t, inProgress.IsCompleted())
	assert.True(t, completed.IsCompleted())
	assert.False(t, completed.IsInProgress())
}

func TestExam_Duration(t *testing.T) {
	exam := &Exam{DurationMinutes: 40}

	assert.Equal(t, 2400, exam.DurationSeconds())
	assert.Equal(t, "40m0s", exam.Duration().String())
}
