package attemptmanager

import (
	"math"
	"strings"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// Score is the result of scoring one attempt
type Score struct {
	Earned     int `json:"earned"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
	Correct    int `json:"correct"`
	Answered   int `json:"answered"`
}

// ScoreAttempt maps (questions, answers) to earned/total points and a
// percentage. Deterministic: no randomness, no external calls. Unanswered or
// non-matching answers earn 0 for that question; there is no partial credit.
func ScoreAttempt(questions []entity.Question, answers entity.AnswerMap) Score {
	var s Score
	for i := range questions {
		q := &questions[i]
		s.Total += q.Points

		answer, ok := answers[q.ID]
		if !ok || strings.TrimSpace(answer) == "" {
			continue
		}
		s.Answered++

		if IsAnswerCorrect(q, answer) {
			s.Correct++
			s.Earned += q.Points
		}
	}
	s.Percentage = RoundPercentage(s.Earned, s.Total)
	return s
}

// IsAnswerCorrect compares a submitted answer against the canonical answer.
// Matching is whitespace-trimmed and case-insensitive. For multiple-choice
// questions whose canonical answer is a letter code, an answer equal to the
// option text at that letter's position is also accepted, so either encoding
// ("B" or the option string itself) scores as correct.
func IsAnswerCorrect(q *entity.Question, answer string) bool {
	given := normalizeAnswer(answer)
	if given == "" {
		return false
	}

	canonical := normalizeAnswer(q.CorrectAnswer)
	if given == canonical {
		return true
	}

	if q.IsMultipleChoice() {
		if optionText, ok := q.OptionAtLetter(strings.TrimSpace(q.CorrectAnswer)); ok {
			if given == normalizeAnswer(optionText) {
				return true
			}
		}
	}

	return false
}

// RoundPercentage computes round(100*earned/total) with round-half-up,
// or 0 when total is not positive.
func RoundPercentage(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(earned) / float64(total)))
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
