package service

import (
	"math"
	"sort"
	"strings"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service/attemptmanager"
)

// topicKeyword maps a question-text keyword to a topic label. The table is
// ordered and the first matching keyword wins, so more specific keywords must
// come before broader ones.
type topicKeyword struct {
	keyword string
	topic   string
}

var topicKeywords = []topicKeyword{
	{"fraction", "Fractions"},
	{"decimal", "Decimals"},
	{"percent", "Percentages"},
	{"equation", "Algebra"},
	{"algebra", "Algebra"},
	{"angle", "Geometry"},
	{"triangle", "Geometry"},
	{"area", "Geometry"},
	{"perimeter", "Geometry"},
	{"graph", "Data"},
	{"chart", "Data"},
	{"probability", "Probability"},
	{"chance", "Probability"},
	{"measure", "Measurement"},
	{"length", "Measurement"},
	{"volume", "Measurement"},
	{"pattern", "Patterns"},
	{"spell", "Spelling"},
	{"punctuat", "Grammar"},
	{"grammar", "Grammar"},
	{"passage", "Reading"},
	{"paragraph", "Reading"},
	{"synonym", "Vocabulary"},
	{"antonym", "Vocabulary"},
	{"word", "Vocabulary"},
}

// TopicForQuestion classifies a question by keyword lookup over its text.
// Questions matching nothing land in "General".
func TopicForQuestion(text string) string {
	lowered := strings.ToLower(text)
	for _, tk := range topicKeywords {
		if strings.Contains(lowered, tk.keyword) {
			return tk.topic
		}
	}
	return "General"
}

// nationalAverages holds the reference percentage per year level used for the
// comparison line on the results page. Static reference data, not a live feed.
var nationalAverages = map[int]int{
	3: 62,
	5: 65,
	7: 64,
	9: 63,
}

const defaultNationalAverage = 65

// NationalAverage returns the reference percentage for a year level
func NationalAverage(yearLevel int) int {
	if avg, ok := nationalAverages[yearLevel]; ok {
		return avg
	}
	return defaultNationalAverage
}

// TopicStat aggregates correctness for one topic
type TopicStat struct {
	Topic    string  `json:"topic"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Answered int     `json:"answered"`
	Ratio    float64 `json:"ratio"`
}

// DifficultyStat aggregates correctness for one positional difficulty band
type DifficultyStat struct {
	Difficulty string `json:"difficulty"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
}

// AttemptBreakdown is the per-attempt analytics view
type AttemptBreakdown struct {
	AttemptID       string           `json:"attempt_id"`
	ExamID          uint             `json:"exam_id"`
	Percentage      int              `json:"percentage"`
	NationalAverage int              `json:"national_average"`
	NationalDelta   int              `json:"national_delta"`
	Topics          []TopicStat      `json:"topics"`
	Difficulty      []DifficultyStat `json:"difficulty"`
	StrongTopics    []string         `json:"strong_topics"`
	WeakTopics      []string         `json:"weak_topics"`
}

// UserSummary is the cross-attempt analytics view
type UserSummary struct {
	TotalAttempts     int         `json:"total_attempts"`
	AverageScore      int         `json:"average_score"`
	BestScore         int         `json:"best_score"`
	TotalTimeSeconds  int         `json:"total_time_seconds"`
	ImprovementTrend  int         `json:"improvement_trend"`
	Topics            []TopicStat `json:"topics"`
	StrongTopics      []string    `json:"strong_topics"`
	WeakTopics        []string    `json:"weak_topics"`
	RecentPercentages []int       `json:"recent_percentages"`
}

// AnalyticsService computes results analytics over completed attempts
type AnalyticsService struct {
	attemptRepo  repository.AttemptRepository
	examRepo     repository.ExamRepository
	questionRepo repository.QuestionRepository
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	attemptRepo repository.AttemptRepository,
	examRepo repository.ExamRepository,
	questionRepo repository.QuestionRepository,
) *AnalyticsService {
	return &AnalyticsService{
		attemptRepo:  attemptRepo,
		examRepo:     examRepo,
		questionRepo: questionRepo,
	}
}

// BreakdownForAttempt computes the topic/difficulty analytics of one
// completed attempt.
func (s *AnalyticsService) BreakdownForAttempt(attemptID string, userID uint) (*AttemptBreakdown, error) {
	attempt, err := s.attemptRepo.GetByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	if !attempt.IsCompleted() {
		return nil, apperrors.ErrInvalidState
	}

	exam, err := s.examRepo.GetByID(attempt.ExamID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.GetByExamID(attempt.ExamID)
	if err != nil {
		return nil, err
	}

	topics := topicStats(questions, attempt.Answers)
	percentage := 0
	if attempt.Percentage != nil {
		percentage = *attempt.Percentage
	}
	natAvg := NationalAverage(exam.YearLevel)

	return &AttemptBreakdown{
		AttemptID:       attempt.ID,
		ExamID:          exam.ID,
		Percentage:      percentage,
		NationalAverage: natAvg,
		NationalDelta:   percentage - natAvg,
		Topics:          topics,
		Difficulty:      difficultyByPosition(questions, attempt.Answers),
		StrongTopics:    strongTopics(topics),
		WeakTopics:      weakTopics(topics),
	}, nil
}

// SummaryForUser aggregates analytics across all of the user's completed
// attempts.
func (s *AnalyticsService) SummaryForUser(userID uint) (*UserSummary, error) {
	attempts, err := s.attemptRepo.GetCompletedByUser(userID)
	if err != nil {
		return nil, err
	}

	summary := &UserSummary{
		Topics:       []TopicStat{},
		StrongTopics: []string{},
		WeakTopics:   []string{},
	}
	if len(attempts) == 0 {
		return summary, nil
	}

	// Chronological order for the trend; newest attempts come last.
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].StartedAt.Before(attempts[j].StartedAt)
	})

	var percentages []int
	var sum, best, totalTime int
	questionsByExam := make(map[uint][]entity.Question)
	totals := make(map[string]*TopicStat)

	for i := range attempts {
		a := &attempts[i]
		if a.Percentage == nil {
			continue
		}
		percentages = append(percentages, *a.Percentage)
		sum += *a.Percentage
		if *a.Percentage > best {
			best = *a.Percentage
		}
		if a.TimeSpentSeconds != nil {
			totalTime += *a.TimeSpentSeconds
		}

		questions, ok := questionsByExam[a.ExamID]
		if !ok {
			questions, err = s.questionRepo.GetByExamID(a.ExamID)
			if err != nil {
				return nil, err
			}
			questionsByExam[a.ExamID] = questions
		}
		accumulateTopics(totals, questions, a.Answers)
	}

	if len(percentages) == 0 {
		return summary, nil
	}

	topics := sortedTopicStats(totals)

	summary.TotalAttempts = len(percentages)
	summary.AverageScore = int(math.Round(float64(sum) / float64(len(percentages))))
	summary.BestScore = best
	summary.TotalTimeSeconds = totalTime
	summary.ImprovementTrend = ImprovementTrend(percentages)
	summary.Topics = topics
	summary.StrongTopics = strongTopics(topics)
	summary.WeakTopics = weakTopics(topics)
	summary.RecentPercentages = lastN(percentages, 10)

	return summary, nil
}

// ImprovementTrend compares the mean of the most recent attempts against the
// mean of the earliest ones. Each window holds min(5, n/2) attempts; fewer
// than two attempts give no trend.
func ImprovementTrend(percentages []int) int {
	n := len(percentages)
	if n < 2 {
		return 0
	}
	window := n / 2
	if window > 5 {
		window = 5
	}

	first := mean(percentages[:window])
	last := mean(percentages[n-window:])
	return int(math.Round(last - first))
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func lastN(values []int, n int) []int {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func topicStats(questions []entity.Question, answers entity.AnswerMap) []TopicStat {
	totals := make(map[string]*TopicStat)
	accumulateTopics(totals, questions, answers)
	return sortedTopicStats(totals)
}

func accumulateTopics(totals map[string]*TopicStat, questions []entity.Question, answers entity.AnswerMap) {
	for i := range questions {
		q := &questions[i]
		topic := TopicForQuestion(q.Text)
		stat, ok := totals[topic]
		if !ok {
			stat = &TopicStat{Topic: topic}
			totals[topic] = stat
		}
		stat.Total++

		answer, answered := answers[q.ID]
		if !answered || strings.TrimSpace(answer) == "" {
			continue
		}
		stat.Answered++
		if attemptmanager.IsAnswerCorrect(q, answer) {
			stat.Correct++
		}
	}
}

func sortedTopicStats(totals map[string]*TopicStat) []TopicStat {
	out := make([]TopicStat, 0, len(totals))
	for _, stat := range totals {
		if stat.Total > 0 {
			stat.Ratio = float64(stat.Correct) / float64(stat.Total)
		}
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ratio != out[j].Ratio {
			return out[i].Ratio > out[j].Ratio
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

// strongTopics returns up to three topics at or above 70% correct
func strongTopics(sorted []TopicStat) []string {
	out := []string{}
	for _, stat := range sorted {
		if stat.Ratio >= 0.7 {
			out = append(out, stat.Topic)
			if len(out) == 3 {
				break
			}
		}
	}
	return out
}

// weakTopics returns up to three attempted topics below 60% correct,
// weakest first.
func weakTopics(sorted []TopicStat) []string {
	out := []string{}
	for i := len(sorted) - 1; i >= 0; i-- {
		stat := sorted[i]
		if stat.Ratio < 0.6 && stat.Answered > 0 {
			out = append(out, stat.Topic)
			if len(out) == 3 {
				break
			}
		}
	}
	return out
}

// difficultyByPosition bands questions into thirds by their position in the
// paper: a proxy for difficulty in papers ordered easiest-first. Questions
// carry no authored difficulty field.
func difficultyByPosition(questions []entity.Question, answers entity.AnswerMap) []DifficultyStat {
	bands := []DifficultyStat{
		{Difficulty: "easy"},
		{Difficulty: "medium"},
		{Difficulty: "hard"},
	}
	n := len(questions)
	if n == 0 {
		return bands
	}

	for i := range questions {
		band := i * 3 / n
		if band > 2 {
			band = 2
		}
		bands[band].Total++

		q := &questions[i]
		if answer, ok := answers[q.ID]; ok && attemptmanager.IsAnswerCorrect(q, answer) {
			bands[band].Correct++
		}
	}
	return bands
}
