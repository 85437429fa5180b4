package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/examprep-api/internal/domain/repository"
	"github.com/yourusername/examprep-api/internal/handler/dto"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service"
)

// ExamHandler serves the exam catalog
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new exam handler
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// ListExams returns the catalog, filterable by subject, year_level and
// exam_type query parameters.
func (h *ExamHandler) ListExams(c *gin.Context) {
	filters := repository.ExamFilters{
		Subject:  c.Query("subject"),
		ExamType: c.Query("exam_type"),
	}
	if yearStr := c.Query("year_level"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year_level"})
			return
		}
		filters.YearLevel = year
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	exams, total, err := h.examService.ListExams(filters, limit, offset)
	if err != nil {
		h.handleExamError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewExamListResponse(exams, total))
}

// GetExam returns one exam by ID
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID := c.MustGet("examID").(uint)

	exam, err := h.examService.GetExam(examID)
	if err != nil {
		h.handleExamError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewExamResponse(exam))
}

// GetExamQuestions returns the ordered question set for an exam. Canonical
// answers are stripped by the DTO.
func (h *ExamHandler) GetExamQuestions(c *gin.Context) {
	examID := c.MustGet("examID").(uint)

	if _, err := h.examService.GetExam(examID); err != nil {
		h.handleExamError(c, err)
		return
	}

	questions, err := h.examService.GetExamQuestions(examID)
	if err != nil {
		h.handleExamError(c, err)
		return
	}

	out := make([]dto.QuestionResponse, 0, len(questions))
	for i := range questions {
		out = append(out, dto.NewQuestionResponse(&questions[i]))
	}

	c.JSON(http.StatusOK, gin.H{"questions": out, "total": len(out)})
}

func (h *ExamHandler) handleExamError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in ExamHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
