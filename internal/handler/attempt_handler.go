package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/examprep-api/internal/handler/dto"
	"github.com/yourusername/examprep-api/internal/middleware"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service"
)

// AttemptHandler serves the exam attempt lifecycle
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new attempt handler
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// StartAttemptRequest identifies the exam to start
type StartAttemptRequest struct {
	ExamID uint `json:"exam_id" binding:"required"`
}

// StartAttempt creates a new attempt on an exam
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.attemptService.Start(c.Request.Context(), req.ExamID, userID)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewAttemptStateResponse(state))
}

// GetAttempt returns the live state of an attempt, resuming it if needed
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	attemptID := c.MustGet("attemptID").(string)

	state, err := h.attemptService.Get(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptStateResponse(state))
}

// GetActiveAttempt returns the user's in-progress attempt on an exam, so a
// reload of the exam page resumes instead of starting over. 404 when none.
func (h *AttemptHandler) GetActiveAttempt(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	examID := c.MustGet("examID").(uint)

	state, err := h.attemptService.ActiveAttempt(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptStateResponse(state))
}

// AnswerRequest carries one answer upsert
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// SelectAnswer records the user's answer for a question
func (h *AttemptHandler) SelectAnswer(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	attemptID := c.MustGet("attemptID").(string)
	questionID := c.MustGet("questionID").(uint)

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.attemptService.SelectAnswer(c.Request.Context(), attemptID, userID, questionID, req.Answer); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ToggleFlag flips the review flag on a question
func (h *AttemptHandler) ToggleFlag(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	attemptID := c.MustGet("attemptID").(string)
	questionID := c.MustGet("questionID").(uint)

	if err := h.attemptService.ToggleFlag(c.Request.Context(), attemptID, userID, questionID); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PositionRequest carries the navigation cursor
type PositionRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SetPosition moves the attempt's current-question cursor
func (h *AttemptHandler) SetPosition(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	attemptID := c.MustGet("attemptID").(string)

	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.attemptService.GoTo(c.Request.Context(), attemptID, userID, *req.Index); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SignalsRequest carries the client-side anti-cheat counters
type SignalsRequest struct {
	TabSwitches   int `json:"tab_switches"`
	CopyAttempts  int `json:"copy_attempts"`
	PasteAttempts int `json:"paste_attempts"`
}

// RecordSignals stores the reported counters on the attempt
func (h *AttemptHandler) RecordSignals(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	attemptID := c.MustGet("attemptID").(string)

	var req SignalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.attemptService.RecordSignals(c.Request.Context(), attemptID, userID, req.TabSwitches, req.CopyAttempts, req.PasteAttempts); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SubmitAttempt finalizes the attempt and returns the scored record
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	attemptID := c.MustGet("attemptID").(string)
	email := middleware.UserEmail(c)

	final, err := h.attemptService.Submit(c.Request.Context(), attemptID, userID, email)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptSummaryResponse(final))
}

// GetResult returns the scored result with the per-question review
func (h *AttemptHandler) GetResult(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	attemptID := c.MustGet("attemptID").(string)

	result, err := h.attemptService.GetResult(attemptID, userID)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewResultResponse(result))
}

// ListAttempts returns the user's attempt history; ?exam_id narrows it to the
// completed attempts on one exam
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var examID uint
	if examStr := c.Query("exam_id"); examStr != "" {
		parsed, err := strconv.ParseUint(examStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid exam_id"})
			return
		}
		examID = uint(parsed)
	}

	attempts, total, err := h.attemptService.ListUserAttempts(userID, examID, limit, offset)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	out := make([]dto.AttemptSummaryResponse, 0, len(attempts))
	for i := range attempts {
		out = append(out, dto.NewAttemptSummaryResponse(&attempts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"attempts": out, "total": total})
}

func (h *AttemptHandler) handleAttemptError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrInvalidState) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrSubmitFailed) {
		log.Printf("ERROR: Persistence failure in AttemptHandler: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not save the attempt, please retry"})
	} else {
		log.Printf("ERROR: Internal server error in AttemptHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
