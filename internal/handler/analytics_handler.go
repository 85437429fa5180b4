package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/examprep-api/internal/middleware"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service"
)

// AnalyticsHandler serves the results analytics views
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// GetSummary returns the cross-attempt analytics for the authenticated user
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summary, err := h.analyticsService.SummaryForUser(userID)
	if err != nil {
		h.handleAnalyticsError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetAttemptBreakdown returns the per-attempt topic and difficulty analytics
func (h *AnalyticsHandler) GetAttemptBreakdown(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	attemptID := c.MustGet("attemptID").(string)

	breakdown, err := h.analyticsService.BreakdownForAttempt(attemptID, userID)
	if err != nil {
		h.handleAnalyticsError(c, err)
		return
	}

	c.JSON(http.StatusOK, breakdown)
}

// ExportSummary streams the user's analytics as an XLSX workbook
func (h *AnalyticsHandler) ExportSummary(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summary, err := h.analyticsService.SummaryForUser(userID)
	if err != nil {
		h.handleAnalyticsError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-analytics-%s", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Analytics"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AnalyticsHandler] failed to create stream writer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	rows := [][]interface{}{
		{"Total attempts", summary.TotalAttempts},
		{"Average score (%)", summary.AverageScore},
		{"Best score (%)", summary.BestScore},
		{"Total practice time (min)", summary.TotalTimeSeconds / 60},
		{"Improvement trend (pp)", summary.ImprovementTrend},
		{"Strong topics", sanitizeForExcel(strings.Join(summary.StrongTopics, ", "))},
		{"Weak topics", sanitizeForExcel(strings.Join(summary.WeakTopics, ", "))},
		{},
		{"Topic", "Correct", "Total", "Answered", "Ratio"},
	}
	for _, stat := range summary.Topics {
		rows = append(rows, []interface{}{
			sanitizeForExcel(stat.Topic), stat.Correct, stat.Total, stat.Answered, stat.Ratio,
		})
	}

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AnalyticsHandler] failed to write row %d: %v", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AnalyticsHandler] flush failed: %v", err)
	}
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AnalyticsHandler] failed to write Excel response: %v", err)
	}
}

func (h *AnalyticsHandler) handleAnalyticsError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrInvalidState) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in AnalyticsHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// sanitizeForExcel guards exported strings against formula injection
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
