package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/examprep-api/internal/middleware"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service"
	"github.com/yourusername/examprep-api/internal/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Non-browser clients send no Origin.
		return true
	},
}

// WSHandler upgrades connections to the per-attempt event stream
type WSHandler struct {
	hub            *websocket.Hub
	attemptService *service.AttemptService
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(hub *websocket.Hub, attemptService *service.AttemptService) *WSHandler {
	return &WSHandler{
		hub:            hub,
		attemptService: attemptService,
	}
}

// SubscribeAttempt streams save-status, time-warning and completion events
// for one attempt. Ownership is checked before the upgrade; the events
// themselves carry no question content.
func (h *WSHandler) SubscribeAttempt(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	attemptID := c.MustGet("attemptID").(string)

	if _, err := h.attemptService.Get(c.Request.Context(), attemptID, userID); err != nil {
		if errors.Is(err, apperrors.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		} else if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			log.Printf("ERROR: ws subscribe failed for attempt %s: %v", attemptID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] upgrade failed: %v", err)
		return
	}

	h.hub.Subscribe(attemptID, conn) // blocks until disconnect
}
