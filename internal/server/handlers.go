package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tasknerd/internal/interpreter"
	"tasknerd/internal/logging"
	"tasknerd/internal/types"
)

const maxMessageSize = 10 << 10 // 10KB

type queryRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Confirm   bool   `json:"confirm"`
}

type queryResponse struct {
	types.Reply
	SessionID string `json:"session_id"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": s.in.Tracker().Len(),
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Message) > maxMessageSize {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "message exceeds maximum size of 10KB"})
		return
	}
	if strings.TrimSpace(req.Message) == "" && !req.Confirm {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := s.in.Handle(c.Request.Context(), interpreter.Request{
		SessionID: req.SessionID,
		Text:      req.Message,
		Confirm:   req.Confirm,
	})
	if err != nil {
		logging.Get(logging.CategoryServer).Warn("query for session %s failed: %v", req.SessionID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, queryResponse{Reply: reply, SessionID: req.SessionID})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	s.in.Tracker().Expire(c.Param("id"))
	c.Status(http.StatusNoContent)
}

type createTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// handleCreateTask creates a task by phrasing the request as an utterance,
// so it goes through the same pipeline as chat. Each call is its own
// session.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "title is required"})
		return
	}
	// A straight quote would end the quoted field early.
	title := strings.ReplaceAll(strings.TrimSpace(req.Title), "'", "’")
	desc := strings.ReplaceAll(strings.TrimSpace(req.Description), "'", "’")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "title is required"})
		return
	}

	id := "rest-" + uuid.NewString()
	defer s.in.Tracker().Expire(id)

	reply, err := s.in.Handle(c.Request.Context(), interpreter.Request{
		SessionID: id,
		Text:      fmt.Sprintf("Create a task with title '%s' and description '%s'", title, desc),
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": err.Error()})
		return
	}
	if !reply.Success {
		c.JSON(http.StatusBadRequest, reply)
		return
	}
	c.JSON(http.StatusOK, reply)
}
