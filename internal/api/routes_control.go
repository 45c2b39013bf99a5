package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/protocol"
	"github.com/nrelay-go/nrelay/internal/relay"
)

type moveRequest struct {
	X *float32 `json:"x" binding:"required"`
	Y *float32 `json:"y" binding:"required"`
}

// handleMoveSession sets a session's movement target.
func (s *Server) handleMoveSession(c *gin.Context) {
	id := c.Param("id")

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cl, err := s.sessions.Find(id)
	if err != nil {
		writeSessionError(c, id, err)
		return
	}

	target := protocol.WorldPosData{X: *req.X, Y: *req.Y}
	if err := cl.MoveTo(c.Request.Context(), target); err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}

	log.Info().
		Str("guid", cl.GUID()).
		Float32("x", target.X).
		Float32("y", target.Y).
		Msg("API: move target set")

	c.JSON(http.StatusOK, gin.H{
		"status": "moving",
		"guid":   cl.GUID(),
		"target": target,
	})
}

// handleStopSession disconnects a session and keeps it offline.
func (s *Server) handleStopSession(c *gin.Context) {
	id := c.Param("id")

	if err := s.sessions.Stop(c.Request.Context(), id); err != nil {
		writeSessionError(c, id, err)
		return
	}

	log.Info().Str("session", id).Msg("API: session stopped")
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "session": id})
}

// handleStartSession re-enables a stopped session.
func (s *Server) handleStartSession(c *gin.Context) {
	id := c.Param("id")

	if err := s.sessions.Restart(id); err != nil {
		writeSessionError(c, id, err)
		return
	}

	log.Info().Str("session", id).Msg("API: session started")
	c.JSON(http.StatusOK, gin.H{"status": "started", "session": id})
}

func writeSessionError(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, relay.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "session": id})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error(), "session": id})
	default:
		log.Error().Err(err).Str("session", id).Msg("API: session operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "session": id})
	}
}
