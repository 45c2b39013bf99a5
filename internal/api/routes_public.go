package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nrelay-go/nrelay/internal/telemetry"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "nrelay",
		"version": telemetry.AppVersion,
	})
}
