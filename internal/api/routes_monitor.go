package api

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nrelay-go/nrelay/internal/util"
)

const snapshotTimeout = 2 * time.Second

// handleListSessions returns the status of every session.
func (s *Server) handleListSessions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), snapshotTimeout)
	defer cancel()

	statuses := s.sessions.Statuses(ctx)
	c.JSON(http.StatusOK, gin.H{
		"sessions": statuses,
		"total":    len(statuses),
	})
}

// handleGetSession returns one session's full status.
func (s *Server) handleGetSession(c *gin.Context) {
	id := c.Param("id")
	cl, err := s.sessions.Find(id)
	if err != nil {
		writeSessionError(c, id, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), snapshotTimeout)
	defer cancel()
	st, err := cl.Snapshot(ctx)
	if err != nil {
		writeSessionError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// handleGetHooks returns the loaded extensions and per-owner hook counters.
func (s *Server) handleGetHooks(c *gin.Context) {
	if s.host == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "extension host not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"extensions": s.host.Loaded(),
		"stats":      s.host.Registry().Stats(),
	})
}

// handleGetHistory returns recent journal entries, optionally for one
// session (?guid=, censored form) with per-kind totals.
func (s *Server) handleGetHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history database not enabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	guid := c.Query("guid")
	entries, err := s.history.Recent(guid, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"entries": entries,
		"total":   len(entries),
	}
	if guid != "" {
		counts, err := s.history.CountByKind(guid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["counts"] = counts
	}
	c.JSON(http.StatusOK, resp)
}

// handleGetSystem returns host information and current resource usage of
// the host and the relay process.
func (s *Server) handleGetSystem(c *gin.Context) {
	dataDir := ""
	if dbCfg := s.cfg.GetDatabase(); dbCfg.Enabled {
		dataDir = filepath.Dir(dbCfg.Path)
	}
	c.JSON(http.StatusOK, gin.H{
		"host":  util.GetHostInfo(),
		"usage": util.ReadResourceUsage(dataDir),
	})
}
