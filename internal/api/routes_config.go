package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nrelay-go/nrelay/internal/util"
)

type accountView struct {
	GUID   string `json:"guid"`
	Server string `json:"server"`
	CharID int32  `json:"char_id"`
}

// handleGetConfig returns the running configuration with credentials
// removed.
func (s *Server) handleGetConfig(c *gin.Context) {
	accounts := s.cfg.GetAccounts()
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			GUID:   util.CensorGUID(a.GUID),
			Server: a.Server,
			CharID: a.CharID,
		})
	}

	mqtt := s.cfg.GetMQTT()
	c.JSON(http.StatusOK, gin.H{
		"client":     s.cfg.GetClient(),
		"servers":    s.cfg.GetServers(),
		"accounts":   views,
		"extensions": s.cfg.GetExtensions(),
		"resources":  s.cfg.GetResources(),
		"mqtt": gin.H{
			"enabled":      mqtt.Enabled,
			"broker_url":   mqtt.BrokerURL,
			"port":         mqtt.Port,
			"topic_prefix": mqtt.TopicPrefix,
		},
		"database": s.cfg.GetDatabase(),
	})
}
