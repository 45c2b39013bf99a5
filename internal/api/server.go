package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/config"
	"github.com/nrelay-go/nrelay/internal/db"
	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/hooks"
	intnet "github.com/nrelay-go/nrelay/internal/network"
)

// Sessions is the part of the session manager the API drives.
type Sessions interface {
	Statuses(ctx context.Context) []client.Status
	Find(id string) (*client.Client, error)
	Stop(ctx context.Context, id string) error
	Restart(id string) error
}

// History reads the connection journal.
type History interface {
	Recent(guid string, limit int) ([]db.Entry, error)
	CountByKind(guid string) (map[string]int, error)
}

// Server is the REST API server.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	sessions Sessions

	// Optional dependencies
	host    *hooks.Host
	history History

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, eventBus *events.EventBus, sessions Sessions) *Server {
	if cfg.GetLogging().Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:      cfg,
		eventBus: eventBus,
		sessions: sessions,
	}
}

// SetDependencies injects the extension host and the journal. Either may be
// nil; the matching endpoints then answer 503.
func (s *Server) SetDependencies(host *hooks.Host, history History) {
	s.host = host
	s.history = history
}

// Handler returns the router, building it on first use.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.router = s.buildRouter()
	}
	return s.router
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	apiCfg := s.cfg.GetAPI()
	addr := fmt.Sprintf(":%d", apiCfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// SO_REUSEADDR for immediate rebinding after restart
	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	apiCfg := s.cfg.GetAPI()
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := apiCfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(apiCfg.RateLimitRPS).Middleware())

	router.GET("/api/ping", s.handlePing)

	protected := router.Group("/api")
	protected.Use(RequireToken(apiCfg.Token))
	{
		protected.GET("/sessions", s.handleListSessions)
		protected.GET("/sessions/:id", s.handleGetSession)
		protected.POST("/sessions/:id/move", s.handleMoveSession)
		protected.POST("/sessions/:id/stop", s.handleStopSession)
		protected.POST("/sessions/:id/start", s.handleStartSession)

		protected.GET("/hooks", s.handleGetHooks)
		protected.GET("/history", s.handleGetHistory)
		protected.GET("/system", s.handleGetSystem)
		protected.GET("/config", s.handleGetConfig)
		protected.GET("/feed", s.handleFeed)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
