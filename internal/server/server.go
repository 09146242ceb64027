package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guiyumin/vbrief/internal/core/pipeline"
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// Options configures a Server.
type Options struct {
	Port          int
	APIKey        string
	MaxConcurrent int
	MaxSessions   int
	// Transcriber names the speech-to-text engine for /api/health.
	Transcriber string
}

// Server is the HTTP API for vbrief
type Server struct {
	port        int
	apiKey      string
	transcriber string
	router      *pipeline.Router
	sessions    *SessionRegistry
	jobQueue    *JobQueue
	logger      *slog.Logger
	server      *http.Server
	engine      *gin.Engine
}

// NewServer wires the API around router. Routes are registered here so that
// Handler works without Start.
func NewServer(router *pipeline.Router, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:        opts.Port,
		apiKey:      opts.APIKey,
		transcriber: opts.Transcriber,
		router:      router,
		logger:      logger,
	}
	s.sessions = NewSessionRegistry(opts.MaxSessions, router.NewConversation, logger)
	s.jobQueue = NewJobQueue(opts.MaxConcurrent, s.runJob, logger)

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	s.engine.Use(corsMiddleware())
	if s.apiKey != "" {
		s.engine.Use(s.authMiddleware())
	}

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/summarize", s.handleSummarizeText)
	api.POST("/summarize-url", s.handleSummarizeURL)
	api.POST("/summarize-youtube", s.handleSummarizeYouTube)
	api.POST("/summarize-source", s.handleSummarizeSource)
	api.POST("/follow-up", s.handleFollowUp)
	api.GET("/sessions/:id", s.handleGetSession)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.POST("/jobs", s.handleCreateJob)
	api.GET("/jobs", s.handleGetJobs)
	api.DELETE("/jobs", s.handleClearJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.DELETE("/jobs/:id", s.handleDeleteJob)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "not found",
		})
	})

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the job workers and serves until Stop.
func (s *Server) Start() error {
	s.jobQueue.Start()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.engine,
		ReadTimeout: 30 * time.Second,
		// Summaries of long videos can take many minutes.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting vbrief server",
		"port", s.port,
		"provider", s.router.ProviderName(),
		"transcriber", s.transcriber,
		"auth", s.apiKey != "")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.jobQueue.Stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
