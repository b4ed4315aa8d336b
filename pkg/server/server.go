package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/soundprediction/azurellm/pkg/embedder"
	"github.com/soundprediction/azurellm/pkg/logger"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"github.com/soundprediction/azurellm/pkg/nlp"
	"github.com/soundprediction/azurellm/pkg/server/handlers"
	"github.com/soundprediction/azurellm/pkg/telemetry"
	"github.com/soundprediction/azurellm/pkg/types"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Dependencies are the services exposed over HTTP.
type Dependencies struct {
	Embedder       embedder.Client
	EmbeddingModel string
	Completer      nlp.Completer
	// Metrics is served at /metrics when set.
	Metrics *metrics.Metrics
	// Checks are run by the readiness endpoints.
	Checks map[string]handlers.Check
	Logger *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	deps   Dependencies
	logger *zap.Logger
	router *gin.Engine
	server *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: log.Named("server"),
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	s.router = gin.New()

	s.router.Use(requestIDMiddleware())
	s.router.Use(contextMiddleware())
	s.router.Use(requestLogger(s.logger))
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("Recovered from panic in handler",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Checks)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck) // Kubernetes liveness probe
	s.router.GET("/health/detailed", healthHandler.DetailedHealthCheck)

	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		if s.deps.Embedder != nil {
			v1.POST("/embeddings", handlers.NewEmbeddingsHandler(s.deps.Embedder, s.deps.EmbeddingModel).Embed)
		}
		if s.deps.Completer != nil {
			v1.POST("/chat", handlers.NewChatHandler(s.deps.Completer).Complete)
		}
		v1.GET("/providers", handlers.ListProviders)
		v1.GET("/models", handlers.ListModels)
	}
}

// Handler returns the configured router. Setup must be called first.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server and blocks until it stops. A graceful Stop is not
// reported as an error.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID, X-Session-ID, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware keeps an incoming X-Request-ID or assigns a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// contextMiddleware extracts context information from headers
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if userID := c.GetHeader("X-User-ID"); userID != "" {
			ctx = context.WithValue(ctx, types.ContextKeyUserID, userID)
		}
		if sessionID := c.GetHeader("X-Session-ID"); sessionID != "" {
			ctx = context.WithValue(ctx, types.ContextKeySessionID, sessionID)
		}
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestLogger logs one entry per request. Failed requests are logged at
// error level with the request identity so they reach the telemetry core.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(RequestIDHeader)),
		}
		fields = append(fields, telemetry.ContextFields(c.Request.Context())...)
		reqLog := logger.WithTrace(c.Request.Context(), log)

		switch {
		case len(c.Errors) > 0:
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
			if c.Writer.Status() >= http.StatusInternalServerError {
				reqLog.Error("Request failed", fields...)
			} else {
				reqLog.Warn("Request failed", fields...)
			}
		default:
			reqLog.Info("Request handled", fields...)
		}
	}
}
