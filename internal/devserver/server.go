// Package devserver is an in-process stand-in for the NebulaGlass backend.
// It serves the same routes with in-memory state and a deterministic
// analyzer so the client can be exercised end to end without the real
// service.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nebulaglass/nebula-client/pkg/health"
	"github.com/nebulaglass/nebula-client/pkg/metrics"
)

// Config configures the stub backend
type Config struct {
	Addr      string
	JWTSecret string
	TokenTTL  time.Duration
	// AnalyzeFailures makes the first n analysis calls answer 503, the way
	// the real service does while its models load
	AnalyzeFailures int
}

// DefaultConfig returns a config listening on the backend port
func DefaultConfig() Config {
	return Config{
		Addr:      ":8000",
		JWTSecret: "nebulaglass-dev-secret",
		TokenTTL:  24 * time.Hour,
	}
}

// Server is the stub backend
type Server struct {
	config  Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *memoryStore
	router  *gin.Engine
	health  *health.Service

	mu           sync.Mutex
	failuresLeft int
}

// New creates the server and its routes. logger and m may be nil.
func New(config Config, logger *zap.Logger, m *metrics.Metrics) *Server {
	defaults := DefaultConfig()
	if config.JWTSecret == "" {
		config.JWTSecret = defaults.JWTSecret
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = defaults.TokenTTL
	}
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:       config,
		logger:       logger,
		metrics:      m,
		store:        newMemoryStore(),
		failuresLeft: config.AnalyzeFailures,
	}
	s.health = s.setupHealth()
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "traceparent"},
		ExposeHeaders:   []string{"X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))
	if s.metrics != nil {
		router.Use(s.metrics.PrometheusMiddleware())
	}

	router.NoRoute(func(c *gin.Context) {
		detail(c, http.StatusNotFound, "Not Found")
	})
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		detail(c, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.GET("/", s.root)
	router.GET("/healthz", s.health.Handler())

	auth := router.Group("/auth")
	{
		auth.POST("/register", s.register)
		auth.POST("/login", s.login)
	}

	protected := router.Group("/")
	protected.Use(s.authRequired())
	{
		protected.POST("/upload", s.upload)
		protected.GET("/documents", s.listDocuments)
		protected.GET("/documents/:id", s.getDocument)
		protected.DELETE("/documents/:id", s.deleteDocument)
		protected.POST("/analyze/:id", s.analyze)
		protected.GET("/analysis/:id", s.getAnalysis)
		protected.POST("/ask-question/:id", s.askQuestion)
	}

	return router
}

func (s *Server) setupHealth() *health.Service {
	service := health.NewService(nil, &health.Config{
		Timeout:  2 * time.Second,
		Metadata: map[string]string{"service": serviceName},
	})

	service.RegisterChecker("analyzer", health.NewCustomChecker("analyzer", func(context.Context) (health.Status, string, error) {
		s.mu.Lock()
		left := s.failuresLeft
		s.mu.Unlock()
		if left > 0 {
			return health.StatusDegraded, "models are still loading", nil
		}
		return health.StatusHealthy, "ready", nil
	}))
	service.RegisterChecker("store", health.NewCustomChecker("store", func(context.Context) (health.Status, string, error) {
		users, documents, analyses := s.store.counts()
		return health.StatusHealthy, fmt.Sprintf("%d users, %d documents, %d analyses", users, documents, analyses), nil
	}))
	return service
}

// requestLogger logs every request with zap
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if id := c.GetHeader("X-Request-ID"); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("Request failed", fields...)
			return
		}
		s.logger.Info("Request completed", fields...)
	}
}

// ListenAndServe serves on the configured address until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Stub backend listening", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutting down stub backend")
		return srv.Shutdown(shutdownCtx)
	}
}

// detail writes an error body in the backend's {"detail": ...} shape
func detail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": message})
}
