package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stock-advisor/internal/advisor"
	"stock-advisor/internal/budget"
	"stock-advisor/internal/cache"
)

// RateLimiter provides simple in-memory rate limiting per endpoint.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string
}

// Server exposes the advisor over HTTP and WebSocket.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *advisor.Engine
	budget      *budget.Tracker
	cache       *cache.ContextCache
	watchlist   []string
	config      ServerConfig
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewServer creates the API server. budget and cache may be nil; the matching
// endpoints report accordingly.
func NewServer(config ServerConfig, engine *advisor.Engine, tracker *budget.Tracker, contextCache *cache.ContextCache, watchlist []string, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8090"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		engine:      engine,
		budget:      tracker,
		cache:       contextCache,
		watchlist:   watchlist,
		config:      config,
		rateLimiter: NewRateLimiter(60, time.Minute),
		logger:      logger.With().Str("component", "API").Logger(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"path":  path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)
	s.router.GET("/api/budget", s.handleBudget)

	analysis := s.router.Group("/api")
	analysis.Use(s.rateLimitMiddleware())
	{
		analysis.POST("/analyze/:symbol", s.handleAnalyze)
		analysis.POST("/briefing", s.handleBriefing)
		analysis.POST("/cache/invalidate", s.handleInvalidateCache)
	}

	s.router.GET("/ws/analyze/:symbol", s.handleAnalyzeWS)
}

// Start runs the HTTP server until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
		// generous because an analysis run holds the request open
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}
	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
