package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stock-advisor/internal/advisor"
	"stock-advisor/internal/cache"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleBudget(c *gin.Context) {
	if s.budget == nil {
		c.JSON(http.StatusOK, gin.H{"providers": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": s.budget.AllStatuses()})
}

type analyzeRequest struct {
	ConfidenceThreshold int `json:"confidenceThreshold"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	var req analyzeRequest
	// body is optional; ignore bind errors on an empty body
	_ = c.ShouldBindJSON(&req)

	outcome := s.engine.Analyze(c.Request.Context(), symbol, advisor.AnalyzeOpts{
		ConfidenceThreshold: req.ConfidenceThreshold,
	})
	c.JSON(statusFor(outcome), outcome)
}

type briefingRequest struct {
	Symbols             []string `json:"symbols"`
	ConfidenceThreshold int      `json:"confidenceThreshold"`
	DelaySeconds        int      `json:"delaySeconds"`
}

func (s *Server) handleBriefing(c *gin.Context) {
	var req briefingRequest
	if err := c.ShouldBindJSON(&req); err != nil && len(s.watchlist) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = s.watchlist
	}
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no symbols requested and no watchlist configured"})
		return
	}

	opts := advisor.BriefingOpts{
		AnalyzeOpts: advisor.AnalyzeOpts{ConfidenceThreshold: req.ConfidenceThreshold},
	}
	if req.DelaySeconds > 0 {
		opts.Delay = time.Duration(req.DelaySeconds) * time.Second
	}

	results := s.engine.Briefing(c.Request.Context(), symbols, opts)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleInvalidateCache(c *gin.Context) {
	if s.cache == nil {
		c.JSON(http.StatusOK, gin.H{"invalidated": "none"})
		return
	}

	kind := cache.Kind(c.DefaultQuery("kind", string(cache.KindAll)))
	switch kind {
	case cache.KindRegime, cache.KindIndicators, cache.KindPatterns, cache.KindAll:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown cache kind", "kind": string(kind)})
		return
	}

	s.cache.Invalidate(kind)
	s.logger.Info().Str("kind", string(kind)).Msg("Cache invalidated")
	c.JSON(http.StatusOK, gin.H{"invalidated": string(kind)})
}

// statusFor maps an analysis outcome to an HTTP status. Skips are not errors;
// they get 200 with the outcome body so callers can branch on status.
func statusFor(outcome advisor.Outcome) int {
	if outcome.Status == advisor.StatusFailed {
		return http.StatusBadGateway
	}
	return http.StatusOK
}
