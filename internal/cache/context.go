package cache

import (
	"sync"
	"time"

	"stock-advisor/internal/indicators"
	"stock-advisor/internal/patterns"
	"stock-advisor/internal/regime"
)

// Kind selects which cache an invalidation targets.
type Kind string

const (
	KindRegime     Kind = "regime"
	KindIndicators Kind = "indicators"
	KindPatterns   Kind = "patterns"
	KindAll        Kind = "all"
)

// Default TTLs. Regimes change slowly, prices change every tick, patterns sit
// in between.
const (
	RegimeTTL     = 5 * time.Minute
	IndicatorsTTL = 1 * time.Minute
	PatternsTTL   = 15 * time.Minute
)

// DefaultCapacity bounds the per-symbol caches.
const DefaultCapacity = 50

// ContextCache fronts the regime classifier, indicator calculator, and
// pattern detector. The regime cache is a single slot (one market, one
// regime); the per-symbol caches are capacity-bounded LRUs.
type ContextCache struct {
	mu            sync.Mutex
	regimeValue   *regime.Assessment
	regimeExpires time.Time
	regimeTTL     time.Duration

	indicatorCache *LRU
	patternCache   *LRU

	now func() time.Time
}

// NewContextCache creates the three caches with the default TTLs and
// capacity.
func NewContextCache() *ContextCache {
	return &ContextCache{
		regimeTTL:      RegimeTTL,
		indicatorCache: NewLRU(DefaultCapacity, IndicatorsTTL),
		patternCache:   NewLRU(DefaultCapacity, PatternsTTL),
		now:            time.Now,
	}
}

// Regime returns the cached assessment, if fresh.
func (c *ContextCache) Regime() (regime.Assessment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.regimeValue == nil || c.now().After(c.regimeExpires) {
		return regime.Assessment{}, false
	}
	return *c.regimeValue, true
}

// SetRegime stores the assessment for the regime TTL.
func (c *ContextCache) SetRegime(a regime.Assessment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regimeValue = &a
	c.regimeExpires = c.now().Add(c.regimeTTL)
}

// Indicators returns the cached snapshot for a symbol, if fresh.
func (c *ContextCache) Indicators(symbol string) (indicators.TechnicalIndicators, bool) {
	v, ok := c.indicatorCache.Get(symbol)
	if !ok {
		return indicators.TechnicalIndicators{}, false
	}
	return v.(indicators.TechnicalIndicators), true
}

// SetIndicators stores a symbol's indicator snapshot.
func (c *ContextCache) SetIndicators(symbol string, ind indicators.TechnicalIndicators) {
	c.indicatorCache.Set(symbol, ind)
}

// Patterns returns the cached detections for a symbol, if fresh.
func (c *ContextCache) Patterns(symbol string) ([]patterns.Pattern, bool) {
	v, ok := c.patternCache.Get(symbol)
	if !ok {
		return nil, false
	}
	return v.([]patterns.Pattern), true
}

// SetPatterns stores a symbol's detected patterns.
func (c *ContextCache) SetPatterns(symbol string, ps []patterns.Pattern) {
	c.patternCache.Set(symbol, ps)
}

// Invalidate drops the selected cache kind. Used after material settings
// changes so the next analysis recomputes from live data.
func (c *ContextCache) Invalidate(kind Kind) {
	switch kind {
	case KindRegime:
		c.mu.Lock()
		c.regimeValue = nil
		c.mu.Unlock()
	case KindIndicators:
		c.indicatorCache.Purge()
	case KindPatterns:
		c.patternCache.Purge()
	case KindAll:
		c.mu.Lock()
		c.regimeValue = nil
		c.mu.Unlock()
		c.indicatorCache.Purge()
		c.patternCache.Purge()
	}
}
