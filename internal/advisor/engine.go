package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-advisor/internal/budget"
	"stock-advisor/internal/cache"
	"stock-advisor/internal/indicators"
	"stock-advisor/internal/llm"
	"stock-advisor/internal/market"
	"stock-advisor/internal/memory"
	"stock-advisor/internal/news"
	"stock-advisor/internal/patterns"
	"stock-advisor/internal/regime"
)

const (
	// DefaultConfidenceThreshold gates recommendations the backend is not
	// sure about.
	DefaultConfidenceThreshold = 60

	// LLMProvider is the budget tracker key for reasoning-backend calls.
	LLMProvider = "llm"

	// promptPatternLimit caps how many patterns the prompt embeds.
	promptPatternLimit = 3

	// headlineLimit caps how many headlines the prompt embeds.
	headlineLimit = 5

	// memoryMatchLimit caps how many past scenarios the prompt embeds.
	memoryMatchLimit = 5

	// rsiDifferential is the RSI gap against the benchmark beyond which a
	// symbol counts as out- or underperforming.
	rsiDifferential = 10.0
)

// EngineConfig wires the engine's collaborators. Gateway, Budget, Completer
// and Regimes are required; the rest may be nil and the matching phases
// degrade.
type EngineConfig struct {
	Gateway   *market.Gateway
	Regimes   *regime.Service
	Detector  *patterns.Detector
	Cache     *cache.ContextCache
	Memory    *memory.Store
	News      news.Source
	Completer llm.Completer
	Budget    *budget.Tracker
	Risk      *llm.RiskParams
	Persona   llm.Persona
	Logger    zerolog.Logger
}

// Engine runs the six-phase analysis pipeline for one symbol at a time.
// Phases are strictly sequential; price and technicals failures abort the
// run, everything else degrades.
type Engine struct {
	gateway   *market.Gateway
	regimes   *regime.Service
	detector  *patterns.Detector
	cache     *cache.ContextCache
	memory    *memory.Store
	news      news.Source
	completer llm.Completer
	budget    *budget.Tracker
	risk      *llm.RiskParams
	persona   llm.Persona
	logger    zerolog.Logger

	now func() time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Detector == nil {
		cfg.Detector = patterns.NewDetector(0)
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewContextCache()
	}
	if cfg.Persona == "" {
		cfg.Persona = llm.PersonaBalanced
	}
	return &Engine{
		gateway:   cfg.Gateway,
		regimes:   cfg.Regimes,
		detector:  cfg.Detector,
		cache:     cfg.Cache,
		memory:    cfg.Memory,
		news:      cfg.News,
		completer: cfg.Completer,
		budget:    cfg.Budget,
		risk:      cfg.Risk,
		persona:   cfg.Persona,
		logger:    cfg.Logger.With().Str("component", "Advisor").Logger(),
		now:       time.Now,
	}
}

// AnalyzeOpts tunes a single analysis run.
type AnalyzeOpts struct {
	// ConfidenceThreshold discards recommendations below it. Zero means
	// DefaultConfidenceThreshold.
	ConfidenceThreshold int

	// OnPhase, when set, is called as each phase starts.
	OnPhase func(Phase)
}

func (o AnalyzeOpts) threshold() int {
	if o.ConfidenceThreshold <= 0 {
		return DefaultConfidenceThreshold
	}
	return o.ConfidenceThreshold
}

func (o AnalyzeOpts) notify(p Phase) {
	if o.OnPhase != nil {
		o.OnPhase(p)
	}
}

// Analyze runs the full pipeline for one symbol. Preconditions (backend
// credentials, reasoning budget) are checked before any market data is
// fetched so a doomed run consumes nothing.
func (e *Engine) Analyze(ctx context.Context, symbol string, opts AnalyzeOpts) Outcome {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	log := e.logger.With().Str("symbol", symbol).Logger()

	if e.completer == nil || !e.completer.IsConfigured() {
		log.Warn().Msg("Reasoning backend not configured, skipping analysis")
		return skipped(StatusSkippedNoCredentials, "reasoning backend credential not configured")
	}
	if e.budget != nil && !e.budget.CanUse(LLMProvider) {
		log.Warn().Msg("Reasoning budget exhausted, skipping analysis")
		return skipped(StatusSkippedBudgetExhausted, "reasoning budget exhausted for current window")
	}

	opts.notify(PhaseRegime)
	assessment := e.assessRegime(ctx, log)

	opts.notify(PhasePrice)
	quote, err := e.gateway.Quote(ctx, symbol)
	if err != nil {
		log.Error().Err(err).Msg("Quote fetch failed")
		return failed(fmt.Sprintf("quote unavailable: %v", err))
	}

	opts.notify(PhaseTechnicals)
	ind, candles, err := e.technicals(ctx, symbol)
	if err != nil {
		log.Error().Err(err).Msg("Candle fetch failed")
		return failed(fmt.Sprintf("candles unavailable: %v", err))
	}

	opts.notify(PhasePatterns)
	detected := e.patterns(symbol, candles, ind.Trend)

	opts.notify(PhaseNews)
	headlines := e.headlines(ctx, symbol)

	relStrength := e.relativeStrength(ctx, ind)
	memoryContext, sig := e.memoryContext(ind, detected, assessment.Regime)

	opts.notify(PhaseReasoning)
	if e.budget != nil {
		e.budget.Record(LLMProvider)
	}

	prompt := llm.BuildAnalysisPrompt(llm.PromptData{
		Quote:            quote,
		Indicators:       ind,
		Regime:           assessment,
		Patterns:         promptPatterns(detected),
		RelativeStrength: relStrength,
		Headlines:        headlines,
		MemoryContext:    memoryContext,
		Risk:             e.risk,
	})

	text, err := e.completer.Complete(ctx, llm.BuildSystemPrompt(e.persona), prompt)
	if err != nil {
		log.Error().Err(err).Msg("Reasoning backend call failed")
		return failed(fmt.Sprintf("reasoning backend: %v", err))
	}

	parsed, err := llm.ParseRecommendation(text, quote.Price)
	if err != nil {
		log.Error().Err(err).Str("response", truncate(text, 200)).Msg("Unparseable backend response")
		return failed(fmt.Sprintf("unparseable response: %v", err))
	}

	if parsed.Confidence < opts.threshold() {
		log.Info().Int("confidence", parsed.Confidence).Int("threshold", opts.threshold()).
			Msg("Recommendation below confidence threshold, discarded")
		return skipped(StatusSkippedLowConfidence,
			fmt.Sprintf("confidence %d below threshold %d", parsed.Confidence, opts.threshold()))
	}

	rec := e.buildRecommendation(symbol, quote, parsed, assessment, detected)
	e.recordScenario(rec, quote.Price, sig)

	log.Info().Str("action", string(rec.Action)).Int("confidence", rec.Confidence).
		Str("regime", string(rec.Regime)).Msg("Recommendation emitted")
	return success(rec)
}

// assessRegime returns the cached assessment when fresh, otherwise
// reclassifies. A failed classification degrades to NEUTRAL rather than
// aborting the run.
func (e *Engine) assessRegime(ctx context.Context, log zerolog.Logger) regime.Assessment {
	if a, ok := e.cache.Regime(); ok {
		return a
	}
	if e.regimes == nil {
		return regime.Classify(0, 0, 0, regime.DefaultThresholds())
	}
	a, err := e.regimes.Assess(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Regime assessment unavailable, proceeding as NEUTRAL")
		return regime.Classify(0, 0, 0, regime.DefaultThresholds())
	}
	e.cache.SetRegime(a)
	return a
}

func (e *Engine) technicals(ctx context.Context, symbol string) (indicators.TechnicalIndicators, []market.Candle, error) {
	candles, err := e.gateway.Candles(ctx, symbol, market.IntervalDaily)
	if err != nil {
		return indicators.TechnicalIndicators{}, nil, err
	}
	if ind, ok := e.cache.Indicators(symbol); ok {
		return ind, candles, nil
	}
	ind := indicators.Compute(candles)
	e.cache.SetIndicators(symbol, ind)
	return ind, candles, nil
}

func (e *Engine) patterns(symbol string, candles []market.Candle, trend indicators.Trend) []patterns.Pattern {
	if ps, ok := e.cache.Patterns(symbol); ok {
		return ps
	}
	ps := e.detector.Detect(candles, trend)
	e.cache.SetPatterns(symbol, ps)
	return ps
}

func (e *Engine) headlines(ctx context.Context, symbol string) []string {
	if e.news == nil {
		return nil
	}
	all, err := e.news.Recent(ctx, 50)
	if err != nil {
		e.logger.Warn().Err(err).Msg("News fetch failed, proceeding without headlines")
		return nil
	}
	relevant := news.FilterFor(all, symbol, headlineLimit)
	return llm.SanitizeAll(news.Titles(relevant))
}

// relativeStrength compares the symbol's RSI against the benchmark's. A gap
// beyond rsiDifferential in either direction labels the symbol; anything
// inside the band is neutral.
func (e *Engine) relativeStrength(ctx context.Context, ind indicators.TechnicalIndicators) string {
	if ind.RSI14 == nil || e.regimes == nil {
		return ""
	}
	benchCandles, err := e.gateway.Candles(ctx, e.regimes.Benchmark(), market.IntervalDaily)
	if err != nil {
		return ""
	}
	benchRSI := indicators.RSI(market.Closes(benchCandles), 14)
	if benchRSI == nil {
		return ""
	}
	diff := *ind.RSI14 - *benchRSI
	switch {
	case diff > rsiDifferential:
		return "outperforming"
	case diff < -rsiDifferential:
		return "underperforming"
	default:
		return "neutral"
	}
}

func (e *Engine) memoryContext(ind indicators.TechnicalIndicators, detected []patterns.Pattern, r regime.Regime) (string, memory.Signature) {
	sig := memory.BuildSignature(ind, detected, r)
	if e.memory == nil {
		return "", sig
	}
	matches := e.memory.FindSimilar(sig, memoryMatchLimit)
	return memory.RenderContext(matches, r), sig
}

func (e *Engine) buildRecommendation(symbol string, quote market.Quote, parsed *llm.Parsed, assessment regime.Assessment, detected []patterns.Pattern) *Recommendation {
	names := make([]string, 0, promptPatternLimit)
	for _, p := range promptPatterns(detected) {
		names = append(names, p.Name)
	}

	sources := []string{"quote", "candles"}
	if e.news != nil {
		sources = append(sources, "news:"+e.news.Name())
	}

	return &Recommendation{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Action:       parsed.Action,
		Confidence:   parsed.Confidence,
		Rationale:    parsed.Rationale,
		PriceTarget:  parsed.PriceTarget,
		StopLoss:     parsed.StopLoss,
		Shares:       parsed.Shares,
		DollarAmount: parsed.DollarAmount,
		Regime:       assessment.Regime,
		Patterns:     names,
		Sources:      sources,
		Timestamp:    e.now(),
	}
}

func (e *Engine) recordScenario(rec *Recommendation, price float64, sig memory.Signature) {
	if e.memory == nil {
		return
	}
	e.memory.Record(memory.Scenario{
		ID:         rec.ID,
		Symbol:     rec.Symbol,
		Signature:  sig,
		Action:     string(rec.Action),
		Confidence: rec.Confidence,
		Price:      price,
		Timestamp:  rec.Timestamp,
	})
}

// promptPatterns filters to significant patterns and keeps the most recent
// few for the prompt.
func promptPatterns(detected []patterns.Pattern) []patterns.Pattern {
	return patterns.MostRecent(patterns.Significant(detected), promptPatternLimit)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
