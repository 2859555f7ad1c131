package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"stock-advisor/config"
	"stock-advisor/internal/advisor"
	"stock-advisor/internal/api"
	"stock-advisor/internal/budget"
	"stock-advisor/internal/cache"
	"stock-advisor/internal/database"
	"stock-advisor/internal/llm"
	"stock-advisor/internal/logging"
	"stock-advisor/internal/market"
	"stock-advisor/internal/memory"
	"stock-advisor/internal/news"
	"stock-advisor/internal/regime"
	"stock-advisor/internal/vault"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Msg("Stock advisor starting")

	ctx := context.Background()

	// Vault resolves upstream credentials, with env values as fallback
	vaultClient, err := vault.NewClient(vault.Config{
		Enabled:    cfg.VaultConfig.Enabled,
		Address:    cfg.VaultConfig.Address,
		Token:      cfg.VaultConfig.Token,
		MountPath:  cfg.VaultConfig.MountPath,
		SecretPath: cfg.VaultConfig.SecretPath,
		TLSEnabled: cfg.VaultConfig.TLSEnabled,
		CACert:     cfg.VaultConfig.CACert,
	})
	if err != nil {
		log.Fatalf("Failed to initialize vault client: %v", err)
	}
	if err := vaultClient.Health(ctx); err != nil {
		logger.Warn().Err(err).Msg("Vault unavailable, using environment credentials")
	}

	finnhubKey := vaultClient.KeyOr(ctx, "finnhub", cfg.MarketConfig.FinnhubAPIKey)
	alphaKey := vaultClient.KeyOr(ctx, "alphavantage", cfg.MarketConfig.AlphaVantageAPIKey)
	claudeKey := vaultClient.KeyOr(ctx, "claude", cfg.LLMConfig.ClaudeAPIKey)
	openAIKey := vaultClient.KeyOr(ctx, "openai", cfg.LLMConfig.OpenAIAPIKey)

	// Budget tracker with debounced persistence
	budgetStore := budget.NewStore(cfg.BudgetConfig.StatePath, cfg.BudgetConfig.Debounce(), logger)
	limits := make([]budget.ProviderLimit, 0, len(cfg.BudgetConfig.Providers)+1)
	for _, p := range cfg.BudgetConfig.Providers {
		limits = append(limits, budget.ProviderLimit{
			Name:   p.Name,
			Limit:  p.Limit,
			Window: budget.Window(p.Window),
		})
	}
	limits = append(limits, budget.ProviderLimit{
		Name:   advisor.LLMProvider,
		Limit:  cfg.LLMConfig.DailyLimit,
		Window: budget.WindowDay,
	})
	tracker := budget.NewTracker(limits, budgetStore, logger)

	// Market data providers, in fallback order
	var providers []market.MarketDataProvider
	if cfg.MarketConfig.MockMode {
		logger.Warn().Msg("Mock mode enabled, serving simulated market data")
		providers = append(providers, market.NewMockProvider())
	} else {
		if finnhubKey != "" {
			providers = append(providers, market.NewFinnhubProvider(finnhubKey))
		}
		if alphaKey != "" {
			providers = append(providers, market.NewAlphaVantageProvider(alphaKey))
		}
		providers = append(providers, market.NewYahooProvider())
	}

	// Optional shared Redis cache tier
	var l2 market.SecondaryCache
	var redisCache *cache.RedisCache
	if cfg.RedisConfig.Enabled {
		redisCache = cache.NewRedisCache(cache.RedisConfig{
			Enabled:  true,
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, logger)
		l2 = redisCache
	}

	gateway := market.NewGateway(providers, tracker, l2, logger)
	regimes := regime.NewService(gateway, cfg.MarketConfig.Benchmark, regime.DefaultThresholds(), logger)

	// Optional Postgres mirror for the scenario memory
	var repo memory.Repository
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(database.Config{
			Enabled:  true,
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Database unavailable, scenario memory will not persist")
			db = nil
		} else {
			repo = database.NewScenarioRepository(db)
		}
	}

	memoryStore := memory.NewStore(cfg.MemoryConfig.Capacity, repo, logger)
	if sr, ok := repo.(*database.ScenarioRepository); ok {
		warmupMemory(ctx, sr, memoryStore, cfg.MemoryConfig.Capacity, logger)
	}

	// News feed
	var newsSource news.Source
	if cfg.NewsConfig.Enabled && cfg.NewsConfig.Endpoint != "" {
		newsSource = news.NewHTTPSource(cfg.NewsConfig.Endpoint, cfg.NewsConfig.APIKey, logger)
	}

	// Reasoning backend
	llmConfig := llm.DefaultClientConfig()
	llmConfig.Provider = llm.Provider(cfg.LLMConfig.Provider)
	llmConfig.Model = cfg.LLMConfig.Model
	llmConfig.BaseURL = cfg.LLMConfig.BaseURL
	llmConfig.MaxTokens = cfg.LLMConfig.MaxTokens
	llmConfig.Temperature = cfg.LLMConfig.Temperature
	switch llmConfig.Provider {
	case llm.ProviderOpenAI:
		llmConfig.APIKey = openAIKey
	case llm.ProviderOllama:
		// local, no key
	default:
		llmConfig.APIKey = claudeKey
	}
	completer := llm.NewClient(llmConfig)
	if !completer.IsConfigured() {
		logger.Warn().Str("provider", string(llmConfig.Provider)).
			Msg("Reasoning backend not configured, analyses will be skipped")
	}

	contextCache := cache.NewContextCache()

	engine := advisor.NewEngine(advisor.EngineConfig{
		Gateway:   gateway,
		Regimes:   regimes,
		Cache:     contextCache,
		Memory:    memoryStore,
		News:      newsSource,
		Completer: completer,
		Budget:    tracker,
		Risk: &llm.RiskParams{
			DailyBudget:    cfg.RiskConfig.DailyBudget,
			MaxPositionPct: cfg.RiskConfig.MaxPositionPct,
			LossLimitPct:   cfg.RiskConfig.LossLimitPct,
		},
		Persona: llm.Persona(cfg.LLMConfig.Persona),
		Logger:  logger,
	})

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
	}, engine, tracker, contextCache, cfg.MarketConfig.Watchlist, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("API server failed")
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown failed")
	}

	// counters are debounced; force the last write out
	tracker.Flush()

	if redisCache != nil {
		_ = redisCache.Close()
	}
	if db != nil {
		db.Close()
	}

	logger.Info().Msg("Shutdown complete")
}

// warmupMemory seeds the in-memory scenario store from the database so past
// outcomes survive restarts. Re-recording mirrors back to the repository,
// which treats existing IDs as no-ops.
func warmupMemory(ctx context.Context, repo *database.ScenarioRepository, store *memory.Store, limit int, logger zerolog.Logger) {
	scenarios, err := repo.LoadScenarios(ctx, limit)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load persisted scenarios")
		return
	}
	// LoadScenarios returns newest first; record oldest first so capacity
	// trimming drops the oldest
	for i := len(scenarios) - 1; i >= 0; i-- {
		store.Record(scenarios[i])
	}
	logger.Info().Int("count", len(scenarios)).Msg("Scenario memory warmed from database")
}
