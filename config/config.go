package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MarketConfig   MarketConfig   `json:"market"`
	BudgetConfig   BudgetConfig   `json:"budget"`
	LLMConfig      LLMConfig      `json:"llm"`
	RiskConfig     RiskConfig     `json:"risk"`
	NewsConfig     NewsConfig     `json:"news"`
	ServerConfig   ServerConfig   `json:"server"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	RedisConfig    RedisConfig    `json:"redis"`
	DatabaseConfig DatabaseConfig `json:"database"`
	VaultConfig    VaultConfig    `json:"vault"`
	MemoryConfig   MemoryConfig   `json:"memory"`
}

// MarketConfig selects data providers and the symbols they serve.
type MarketConfig struct {
	FinnhubAPIKey      string   `json:"finnhub_api_key"`
	AlphaVantageAPIKey string   `json:"alphavantage_api_key"`
	Benchmark          string   `json:"benchmark"`
	Watchlist          []string `json:"watchlist"`
	MockMode           bool     `json:"mock_mode"` // simulated data for development
}

// ProviderBudget is one provider's quota configuration.
type ProviderBudget struct {
	Name   string `json:"name"`
	Limit  int    `json:"limit"`
	Window string `json:"window"` // "hour" or "day"
}

// BudgetConfig controls call quotas and their persistence.
type BudgetConfig struct {
	StatePath  string           `json:"state_path"`
	DebounceMS int              `json:"debounce_ms"`
	Providers  []ProviderBudget `json:"providers"`
}

// LLMConfig configures the reasoning backend.
type LLMConfig struct {
	Provider     string  `json:"provider"` // "claude", "openai", or "ollama"
	ClaudeAPIKey string  `json:"claude_api_key"`
	OpenAIAPIKey string  `json:"openai_api_key"`
	Model        string  `json:"model"`
	BaseURL      string  `json:"base_url"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	Persona      string  `json:"persona"` // "balanced", "conservative", "aggressive"
	DailyLimit   int     `json:"daily_limit"`
}

// RiskConfig feeds position sizing in the prompt.
type RiskConfig struct {
	DailyBudget    float64 `json:"daily_budget"`
	MaxPositionPct float64 `json:"max_position_pct"`
	LossLimitPct   float64 `json:"loss_limit_pct"`
}

// NewsConfig points at the headline feed.
type NewsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	JSONFormat bool   `json:"json_format"` // false renders a console writer
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// MemoryConfig bounds the scenario store.
type MemoryConfig struct {
	Capacity int `json:"capacity"`
}

func Load() (*Config, error) {
	// base config from file; absent file means env-only configuration
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// market data
	cfg.MarketConfig.FinnhubAPIKey = getEnvOrDefault("FINNHUB_API_KEY", cfg.MarketConfig.FinnhubAPIKey)
	cfg.MarketConfig.AlphaVantageAPIKey = getEnvOrDefault("ALPHAVANTAGE_API_KEY", cfg.MarketConfig.AlphaVantageAPIKey)
	cfg.MarketConfig.Benchmark = getEnvOrDefault("MARKET_BENCHMARK", cfg.MarketConfig.Benchmark)
	cfg.MarketConfig.MockMode = getEnvOrDefault("MOCK_MODE", boolString(cfg.MarketConfig.MockMode)) == "true"
	if watchlist := os.Getenv("MARKET_WATCHLIST"); watchlist != "" {
		cfg.MarketConfig.Watchlist = splitList(watchlist)
	}

	// budget
	cfg.BudgetConfig.StatePath = getEnvOrDefault("BUDGET_STATE_PATH", cfg.BudgetConfig.StatePath)
	cfg.BudgetConfig.DebounceMS = getEnvIntOrDefault("BUDGET_DEBOUNCE_MS", cfg.BudgetConfig.DebounceMS)

	// reasoning backend
	cfg.LLMConfig.Provider = getEnvOrDefault("LLM_PROVIDER", cfg.LLMConfig.Provider)
	cfg.LLMConfig.ClaudeAPIKey = getEnvOrDefault("LLM_CLAUDE_API_KEY", cfg.LLMConfig.ClaudeAPIKey)
	cfg.LLMConfig.OpenAIAPIKey = getEnvOrDefault("LLM_OPENAI_API_KEY", cfg.LLMConfig.OpenAIAPIKey)
	cfg.LLMConfig.Model = getEnvOrDefault("LLM_MODEL", cfg.LLMConfig.Model)
	cfg.LLMConfig.BaseURL = getEnvOrDefault("LLM_BASE_URL", cfg.LLMConfig.BaseURL)
	cfg.LLMConfig.Persona = getEnvOrDefault("LLM_PERSONA", cfg.LLMConfig.Persona)
	cfg.LLMConfig.DailyLimit = getEnvIntOrDefault("LLM_DAILY_LIMIT", cfg.LLMConfig.DailyLimit)

	// risk parameters
	cfg.RiskConfig.DailyBudget = getEnvFloatOrDefault("RISK_DAILY_BUDGET", cfg.RiskConfig.DailyBudget)
	cfg.RiskConfig.MaxPositionPct = getEnvFloatOrDefault("RISK_MAX_POSITION_PCT", cfg.RiskConfig.MaxPositionPct)
	cfg.RiskConfig.LossLimitPct = getEnvFloatOrDefault("RISK_LOSS_LIMIT_PCT", cfg.RiskConfig.LossLimitPct)

	// news feed
	cfg.NewsConfig.Enabled = getEnvOrDefault("NEWS_ENABLED", boolString(cfg.NewsConfig.Enabled)) == "true"
	cfg.NewsConfig.Endpoint = getEnvOrDefault("NEWS_ENDPOINT", cfg.NewsConfig.Endpoint)
	cfg.NewsConfig.APIKey = getEnvOrDefault("NEWS_API_KEY", cfg.NewsConfig.APIKey)

	// server
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", boolString(cfg.ServerConfig.ProductionMode)) == "true"
	if origins := os.Getenv("SERVER_ALLOWED_ORIGINS"); origins != "" {
		cfg.ServerConfig.AllowedOrigins = splitList(origins)
	}

	// logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.LoggingConfig.JSONFormat)) == "true"

	// redis
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// postgres
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DATABASE_ENABLED", boolString(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DATABASE_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DATABASE_SSL_MODE", cfg.DatabaseConfig.SSLMode)

	// vault
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", boolString(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	// memory store
	cfg.MemoryConfig.Capacity = getEnvIntOrDefault("MEMORY_CAPACITY", cfg.MemoryConfig.Capacity)
}

func applyDefaults(cfg *Config) {
	if cfg.MarketConfig.Benchmark == "" {
		cfg.MarketConfig.Benchmark = "SPY"
	}
	if len(cfg.MarketConfig.Watchlist) == 0 {
		cfg.MarketConfig.Watchlist = []string{"AAPL", "MSFT", "GOOGL", "NVDA"}
	}

	if cfg.BudgetConfig.StatePath == "" {
		cfg.BudgetConfig.StatePath = "budget_state.json"
	}
	if cfg.BudgetConfig.DebounceMS <= 0 {
		cfg.BudgetConfig.DebounceMS = 100
	}
	if len(cfg.BudgetConfig.Providers) == 0 {
		cfg.BudgetConfig.Providers = []ProviderBudget{
			{Name: "finnhub", Limit: 60, Window: "hour"},
			{Name: "alphavantage", Limit: 25, Window: "day"},
			{Name: "yahoo", Limit: 0, Window: "hour"}, // unlimited, unofficial
		}
	}

	if cfg.LLMConfig.Provider == "" {
		cfg.LLMConfig.Provider = "claude"
	}
	if cfg.LLMConfig.Model == "" {
		cfg.LLMConfig.Model = "claude-sonnet-4-20250514"
	}
	if cfg.LLMConfig.MaxTokens <= 0 {
		cfg.LLMConfig.MaxTokens = 1024
	}
	if cfg.LLMConfig.Temperature <= 0 {
		cfg.LLMConfig.Temperature = 0.3
	}
	if cfg.LLMConfig.Persona == "" {
		cfg.LLMConfig.Persona = "balanced"
	}
	if cfg.LLMConfig.DailyLimit <= 0 {
		cfg.LLMConfig.DailyLimit = 100
	}

	if cfg.RiskConfig.DailyBudget <= 0 {
		cfg.RiskConfig.DailyBudget = 1000
	}
	if cfg.RiskConfig.MaxPositionPct <= 0 {
		cfg.RiskConfig.MaxPositionPct = 20
	}
	if cfg.RiskConfig.LossLimitPct <= 0 {
		cfg.RiskConfig.LossLimitPct = 5
	}

	if cfg.ServerConfig.Port <= 0 {
		cfg.ServerConfig.Port = 8090
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize <= 0 {
		cfg.RedisConfig.PoolSize = 10
	}

	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port <= 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	if cfg.MemoryConfig.Capacity <= 0 {
		cfg.MemoryConfig.Capacity = 500
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Debounce returns the budget persistence debounce as a duration.
func (b BudgetConfig) Debounce() time.Duration {
	return time.Duration(b.DebounceMS) * time.Millisecond
}

// GenerateSampleConfig writes a starter config.json with placeholder keys.
func GenerateSampleConfig(filename string) error {
	config := Config{
		MarketConfig: MarketConfig{
			FinnhubAPIKey:      "your_finnhub_key_here",
			AlphaVantageAPIKey: "your_alphavantage_key_here",
			Benchmark:          "SPY",
			Watchlist:          []string{"AAPL", "MSFT", "GOOGL", "NVDA"},
			MockMode:           true,
		},
		BudgetConfig: BudgetConfig{
			StatePath:  "budget_state.json",
			DebounceMS: 100,
			Providers: []ProviderBudget{
				{Name: "finnhub", Limit: 60, Window: "hour"},
				{Name: "alphavantage", Limit: 25, Window: "day"},
				{Name: "yahoo", Limit: 0, Window: "hour"},
			},
		},
		LLMConfig: LLMConfig{
			Provider:     "claude",
			ClaudeAPIKey: "your_claude_key_here",
			Model:        "claude-sonnet-4-20250514",
			MaxTokens:    1024,
			Temperature:  0.3,
			Persona:      "balanced",
			DailyLimit:   100,
		},
		RiskConfig: RiskConfig{
			DailyBudget:    1000,
			MaxPositionPct: 20,
			LossLimitPct:   5,
		},
		NewsConfig: NewsConfig{
			Enabled:  false,
			Endpoint: "",
			APIKey:   "",
		},
		ServerConfig: ServerConfig{
			Port: 8090,
			Host: "0.0.0.0",
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			JSONFormat: false,
		},
		MemoryConfig: MemoryConfig{
			Capacity: 500,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
