package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.MarketConfig.Benchmark != "SPY" {
		t.Errorf("expected SPY benchmark default, got %s", cfg.MarketConfig.Benchmark)
	}
	if len(cfg.BudgetConfig.Providers) == 0 {
		t.Error("expected default provider budgets")
	}
	if cfg.LLMConfig.Provider != "claude" {
		t.Errorf("expected claude default, got %s", cfg.LLMConfig.Provider)
	}
	if cfg.ServerConfig.Port != 8090 {
		t.Errorf("expected default port 8090, got %d", cfg.ServerConfig.Port)
	}
	if cfg.BudgetConfig.Debounce() != 100*time.Millisecond {
		t.Errorf("expected 100ms debounce default, got %v", cfg.BudgetConfig.Debounce())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKET_BENCHMARK", "QQQ")
	t.Setenv("MARKET_WATCHLIST", "TSLA, AMD ,")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("WEB_PORT", "9000")
	t.Setenv("RISK_MAX_POSITION_PCT", "10.5")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.MarketConfig.Benchmark != "QQQ" {
		t.Errorf("env override lost: %s", cfg.MarketConfig.Benchmark)
	}
	if len(cfg.MarketConfig.Watchlist) != 2 || cfg.MarketConfig.Watchlist[1] != "AMD" {
		t.Errorf("watchlist parsing wrong: %v", cfg.MarketConfig.Watchlist)
	}
	if cfg.LLMConfig.Provider != "ollama" {
		t.Errorf("llm provider override lost: %s", cfg.LLMConfig.Provider)
	}
	if cfg.ServerConfig.Port != 9000 {
		t.Errorf("port override lost: %d", cfg.ServerConfig.Port)
	}
	if cfg.RiskConfig.MaxPositionPct != 10.5 {
		t.Errorf("float override lost: %v", cfg.RiskConfig.MaxPositionPct)
	}
}

func TestBadEnvValuesFallBack(t *testing.T) {
	t.Setenv("WEB_PORT", "not-a-number")
	t.Setenv("RISK_DAILY_BUDGET", "nan please")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerConfig.Port != 8090 {
		t.Errorf("bad int should keep default, got %d", cfg.ServerConfig.Port)
	}
	if cfg.RiskConfig.DailyBudget != 1000 {
		t.Errorf("bad float should keep default, got %v", cfg.RiskConfig.DailyBudget)
	}
}

func TestGenerateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := GenerateSampleConfig(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is not valid JSON: %v", err)
	}
	if cfg.MarketConfig.Benchmark != "SPY" {
		t.Errorf("sample benchmark = %s", cfg.MarketConfig.Benchmark)
	}
	if !cfg.MarketConfig.MockMode {
		t.Error("sample config should default to mock mode")
	}
	if len(cfg.BudgetConfig.Providers) != 3 {
		t.Errorf("expected 3 provider budgets, got %d", len(cfg.BudgetConfig.Providers))
	}
}
