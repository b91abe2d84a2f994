// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for databases (always absolute)
	ReportsDir string // Directory for factor-view exports and run summaries
	LogLevel   string
	Port       int  // Status server port
	DevMode    bool

	IndexSymbol    string // Reference index for regime detection and alignment
	VolProxySymbol string // Volatility proxy series
	FXSymbol       string // FX series used as a regime feature

	MarketDataBaseURL string
	MarketDataTimeout int // seconds, per external call

	NotifyChannel string // "log" or "file"
	NotifyFile    string // target when NotifyChannel == "file"
	NewsFile      string // optional article file for the sentiment model

	Regime     RegimeConfig
	Betas      BetaConfig
	Prediction PredictionConfig
	Weights    ScoringWeights
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("VIGIL_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	reportsDir := getEnv("VIGIL_REPORTS_DIR", filepath.Join(absDataDir, "reports"))
	absReportsDir, err := filepath.Abs(reportsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reports directory path: %w", err)
	}
	if err := os.MkdirAll(absReportsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	weights, err := NewScoringWeights(
		getEnvAsFloat("SCORE_WEIGHT_PREDICTION", DefaultWeightPrediction),
		getEnvAsFloat("SCORE_WEIGHT_TECHNICAL", DefaultWeightTechnical),
		getEnvAsFloat("SCORE_WEIGHT_INDEX_ALIGNMENT", DefaultWeightIndexAlignment),
		getEnvAsFloat("SCORE_WEIGHT_LIQUIDITY", DefaultWeightLiquidity),
		getEnvAsFloat("SCORE_WEIGHT_VOLATILITY", DefaultWeightVolatility),
		getEnvAsFloat("SCORE_WEIGHT_SECTOR_MOMENTUM", DefaultWeightSectorMomentum),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring weights: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		ReportsDir:        absReportsDir,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnvAsInt("VIGIL_PORT", 8010),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		IndexSymbol:       getEnv("VIGIL_INDEX_SYMBOL", "SPY"),
		VolProxySymbol:    getEnv("VIGIL_VOL_PROXY_SYMBOL", "VIXY"),
		FXSymbol:          getEnv("VIGIL_FX_SYMBOL", "EURUSD=X"),
		MarketDataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://query1.finance.yahoo.com"),
		MarketDataTimeout: getEnvAsInt("MARKET_DATA_TIMEOUT_SECONDS", 30),
		NotifyChannel:     getEnv("VIGIL_NOTIFY_CHANNEL", "log"),
		NotifyFile:        getEnv("VIGIL_NOTIFY_FILE", filepath.Join(absDataDir, "notifications.jsonl")),
		NewsFile:          getEnv("VIGIL_NEWS_FILE", ""),
		Regime:            DefaultRegimeConfig(),
		Betas:             DefaultBetaConfig(),
		Prediction:        DefaultPredictionConfig(),
		Weights:           weights,
	}

	cfg.Regime.LookbackDays = getEnvAsInt("REGIME_LOOKBACK_DAYS", cfg.Regime.LookbackDays)
	cfg.Betas.LookbackDays = getEnvAsInt("BETA_LOOKBACK_DAYS", cfg.Betas.LookbackDays)
	cfg.Betas.MinObservations = getEnvAsInt("BETA_MIN_OBSERVATIONS", cfg.Betas.MinObservations)
	cfg.Prediction.Workers = getEnvAsInt("PREDICTION_WORKERS", cfg.Prediction.Workers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present and consistent
func (c *Config) Validate() error {
	if c.IndexSymbol == "" {
		return fmt.Errorf("index symbol must not be empty")
	}
	if c.MarketDataTimeout <= 0 {
		return fmt.Errorf("market data timeout must be positive, got %d", c.MarketDataTimeout)
	}
	if err := c.Regime.Validate(); err != nil {
		return fmt.Errorf("regime config: %w", err)
	}
	if err := c.Betas.Validate(); err != nil {
		return fmt.Errorf("beta config: %w", err)
	}
	if err := c.Prediction.Validate(); err != nil {
		return fmt.Errorf("prediction config: %w", err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
