package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"flashcoach/internal/riot"
)

// ErrMissingKeys is returned when either API key is absent
var ErrMissingKeys = errors.New("RIOT_API_KEY and GEMINI_API_KEY must be set in .env file")

type Config struct {
	// Secrets
	RiotAPIKey   string
	GeminiAPIKey string

	// Run
	MatchCount   int
	FetchWorkers int
	ReportsDir   string

	// Checkpointing
	CheckpointPath string

	// Coaching model override (empty = auto-select)
	GeminiModel string

	// Optional outputs
	ArchiveURL        string
	DiscordWebhookURL string

	LogLevel string

	// Endpoint overrides, used by tests
	RiotBaseURL   string
	GeminiBaseURL string
}

// Load loads configuration from environment variables.
// It returns ErrMissingKeys if either API key is unset.
func Load() (*Config, error) {
	cfg := &Config{
		RiotAPIKey:   os.Getenv("RIOT_API_KEY"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),

		MatchCount:   getEnvInt("MATCH_COUNT", 30),
		FetchWorkers: getEnvInt("FETCH_WORKERS", 4),
		ReportsDir:   getEnv("REPORTS_DIR", "reports"),

		CheckpointPath: getEnv("CHECKPOINT_PATH", ".flashcoach/checkpoint.db"),
		GeminiModel:    getEnv("GEMINI_MODEL", ""),

		ArchiveURL:        getEnv("ARCHIVE_URL", ""),
		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		RiotBaseURL:   getEnv("RIOT_BASE_URL", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),
	}

	// Critical configuration - fail if missing
	if cfg.RiotAPIKey == "" || cfg.GeminiAPIKey == "" {
		return nil, ErrMissingKeys
	}

	if err := ValidateCount(cfg.MatchCount); err != nil {
		return nil, fmt.Errorf("MATCH_COUNT: %w", err)
	}

	if cfg.FetchWorkers < 1 {
		cfg.FetchWorkers = 1
	}

	return cfg, nil
}

// ValidateCount checks a match count against what match-v5 will list
func ValidateCount(n int) error {
	if n < 1 || n > riot.MaxMatchCount {
		return fmt.Errorf("match count must be between 1 and %d, got %d", riot.MaxMatchCount, n)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
