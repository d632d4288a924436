package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	NatsURL         string
	NatsToken       string
	APIToken        string

	// Pipeline limits. Corpus limits bound prompt size; phrase limits bound
	// what we accept back from the model.
	CorpusMaxReviews int
	CorpusMaxChars   int
	MaxPhraseCounts  int
	MaxPhrasesPerGen int
}

func Load() Config {
	return Config{
		Port:            envInt("UPREVIEW_PORT", 8460),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("UPREVIEW_MODEL", "claude-sonnet-4-20250514"),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		APIToken:        envStr("UPREVIEW_API_TOKEN", ""),

		CorpusMaxReviews: envInt("CORPUS_MAX_REVIEWS", 100),
		CorpusMaxChars:   envInt("CORPUS_MAX_CHARS", 600),
		MaxPhraseCounts:  envInt("MAX_PHRASE_COUNTS", 1000),
		MaxPhrasesPerGen: envInt("MAX_PHRASES_PER_GEN", 20),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
