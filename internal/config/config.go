package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	DefaultModel      = "gpt-4o-mini"
	DefaultDSN        = "file:insights.db"
	DefaultLLMTimeout = 30 * time.Second
	DefaultDelay      = time.Second
)

var (
	ErrMissingAPIKey   = errors.New("OPENAI_API_KEY is not set (set USE_MOCK_LLM=true for offline runs)")
	ErrMissingDatabase = errors.New("DATABASE_URL is not set")
)

// Config is the process configuration: environment first (.env is loaded when
// present), then command line flags bound on top.
type Config struct {
	DatabaseURL string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	LLMTimeout    time.Duration
	LLMMaxRetries int
	MockLLM       bool

	// Delay between two conversations handed to the oracle.
	Delay       time.Duration
	PushGateway string
}

func Load() *Config {
	_ = godotenv.Load() // loads .env

	return &Config{
		DatabaseURL:   envOr("DATABASE_URL", DefaultDSN),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:         envOr("LLM_MODEL", DefaultModel),
		LLMTimeout:    envDuration("LLM_TIMEOUT", DefaultLLMTimeout),
		LLMMaxRetries: envInt("LLM_MAX_RETRIES", 2),
		MockLLM:       os.Getenv("USE_MOCK_LLM") == "true",
		Delay:         envDuration("ANALYSIS_DELAY", DefaultDelay),
		PushGateway:   os.Getenv("PROMETHEUS_PUSHGATEWAY"),
	}
}

func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "Postgres DSN (postgres://...) or sqlite file (file:insights.db)")
	fs.StringVar(&c.OpenAIBaseURL, "ai-endpoint", c.OpenAIBaseURL, "URL of an OpenAI-compatible endpoint. Set OPENAI_API_KEY to specify an API key.")
	fs.StringVar(&c.Model, "ai-model", c.Model, "Model used for every extraction")
	fs.DurationVar(&c.LLMTimeout, "ai-timeout", c.LLMTimeout, "Timeout of a single oracle call")
	fs.IntVar(&c.LLMMaxRetries, "ai-max-retries", c.LLMMaxRetries, "Retries of a transient oracle failure before falling back")
	fs.BoolVar(&c.MockLLM, "mock-llm", c.MockLLM, "Use the deterministic offline oracle")
}

// ValidateOracle fails when no extraction could possibly succeed.
func (c *Config) ValidateOracle() error {
	if c.MockLLM {
		return nil
	}
	if c.OpenAIAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.LLMMaxRetries < 0 {
		return errors.New("ai-max-retries must be >= 0")
	}
	return nil
}

func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabase
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
