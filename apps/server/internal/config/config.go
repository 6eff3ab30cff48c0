package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"bluff-lite/apps/server/internal/decision"
	"bluff-lite/apps/server/internal/lock"
	"bluff-lite/apps/server/internal/store"
	"bluff-lite/bluff/npc"
)

type Config struct {
	Store store.Options

	LockMode string
	LockTTL  time.Duration
	RedisURL string

	CacheMode string
	CacheSize int
	CacheTTL  time.Duration

	SignalTimeout  time.Duration
	DecisionBudget time.Duration
	Exploration    float64

	PersonaFile string
	PersonaID   string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	ChatRate      float64

	ListenAddr string
	LogLevel   string
	LogFormat  string
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Store: store.Options{
			Mode:       envOrDefault("STORE_MODE", "file"),
			Dir:        envOrDefault("STORE_DIR", "data"),
			SQLitePath: envOrDefault("STORE_SQLITE_PATH", "data/bluff.db"),
			DSN:        envOrDefault("STORE_DATABASE_DSN", ""),
			BadgerDir:  envOrDefault("STORE_BADGER_DIR", "data/badger"),
		},
		LockMode:       strings.ToLower(envOrDefault("LOCK_MODE", "memory")),
		LockTTL:        envDurationOrDefault("LOCK_TTL", lock.DefaultTTL),
		RedisURL:       envOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		CacheMode:      strings.ToLower(envOrDefault("CACHE_MODE", "memory")),
		CacheSize:      envIntOrDefault("CACHE_SIZE", 4096),
		CacheTTL:       envDurationOrDefault("CACHE_TTL", 30*time.Second),
		SignalTimeout:  envDurationOrDefault("SIGNAL_TIMEOUT", decision.DefaultSignalTimeout),
		DecisionBudget: envDurationOrDefault("DECISION_BUDGET", decision.DefaultBudget),
		Exploration:    envFloatOrDefault("RL_EXPLORATION", npc.DefaultExploration),
		PersonaFile:    envOrDefault("PERSONA_FILE", ""),
		PersonaID:      envOrDefault("PERSONA_ID", npc.DefaultPersonaID),
		OpenAIKey:      envOrDefault("OPENAI_API_KEY", ""),
		OpenAIModel:    envOrDefault("OPENAI_MODEL", ""),
		OpenAIBaseURL:  envOrDefault("OPENAI_BASE_URL", ""),
		ChatRate:       envFloatOrDefault("CHAT_RATE_PER_SEC", 1),
		ListenAddr:     envOrDefault("LISTEN_ADDR", ":8080"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(envOrDefault("LOG_FORMAT", "text")),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.LockMode {
	case "memory", "redis":
	default:
		return fmt.Errorf("LOCK_MODE must be memory or redis, got %q", c.LockMode)
	}
	switch c.CacheMode {
	case "memory", "redis", "off":
	default:
		return fmt.Errorf("CACHE_MODE must be memory, redis or off, got %q", c.CacheMode)
	}
	if c.Exploration < 0 || c.Exploration > 1 {
		return fmt.Errorf("RL_EXPLORATION must be within [0,1], got %v", c.Exploration)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// ConfigureLogging applies level and format to the standard logrus logger.
func (c Config) ConfigureLogging() {
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloatOrDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
