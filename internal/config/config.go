package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"maurine-bot/internal/persona"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	GeneratorGemini = "gemini"
	GeneratorOllama = "ollama"
)

// Config contains all runtime settings for the bot.
type Config struct {
	Port             string
	ShutdownTimeout  time.Duration
	LogLevel         string
	LogPretty        bool
	MetricsNamespace string

	StoreDriver     string
	MongoURI        string
	MongoDatabase   string
	DatabaseURL     string
	UserTTL         time.Duration
	ConversationTTL time.Duration
	SweepInterval   time.Duration

	Generator   string
	APIKey      string
	GeminiModel string
	OllamaURL   string
	OllamaModel string

	SessionDB string
	QueueSize int

	Persona persona.Persona
}

// Load reads environment variables and applies defaults. Callers load .env
// beforehand.
func Load() (Config, error) {
	p := persona.Default()
	p.BotName = envOrDefault("BOT_NAME", p.BotName)
	p.FullName = envOrDefault("OWNER_NAME", p.FullName)
	p.OwnerPhone = envOrDefault("OWNER_PHONE", p.OwnerPhone)

	mongoURI := trimmedEnv("MONGO_URI")
	defaultDriver := StoreMemory
	if mongoURI != "" {
		defaultDriver = StoreMongo
	}

	cfg := Config{
		Port:             envOrDefault("PORT", "5000"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		MetricsNamespace: envOrDefault("METRICS_NAMESPACE", "maurine"),
		StoreDriver:      strings.ToLower(envOrDefault("STORE_DRIVER", defaultDriver)),
		MongoURI:         mongoURI,
		MongoDatabase:    envOrDefault("MONGO_DATABASE", "maurine"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		Generator:        strings.ToLower(envOrDefault("GENERATOR", GeneratorGemini)),
		APIKey:           trimmedEnv("API_KEY"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		OllamaURL:        envOrDefault("OLLAMA_URL", "http://localhost:11434/api/chat"),
		OllamaModel:      envOrDefault("OLLAMA_MODEL", "llama3:latest"),
		SessionDB:        envOrDefault("WHATSAPP_SESSION_DB", "file:session.db?_foreign_keys=on"),
		ShutdownTimeout:  10 * time.Second,
		UserTTL:          72 * time.Hour,
		ConversationTTL:  96 * time.Hour,
		SweepInterval:    time.Minute,
		QueueSize:        64,
		Persona:          p,
	}

	var err error
	if cfg.LogPretty, err = boolFromEnv("LOG_PRETTY", false); err != nil {
		return Config{}, err
	}
	if cfg.UserTTL, err = durationFromEnv("USER_TTL", cfg.UserTTL); err != nil {
		return Config{}, err
	}
	if cfg.ConversationTTL, err = durationFromEnv("CONVERSATION_TTL", cfg.ConversationTTL); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationFromEnv("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durationFromEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = intFromEnv("QUEUE_SIZE", cfg.QueueSize); err != nil {
		return Config{}, err
	}

	if cfg.StoreDriver == StoreSQLite && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "maurine.db"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER=mongo")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.Generator {
	case GeneratorGemini:
		if c.APIKey == "" {
			return fmt.Errorf("API_KEY is required when GENERATOR=gemini")
		}
	case GeneratorOllama:
	default:
		return fmt.Errorf("unknown GENERATOR %q", c.Generator)
	}

	if c.UserTTL <= 0 || c.ConversationTTL <= 0 {
		return fmt.Errorf("USER_TTL and CONVERSATION_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("QUEUE_SIZE must be positive")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT parse error: %w", err)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

func envOrDefault(key, fallback string) string {
	v := trimmedEnv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s parse error: invalid bool %q", key, v)
}
