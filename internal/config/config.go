// Package config provides configuration for the playlist assistant.
//
// Values are resolved in order: built-in defaults, the optional TOML file named
// by CONFIG_FILE, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string        `toml:"port"`
	ServerReadTimeout  time.Duration `toml:"read_timeout"`
	ServerWriteTimeout time.Duration `toml:"write_timeout"`
	AllowedOrigins     []string      `toml:"allowed_origins"`

	// JWT settings
	JWTSecret string `toml:"jwt_secret"`

	// Generation settings
	AnthropicAPIKey         string        `toml:"anthropic_api_key"`
	OpenAIAPIKey            string        `toml:"openai_api_key"`
	DefaultLLM              string        `toml:"default_llm"`
	LLMModel                string        `toml:"llm_model"`
	GenerationTimeout       time.Duration `toml:"generation_timeout"`
	GenerationRatePerMinute int           `toml:"generation_rate_per_minute"`
	GenerationMaxTokens     int           `toml:"generation_max_tokens"`
	GenerationTemperature   float64       `toml:"generation_temperature"`
	AllowEmptyPlaylist      bool          `toml:"allow_empty_playlist"`

	// Persistence settings
	StoreDriver        string        `toml:"store_driver"`
	DatabaseURL        string        `toml:"database_url"`
	SQLitePath         string        `toml:"sqlite_path"`
	AutoMigrate        bool          `toml:"auto_migrate"`
	PersistenceTimeout time.Duration `toml:"persistence_timeout"`

	// Event settings
	EventsBackend string `toml:"events_backend"`
	RedisURL      string `toml:"redis_url"`
	RedisChannel  string `toml:"redis_channel"`

	// NATS settings
	NATSURL      string `toml:"nats_url"`
	NATSCAFile   string `toml:"nats_ca_file"`
	NATSCertFile string `toml:"nats_cert_file"`
	NATSKeyFile  string `toml:"nats_key_file"`
	NATSToken    string `toml:"nats_token"`

	// Rate limiting
	RateLimitRequests int           `toml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `toml:"rate_limit_window"`

	// Logging
	LogLevel string `toml:"log_level"`

	// Tracing
	TracingEndpoint string `toml:"tracing_endpoint"`
	TracingEnabled  bool   `toml:"tracing_enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerPort:         "8080",
		ServerReadTimeout:  30 * time.Second,
		ServerWriteTimeout: 120 * time.Second,
		AllowedOrigins:     []string{"*"},

		JWTSecret: "development-secret-change-in-production",

		DefaultLLM:              "anthropic",
		GenerationTimeout:       60 * time.Second,
		GenerationRatePerMinute: 30,
		GenerationMaxTokens:     1024,
		GenerationTemperature:   0.7,

		StoreDriver:        "memory",
		SQLitePath:         "playlists.db",
		AutoMigrate:        true,
		PersistenceTimeout: 5 * time.Second,

		EventsBackend: "none",
		RedisURL:      "redis://localhost:6379/0",
		RedisChannel:  "playlist-events",

		NATSURL: "nats://localhost:4222",

		RateLimitRequests: 60,
		RateLimitWindow:   time.Minute,

		LogLevel: "info",

		TracingEndpoint: "localhost:4318",
	}
}

// Load resolves the configuration from defaults, CONFIG_FILE and the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// Server
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.ServerReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.ServerReadTimeout)
	c.ServerWriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.ServerWriteTimeout)
	c.AllowedOrigins = getListEnv("ALLOWED_ORIGINS", c.AllowedOrigins)

	// JWT
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	// Generation
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.DefaultLLM = getEnv("DEFAULT_LLM", c.DefaultLLM)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.GenerationTimeout = getDurationEnv("GENERATION_TIMEOUT", c.GenerationTimeout)
	c.GenerationRatePerMinute = getIntEnv("GENERATION_RATE_PER_MINUTE", c.GenerationRatePerMinute)
	c.GenerationMaxTokens = getIntEnv("GENERATION_MAX_TOKENS", c.GenerationMaxTokens)
	c.GenerationTemperature = getFloatEnv("GENERATION_TEMPERATURE", c.GenerationTemperature)
	c.AllowEmptyPlaylist = getBoolEnv("ALLOW_EMPTY_PLAYLIST", c.AllowEmptyPlaylist)

	// Persistence
	c.StoreDriver = getEnv("STORE_DRIVER", c.StoreDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.AutoMigrate = getBoolEnv("AUTO_MIGRATE", c.AutoMigrate)
	c.PersistenceTimeout = getDurationEnv("PERSISTENCE_TIMEOUT", c.PersistenceTimeout)

	// Events
	c.EventsBackend = getEnv("EVENTS_BACKEND", c.EventsBackend)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.RedisChannel = getEnv("REDIS_CHANNEL", c.RedisChannel)

	// NATS
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSCAFile = getEnv("NATS_CA_FILE", c.NATSCAFile)
	c.NATSCertFile = getEnv("NATS_CERT_FILE", c.NATSCertFile)
	c.NATSKeyFile = getEnv("NATS_KEY_FILE", c.NATSKeyFile)
	c.NATSToken = getEnv("NATS_TOKEN", c.NATSToken)

	// Rate limiting
	c.RateLimitRequests = getIntEnv("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitWindow = getDurationEnv("RATE_LIMIT_WINDOW", c.RateLimitWindow)

	// Logging
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	// Tracing
	c.TracingEndpoint = getEnv("TRACING_ENDPOINT", c.TracingEndpoint)
	c.TracingEnabled = getBoolEnv("TRACING_ENABLED", c.TracingEnabled)
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	switch c.EventsBackend {
	case "nats", "redis", "none":
	default:
		return fmt.Errorf("unknown events backend %q", c.EventsBackend)
	}

	switch c.DefaultLLM {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.DefaultLLM)
	}

	return nil
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	if c.DefaultLLM == "openai" {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
