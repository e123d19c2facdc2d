package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied by validate().
const (
	DefaultHTTPAddress    = ":8080"
	DefaultRateLimit      = 60
	DefaultRateWindow     = 60 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultLogLevel       = "info"

	DefaultStorageBackend = "redis"
	DefaultRedisAddr      = "127.0.0.1:6379"
	DefaultNamespace      = "pusher"

	DefaultSendTimeout    = 5 * time.Second
	DefaultTokenTTLMargin = 60 * time.Second

	// Storage backends.
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// App holds the HTTP-facing settings.
type App struct {
	Addr           string        `yaml:"Addr"`           // HTTP listen address
	RateLimit      int           `yaml:"RateLimit"`      // allowed requests per window per account
	RateWindow     time.Duration `yaml:"RateWindow"`     // rate-limit window length
	RequestTimeout time.Duration `yaml:"RequestTimeout"` // per-request server timeout
	LogLevel       string        `yaml:"LogLevel"`
}

// Storage selects and parameterizes the key-value backend.
type Storage struct {
	Backend   string `yaml:"Backend"` // redis | memory
	RedisAddr string `yaml:"RedisAddr"`
	Namespace string `yaml:"Namespace"` // key prefix on the shared store
}

// Channels holds adapter-level tunables shared by all channel types.
type Channels struct {
	SendTimeout    time.Duration `yaml:"SendTimeout"`    // per-adapter HTTP client timeout
	TokenTTLMargin time.Duration `yaml:"TokenTTLMargin"` // shaved off provider token TTLs
}

// Config is the full application configuration.
type Config struct {
	App      App      `yaml:"App"`
	Storage  Storage  `yaml:"Storage"`
	Channels Channels `yaml:"Channels"`
}

// MustLoad reads the YAML file, applies environment overrides and
// defaults, and panics on any failure (startup only).
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// Load is MustLoad without the panic, used by tests.
func Load(path string) (Config, error) {
	var cfg Config

	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment-sensitive fields be set without
// editing the YAML. A local .env file is loaded first; real environment
// variables win over it.
func (cfg *Config) applyEnvOverrides() {
	_ = godotenv.Load() // absent .env is fine

	if addr := os.Getenv("PUSHER_ADDR"); addr != "" {
		cfg.App.Addr = addr
	}
	if redisAddr := os.Getenv("PUSHER_REDIS_ADDR"); redisAddr != "" {
		cfg.Storage.RedisAddr = redisAddr
	}
	if level := os.Getenv("PUSHER_LOG_LEVEL"); level != "" {
		cfg.App.LogLevel = level
	}
	if backend := os.Getenv("PUSHER_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
}

// validate fills defaults and rejects values the service cannot run with.
func (cfg *Config) validate() error {
	if cfg.App.Addr == "" {
		cfg.App.Addr = DefaultHTTPAddress
	}
	if cfg.App.RateLimit <= 0 {
		cfg.App.RateLimit = DefaultRateLimit
	}
	if cfg.App.RateWindow <= 0 {
		cfg.App.RateWindow = DefaultRateWindow
	}
	if cfg.App.RequestTimeout <= 0 {
		cfg.App.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = DefaultLogLevel
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Backend != BackendRedis && cfg.Storage.Backend != BackendMemory {
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = DefaultRedisAddr
	}
	if cfg.Storage.Namespace == "" {
		cfg.Storage.Namespace = DefaultNamespace
	}

	if cfg.Channels.SendTimeout <= 0 {
		cfg.Channels.SendTimeout = DefaultSendTimeout
	}
	if cfg.Channels.TokenTTLMargin <= 0 {
		cfg.Channels.TokenTTLMargin = DefaultTokenTTLMargin
	}
	return nil
}
