package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis" envPrefix:"REDIS_"`
	Tutor       TutorConfig               `json:"tutor" envPrefix:"TUTOR_"`
	Retry       RetryConfig               `json:"retry" envPrefix:"RETRY_"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" env:"SERVER_ADDRESS"`
	Database      string `json:"database" env:"DATABASE"`
	TokenTTLHours int    `json:"token_ttl_hours" env:"TOKEN_TTL_HOURS"`
	UploadDir     string `json:"upload_dir" env:"UPLOAD_DIR"`
}

type RedisConfig struct {
	Host     string `json:"host" env:"HOST"`
	Port     int    `json:"port" env:"PORT"`
	Username string `json:"username" env:"USERNAME"`
	Password string `json:"password" env:"PASSWORD"`
	DB       int    `json:"db" env:"DB"`
}

// Enabled reports whether a redis host has been configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// TutorConfig tunes the chat session, its cache and the history window.
type TutorConfig struct {
	Provider         string `json:"provider" env:"PROVIDER"`
	Model            string `json:"model" env:"MODEL"`
	CacheTTLSeconds  int    `json:"cache_ttl_seconds" env:"CACHE_TTL_SECONDS"`
	CacheMaxEntries  int    `json:"cache_max_entries" env:"CACHE_MAX_ENTRIES"`
	HomeworkLimit    int    `json:"homework_limit" env:"HOMEWORK_LIMIT"`
	QuizLimit        int    `json:"quiz_limit" env:"QUIZ_LIMIT"`
	LessonLimit      int    `json:"lesson_limit" env:"LESSON_LIMIT"`
	ChatLogLimit     int    `json:"chat_log_limit" env:"CHAT_LOG_LIMIT"`
	WebSearchEnabled bool   `json:"web_search_enabled" env:"WEB_SEARCH_ENABLED"`
}

// CacheTTL returns the response cache lifetime.
func (t TutorConfig) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSeconds) * time.Second
}

// RetryConfig is the attempt/backoff policy for one-shot generator calls.
// The chat path deliberately does not retry.
type RetryConfig struct {
	MaxAttempts      int `json:"max_attempts" env:"MAX_ATTEMPTS"`
	InitialBackoffMs int `json:"initial_backoff_ms" env:"INITIAL_BACKOFF_MS"`
	MaxBackoffMs     int `json:"max_backoff_ms" env:"MAX_BACKOFF_MS"`
}

func (r RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMs) * time.Millisecond
}

func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffMs) * time.Millisecond
}

// Load reads configuration from the provided path (defaults to config.json),
// then overlays TUTORGO_* environment variables.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	cfg.applyDefaults()

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	if _, ok := cfg.Databases[cfg.BasicConfig.Database]; !ok {
		return nil, fmt.Errorf("database %q not configured", cfg.BasicConfig.Database)
	}
	if dbCfg, ok := cfg.Databases["sqlite3"]; ok && dbCfg.DSN != "" && dbCfg.DSN != ":memory:" && !filepath.IsAbs(dbCfg.DSN) {
		dbCfg.DSN = filepath.Join(filepath.Dir(absPath), dbCfg.DSN)
		cfg.Databases["sqlite3"] = dbCfg
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.Database == "" {
		c.BasicConfig.Database = "sqlite3"
	}
	if c.BasicConfig.TokenTTLHours <= 0 {
		c.BasicConfig.TokenTTLHours = 24
	}
	if c.BasicConfig.UploadDir == "" {
		c.BasicConfig.UploadDir = "./data/uploads"
	}
	if c.Tutor.Provider == "" {
		c.Tutor.Provider = "openai"
	}
	if c.Tutor.CacheTTLSeconds <= 0 {
		c.Tutor.CacheTTLSeconds = int(ResponseCacheTTL / time.Second)
	}
	if c.Tutor.CacheMaxEntries <= 0 {
		c.Tutor.CacheMaxEntries = ResponseCacheMaxEntries
	}
	if c.Tutor.HomeworkLimit <= 0 {
		c.Tutor.HomeworkLimit = HistoryHomeworkLimit
	}
	if c.Tutor.QuizLimit <= 0 {
		c.Tutor.QuizLimit = HistoryQuizLimit
	}
	if c.Tutor.LessonLimit <= 0 {
		c.Tutor.LessonLimit = HistoryLessonLimit
	}
	if c.Tutor.ChatLogLimit <= 0 {
		c.Tutor.ChatLogLimit = HistoryChatLogLimit
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = DefaultRetryAttempts
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = int(DefaultRetryBackoff / time.Millisecond)
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = int(DefaultRetryMaxBackoff / time.Millisecond)
	}
}

// Provider returns the provider entry used by the tutor.
func (c *Config) Provider() (ProviderConfig, error) {
	prov, ok := c.Providers[c.Tutor.Provider]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("provider %s not configured", c.Tutor.Provider)
	}
	if c.Tutor.Model != "" {
		prov.Model = c.Tutor.Model
	}
	return prov, nil
}
