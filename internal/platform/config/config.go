// Package config loads application configuration from environment variables.
// All variables use the SKILLFORGE_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	LocalStore LocalStoreConfig
	AI         AIConfig
	Curriculum CurriculumConfig
	Credential CredentialConfig
	Session    SessionConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// plans in the local store only.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL keeps sessions
// and generation budgets in memory.
type CacheConfig struct {
	URL      string
	PoolSize int
}

// LocalStoreConfig holds the SQLite fallback store settings.
type LocalStoreConfig struct {
	Path string // empty disables the local store
}

// AIConfig holds configuration for all AI providers.
type AIConfig struct {
	OpenAI     OpenAIConfig
	DeepSeek   DeepSeekConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Model      string // overrides each provider's default model
	// DailyTokenLimit caps generation tokens per learner per day (0 = unlimited).
	DailyTokenLimit int
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
}

// CurriculumConfig holds content generation settings.
type CurriculumConfig struct {
	CatalogPath string // directory of pre-authored YAML courses
}

// CredentialConfig holds credential issuance settings.
type CredentialConfig struct {
	Issuer string
	Secret string // key for credential fingerprints
}

// SessionConfig holds assessment session and write-behind settings.
type SessionConfig struct {
	TTLMinutes         int
	SyncTimeoutSeconds int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with SKILLFORGE_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SKILLFORGE_SERVER_PORT", 8080),
			Host: envStr("SKILLFORGE_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("SKILLFORGE_DATABASE_URL", ""),
			MaxConns: envInt("SKILLFORGE_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("SKILLFORGE_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL:      envStr("SKILLFORGE_CACHE_URL", ""),
			PoolSize: envInt("SKILLFORGE_CACHE_POOL_SIZE", 10),
		},
		LocalStore: LocalStoreConfig{
			Path: envStr("SKILLFORGE_LOCAL_STORE_PATH", "./skillforge.db"),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey:  envStr("SKILLFORGE_AI_OPENAI_API_KEY", ""),
				BaseURL: envStr("SKILLFORGE_AI_OPENAI_BASE_URL", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("SKILLFORGE_AI_DEEPSEEK_API_KEY", ""),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("SKILLFORGE_AI_OPENROUTER_API_KEY", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("SKILLFORGE_AI_OLLAMA_ENABLED", false),
				URL:     envStr("SKILLFORGE_AI_OLLAMA_URL", "http://localhost:11434"),
			},
			Model:           envStr("SKILLFORGE_AI_MODEL", ""),
			DailyTokenLimit: envInt("SKILLFORGE_AI_DAILY_TOKEN_LIMIT", 200000),
		},
		Curriculum: CurriculumConfig{
			CatalogPath: envStr("SKILLFORGE_CATALOG_PATH", "./curricula"),
		},
		Credential: CredentialConfig{
			Issuer: envStr("SKILLFORGE_CREDENTIAL_ISSUER", "SkillForge Academy"),
			Secret: envStr("SKILLFORGE_CREDENTIAL_SECRET", ""),
		},
		Session: SessionConfig{
			TTLMinutes:         envInt("SKILLFORGE_SESSION_TTL_MINUTES", 120),
			SyncTimeoutSeconds: envInt("SKILLFORGE_SYNC_TIMEOUT_SECONDS", 10),
		},
		Log: LogConfig{
			Level:  envStr("SKILLFORGE_LOG_LEVEL", "info"),
			Format: envStr("SKILLFORGE_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if !c.HasAIProvider() && c.Curriculum.CatalogPath == "" {
		return fmt.Errorf("at least one AI provider or SKILLFORGE_CATALOG_PATH must be configured")
	}

	if c.Database.URL == "" && c.LocalStore.Path == "" {
		return fmt.Errorf("SKILLFORGE_DATABASE_URL or SKILLFORGE_LOCAL_STORE_PATH is required")
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("SKILLFORGE_DATABASE_MIN_CONNS (%d) exceeds SKILLFORGE_DATABASE_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("SKILLFORGE_SESSION_TTL_MINUTES must be positive, got %d", c.Session.TTLMinutes)
	}
	if c.Session.SyncTimeoutSeconds <= 0 {
		return fmt.Errorf("SKILLFORGE_SYNC_TIMEOUT_SECONDS must be positive, got %d", c.Session.SyncTimeoutSeconds)
	}

	if strings.TrimSpace(c.Credential.Issuer) == "" {
		return fmt.Errorf("SKILLFORGE_CREDENTIAL_ISSUER must not be blank")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("SKILLFORGE_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

// SessionTTL returns how long open assessments are kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// SyncTimeout returns the deadline for background plan writes.
func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.Session.SyncTimeoutSeconds) * time.Second
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
