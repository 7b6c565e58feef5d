// Package config defines the process-wide configuration for the policy query
// pipeline. The Config value is constructed once at startup (FromEnv or by
// hand) and passed into each component's constructor.
package config

import (
	"fmt"
	"time"

	"github.com/youthlab/policyrag/pkg/env"
)

// Postgres holds connection settings for the policy store.
type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// LLM holds settings for one model role.
type LLM struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Redis holds settings for the schema description cache.
type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Mongo holds settings for the chat-history store.
type Mongo struct {
	URI        string
	Database   string
	Collection string
}

// Config is the root configuration value.
type Config struct {
	Postgres Postgres
	Redis    Redis
	Mongo    Mongo

	// ChatLLM composes the final natural-language answer.
	ChatLLM LLM
	// ThinkingLLM performs the structured calls (analysis, SQL, selection).
	// Reasoning models take no sampling temperature; leave it at zero and
	// unwired for those.
	ThinkingLLM LLM

	// TopK caps the row count of every generated query.
	TopK int
	// PerCategoryCap caps each category when a general query spans both.
	PerCategoryCap int
	// MaxSelected caps the policies the selector may return.
	MaxSelected int
	// ConfidenceThreshold is read for parity with the original deployment but
	// is not applied by the router. See DESIGN.md.
	ConfidenceThreshold float64

	// ModelTimeout bounds every model invocation.
	ModelTimeout time.Duration
	// QueryTimeout bounds every database call.
	QueryTimeout time.Duration

	// RowTokenBudget caps the serialized row set fed into selection and
	// composition prompts.
	RowTokenBudget int
}

// FromEnv loads configuration from environment variables with the original
// deployment's defaults.
func FromEnv() *Config {
	return &Config{
		Postgres: Postgres{
			Host:     env.GetEnv("DB_HOST", "localhost"),
			Port:     env.GetEnvInt("DB_PORT", 5432),
			User:     env.GetEnv("DB_USER", "postgres"),
			Password: env.GetEnv("DB_PASSWORD", ""),
			DBName:   env.GetEnv("DB_NAME", "youth_policy"),
			SSLMode:  env.GetEnv("DB_SSLMODE", "disable"),
		},
		Redis: Redis{
			Addr:     env.GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: env.GetEnv("REDIS_PASSWORD", ""),
			DB:       env.GetEnvInt("REDIS_DB", 0),
			TTL:      env.GetEnvDuration("SCHEMA_CACHE_TTL", time.Hour),
		},
		Mongo: Mongo{
			URI:        env.GetEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:   env.GetEnv("MONGO_DB", "youth_policy"),
			Collection: env.GetEnv("MONGO_COLLECTION", "chat_history"),
		},
		ChatLLM: LLM{
			APIKey:      env.GetEnv("OPENAI_API_KEY", ""),
			Model:       env.GetEnv("CHAT_MODEL", "gpt-4o"),
			MaxTokens:   int64(env.GetEnvInt("CHAT_MAX_TOKENS", 2000)),
			Temperature: env.GetEnvFloat("CHAT_TEMPERATURE", 0),
		},
		ThinkingLLM: LLM{
			APIKey:      env.GetEnv("OPENAI_API_KEY", ""),
			Model:       env.GetEnv("THINKING_MODEL", "o3-mini"),
			MaxTokens:   int64(env.GetEnvInt("THINKING_MAX_TOKENS", 4000)),
			Temperature: 0,
		},
		TopK:                env.GetEnvInt("TOP_K", 10),
		PerCategoryCap:      env.GetEnvInt("PER_CATEGORY_CAP", 5),
		MaxSelected:         env.GetEnvInt("MAX_SELECTED", 10),
		ConfidenceThreshold: env.GetEnvFloat("CONFIDENCE_THRESHOLD", 0.5),
		ModelTimeout:        env.GetEnvDuration("MODEL_TIMEOUT", 60*time.Second),
		QueryTimeout:        env.GetEnvDuration("QUERY_TIMEOUT", 15*time.Second),
		RowTokenBudget:      env.GetEnvInt("ROW_TOKEN_BUDGET", 8000),
	}
}

// Validate checks the configuration and returns a combined error listing
// every violated field.
func (c *Config) Validate() error {
	v := NewValidator()

	v.RequireNonEmpty("postgres.host", c.Postgres.Host)
	v.ValidatePort("postgres.port", c.Postgres.Port)
	v.RequireNonEmpty("postgres.user", c.Postgres.User)
	v.RequireNonEmpty("postgres.dbName", c.Postgres.DBName)
	v.ValidateOneOf("postgres.sslMode", c.Postgres.SSLMode, "disable", "require", "verify-ca", "verify-full")

	v.RequireNonEmpty("chatLLM.apiKey", c.ChatLLM.APIKey)
	v.RequireNonEmpty("chatLLM.model", c.ChatLLM.Model)
	v.RequireNonEmpty("thinkingLLM.apiKey", c.ThinkingLLM.APIKey)
	v.RequireNonEmpty("thinkingLLM.model", c.ThinkingLLM.Model)
	v.ValidateFloatRange("chatLLM.temperature", c.ChatLLM.Temperature, 0.0, 2.0)

	v.RequirePositive("topK", c.TopK)
	v.RequirePositive("perCategoryCap", c.PerCategoryCap)
	v.RequirePositive("maxSelected", c.MaxSelected)
	v.ValidateFloatRange("confidenceThreshold", c.ConfidenceThreshold, 0.0, 1.0)
	v.RequirePositiveDuration("modelTimeout", c.ModelTimeout)
	v.RequirePositiveDuration("queryTimeout", c.QueryTimeout)

	return v.Error()
}
