// Package config loads agentd settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/smallnest/agentscaffold/log"
)

// Memory backends for conversation checkpoints.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Embedders for the knowledge base.
const (
	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"
)

var (
	backends  = []string{BackendMemory, BackendRedis, BackendPostgres, BackendSQLite}
	providers = []string{"mock", "openai", "anthropic", "ollama"}
	embedders = []string{EmbedderHash, EmbedderOpenAI}
)

// Config is the resolved runtime configuration.
type Config struct {
	Host     string
	Port     int
	LogLevel string

	LLMProvider    string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OllamaBaseURL   string

	AgentMaxIterations int
	AgentTimeout       time.Duration

	EnableStreaming         bool
	EnableMemoryPersistence bool

	MemoryBackend string
	MemoryTTL     time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresURL   string
	SQLitePath    string

	BraveAPIKey string

	RAGEmbedder       string
	RAGEmbeddingModel string
	RAGChunkSize      int
	RAGChunkOverlap   int
	RAGTopK           int

	SessionTTL time.Duration
}

var defaults = map[string]any{
	"HOST":                      "0.0.0.0",
	"PORT":                      3000,
	"LOG_LEVEL":                 "info",
	"LLM_PROVIDER":              "mock",
	"LLM_MODEL":                 "mock-1",
	"LLM_TEMPERATURE":           0.7,
	"LLM_MAX_TOKENS":            1024,
	"AGENT_MAX_ITERATIONS":      10,
	"AGENT_TIMEOUT":             "60s",
	"ENABLE_STREAMING":          true,
	"ENABLE_MEMORY_PERSISTENCE": false,
	"MEMORY_BACKEND":            BackendMemory,
	"MEMORY_TTL":                "0",
	"REDIS_ADDR":                "localhost:6379",
	"REDIS_DB":                  0,
	"SQLITE_PATH":               "agentscaffold.db",
	"RAG_EMBEDDER":              EmbedderHash,
	"RAG_EMBEDDING_MODEL":       "text-embedding-3-small",
	"RAG_CHUNK_SIZE":            500,
	"RAG_CHUNK_OVERLAP":         50,
	"RAG_TOP_K":                 4,
	"SESSION_TTL":               "0",
}

// Load reads the given .env files (".env" when none are named; missing
// files are ignored) and then the environment. Variables already set in the
// environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			log.Debug("skipping env file %s: %v", f, err)
		}
	}

	v := newViper()
	v.AutomaticEnv()
	return FromViper(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:     v.GetString("HOST"),
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		LLMProvider:    strings.ToLower(v.GetString("LLM_PROVIDER")),
		LLMModel:       v.GetString("LLM_MODEL"),
		LLMTemperature: v.GetFloat64("LLM_TEMPERATURE"),
		LLMMaxTokens:   v.GetInt("LLM_MAX_TOKENS"),

		OpenAIAPIKey:    v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:   v.GetString("OPENAI_BASE_URL"),
		AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
		OllamaBaseURL:   v.GetString("OLLAMA_BASE_URL"),

		AgentMaxIterations: v.GetInt("AGENT_MAX_ITERATIONS"),

		EnableStreaming:         v.GetBool("ENABLE_STREAMING"),
		EnableMemoryPersistence: v.GetBool("ENABLE_MEMORY_PERSISTENCE"),

		MemoryBackend: strings.ToLower(v.GetString("MEMORY_BACKEND")),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		PostgresURL:   v.GetString("POSTGRES_URL"),
		SQLitePath:    v.GetString("SQLITE_PATH"),

		BraveAPIKey: v.GetString("BRAVE_API_KEY"),

		RAGEmbedder:       strings.ToLower(v.GetString("RAG_EMBEDDER")),
		RAGEmbeddingModel: v.GetString("RAG_EMBEDDING_MODEL"),
		RAGChunkSize:      v.GetInt("RAG_CHUNK_SIZE"),
		RAGChunkOverlap:   v.GetInt("RAG_CHUNK_OVERLAP"),
		RAGTopK:           v.GetInt("RAG_TOP_K"),
	}

	var err error
	if cfg.AgentTimeout, err = duration(v, "AGENT_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.MemoryTTL, err = duration(v, "MEMORY_TTL"); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = duration(v, "SESSION_TTL"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// duration accepts Go duration strings ("90s", "5m") or a bare integer
// number of milliseconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if !oneOf(c.LLMProvider, providers) {
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q (want one of %s)", c.LLMProvider, strings.Join(providers, ", ")))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %g", c.LLMTemperature))
	}
	if c.LLMMaxTokens < 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_TOKENS must not be negative"))
	}
	if c.AgentMaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("AGENT_MAX_ITERATIONS must be positive"))
	}
	if c.AgentTimeout < 0 {
		errs = append(errs, fmt.Errorf("AGENT_TIMEOUT must not be negative"))
	}
	if !oneOf(c.MemoryBackend, backends) {
		errs = append(errs, fmt.Errorf("unknown MEMORY_BACKEND %q (want one of %s)", c.MemoryBackend, strings.Join(backends, ", ")))
	}
	if c.MemoryBackend == BackendPostgres && c.PostgresURL == "" {
		errs = append(errs, fmt.Errorf("POSTGRES_URL is required for the postgres backend"))
	}
	if !oneOf(c.RAGEmbedder, embedders) {
		errs = append(errs, fmt.Errorf("unknown RAG_EMBEDDER %q (want one of %s)", c.RAGEmbedder, strings.Join(embedders, ", ")))
	}
	if c.RAGChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("RAG_CHUNK_SIZE must be positive"))
	}
	if c.RAGChunkOverlap < 0 || c.RAGChunkOverlap >= c.RAGChunkSize {
		errs = append(errs, fmt.Errorf("RAG_CHUNK_OVERLAP must be in [0, RAG_CHUNK_SIZE)"))
	}
	if c.RAGTopK <= 0 {
		errs = append(errs, fmt.Errorf("RAG_TOP_K must be positive"))
	}
	return errors.Join(errs...)
}

// Redacted returns the settings as ordered key/value pairs with secrets
// masked, for display.
func (c *Config) Redacted() [][2]string {
	return [][2]string{
		{"HOST", c.Host},
		{"PORT", strconv.Itoa(c.Port)},
		{"LOG_LEVEL", c.LogLevel},
		{"LLM_PROVIDER", c.LLMProvider},
		{"LLM_MODEL", c.LLMModel},
		{"LLM_TEMPERATURE", strconv.FormatFloat(c.LLMTemperature, 'f', -1, 64)},
		{"LLM_MAX_TOKENS", strconv.Itoa(c.LLMMaxTokens)},
		{"OPENAI_API_KEY", mask(c.OpenAIAPIKey)},
		{"OPENAI_BASE_URL", c.OpenAIBaseURL},
		{"ANTHROPIC_API_KEY", mask(c.AnthropicAPIKey)},
		{"OLLAMA_BASE_URL", c.OllamaBaseURL},
		{"AGENT_MAX_ITERATIONS", strconv.Itoa(c.AgentMaxIterations)},
		{"AGENT_TIMEOUT", c.AgentTimeout.String()},
		{"ENABLE_STREAMING", strconv.FormatBool(c.EnableStreaming)},
		{"ENABLE_MEMORY_PERSISTENCE", strconv.FormatBool(c.EnableMemoryPersistence)},
		{"MEMORY_BACKEND", c.MemoryBackend},
		{"MEMORY_TTL", c.MemoryTTL.String()},
		{"REDIS_ADDR", c.RedisAddr},
		{"REDIS_PASSWORD", mask(c.RedisPassword)},
		{"REDIS_DB", strconv.Itoa(c.RedisDB)},
		{"POSTGRES_URL", mask(c.PostgresURL)},
		{"SQLITE_PATH", c.SQLitePath},
		{"BRAVE_API_KEY", mask(c.BraveAPIKey)},
		{"RAG_EMBEDDER", c.RAGEmbedder},
		{"RAG_EMBEDDING_MODEL", c.RAGEmbeddingModel},
		{"RAG_CHUNK_SIZE", strconv.Itoa(c.RAGChunkSize)},
		{"RAG_CHUNK_OVERLAP", strconv.Itoa(c.RAGChunkOverlap)},
		{"RAG_TOP_K", strconv.Itoa(c.RAGTopK)},
		{"SESSION_TTL", c.SessionTTL.String()},
	}
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
