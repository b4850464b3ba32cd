// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Embedder names accepted in Config.Embedder.
const (
	EmbedderHashing = "hashing"
	EmbedderGemini  = "gemini"
)

// Config represents the service configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values are filled by MergeWithDefaults.
type Config struct {
	// Corpus and index
	DataDir       string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`               // Directory holding the corpus CSV files
	IndexPath     string `json:"index_path,omitempty" yaml:"index_path,omitempty"`           // SQLite index file
	ChunkMaxChars int    `json:"chunk_max_chars,omitempty" yaml:"chunk_max_chars,omitempty"` // Upper bound on chunk length

	// Embedding
	Embedder           string `json:"embedder,omitempty" yaml:"embedder,omitempty"`                       // "hashing" or "gemini"
	EmbeddingModel     string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`         // Gemini embedding model
	EmbeddingDimension int    `json:"embedding_dimension,omitempty" yaml:"embedding_dimension,omitempty"` // Hashing embedder dimension
	BuildWorkers       int    `json:"build_workers,omitempty" yaml:"build_workers,omitempty"`             // Concurrent embedding batches
	BuildBatchSize     int    `json:"build_batch_size,omitempty" yaml:"build_batch_size,omitempty"`       // Chunks per embedding batch

	// Generation
	APIKey         string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`                   // Gemini API key
	ModelTier      string  `json:"model_tier,omitempty" yaml:"model_tier,omitempty"`             // lite, standard or advanced
	Model          string  `json:"model,omitempty" yaml:"model,omitempty"`                       // Explicit model name, overrides the tier
	Temperature    float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`           // Sampling temperature
	MaxTokens      int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`             // Output token budget
	MinWords       int     `json:"min_words,omitempty" yaml:"min_words,omitempty"`               // Lower edge of the acceptable word band
	MaxWords       int     `json:"max_words,omitempty" yaml:"max_words,omitempty"`               // Upper edge of the acceptable word band
	TargetMinWords int     `json:"target_min_words,omitempty" yaml:"target_min_words,omitempty"` // Length requested in the prompt
	TargetMaxWords int     `json:"target_max_words,omitempty" yaml:"target_max_words,omitempty"`

	// Serving
	Port               int    `json:"port,omitempty" yaml:"port,omitempty"`
	RequestTimeoutSecs int    `json:"request_timeout_secs,omitempty" yaml:"request_timeout_secs,omitempty"`
	CacheSize          int    `json:"cache_size,omitempty" yaml:"cache_size,omitempty"` // Zero disables the response cache
	CacheTTLSecs       int    `json:"cache_ttl_secs,omitempty" yaml:"cache_ttl_secs,omitempty"`
	LogLevel           string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	DatabaseURL        string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL audit log; empty disables it
	Verbose            bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir:            "data",
		IndexPath:          "data/index.db",
		ChunkMaxChars:      500,
		Embedder:           EmbedderHashing,
		EmbeddingModel:     "text-embedding-004",
		EmbeddingDimension: 384,
		BuildWorkers:       4,
		BuildBatchSize:     32,
		ModelTier:          "standard",
		Temperature:        0.7,
		MaxTokens:          600,
		MinWords:           200,
		MaxWords:           450,
		TargetMinWords:     300,
		TargetMaxWords:     400,
		Port:               8080,
		RequestTimeoutSecs: 90,
		CacheSize:          0,
		CacheTTLSecs:       600,
		LogLevel:           "info",
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Zero values are accepted since MergeWithDefaults fills them.
func (c *Config) Validate() error {
	switch c.Embedder {
	case "", EmbedderHashing, EmbedderGemini:
	default:
		return fmt.Errorf("config error: 'embedder' must be %q or %q, got %q", EmbedderHashing, EmbedderGemini, c.Embedder)
	}
	switch c.ModelTier {
	case "", "lite", "standard", "advanced":
	default:
		return fmt.Errorf("config error: 'model_tier' must be lite, standard or advanced, got %q", c.ModelTier)
	}

	nonNegative := map[string]int{
		"chunk_max_chars":      c.ChunkMaxChars,
		"embedding_dimension":  c.EmbeddingDimension,
		"build_workers":        c.BuildWorkers,
		"build_batch_size":     c.BuildBatchSize,
		"max_tokens":           c.MaxTokens,
		"min_words":            c.MinWords,
		"max_words":            c.MaxWords,
		"target_min_words":     c.TargetMinWords,
		"target_max_words":     c.TargetMaxWords,
		"request_timeout_secs": c.RequestTimeoutSecs,
		"cache_size":           c.CacheSize,
		"cache_ttl_secs":       c.CacheTTLSecs,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("config error: 'temperature' must be within [0, 2]")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be a valid TCP port")
	}
	if c.MinWords > 0 && c.MaxWords > 0 && c.MinWords > c.MaxWords {
		return fmt.Errorf("config error: 'min_words' must not exceed 'max_words'")
	}
	if c.TargetMinWords > 0 && c.TargetMaxWords > 0 && c.TargetMinWords > c.TargetMaxWords {
		return fmt.Errorf("config error: 'target_min_words' must not exceed 'target_max_words'")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	mergeString(&result.DataDir, defaults.DataDir)
	mergeString(&result.IndexPath, defaults.IndexPath)
	mergeString(&result.Embedder, defaults.Embedder)
	mergeString(&result.EmbeddingModel, defaults.EmbeddingModel)
	mergeString(&result.APIKey, defaults.APIKey)
	mergeString(&result.ModelTier, defaults.ModelTier)
	mergeString(&result.Model, defaults.Model)
	mergeString(&result.LogLevel, defaults.LogLevel)
	mergeString(&result.DatabaseURL, defaults.DatabaseURL)

	// Int fields: use default if zero
	mergeInt(&result.ChunkMaxChars, defaults.ChunkMaxChars)
	mergeInt(&result.EmbeddingDimension, defaults.EmbeddingDimension)
	mergeInt(&result.BuildWorkers, defaults.BuildWorkers)
	mergeInt(&result.BuildBatchSize, defaults.BuildBatchSize)
	mergeInt(&result.MaxTokens, defaults.MaxTokens)
	mergeInt(&result.MinWords, defaults.MinWords)
	mergeInt(&result.MaxWords, defaults.MaxWords)
	mergeInt(&result.TargetMinWords, defaults.TargetMinWords)
	mergeInt(&result.TargetMaxWords, defaults.TargetMaxWords)
	mergeInt(&result.Port, defaults.Port)
	mergeInt(&result.RequestTimeoutSecs, defaults.RequestTimeoutSecs)
	mergeInt(&result.CacheSize, defaults.CacheSize)
	mergeInt(&result.CacheTTLSecs, defaults.CacheTTLSecs)

	if result.Temperature == 0 {
		result.Temperature = defaults.Temperature
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv overrides fields from environment variables.
// Recognized: GEMINI_API_KEY, DATABASE_URL, INDEX_PATH, DATA_DIR, EMBEDDER, LOG_LEVEL, PORT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	overrides := map[string]*string{
		"GEMINI_API_KEY": &c.APIKey,
		"DATABASE_URL":   &c.DatabaseURL,
		"INDEX_PATH":     &c.IndexPath,
		"DATA_DIR":       &c.DataDir,
		"EMBEDDER":       &c.Embedder,
		"LOG_LEVEL":      &c.LogLevel,
	}
	for name, field := range overrides {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %v", err)
		}
		c.Port = port
	}
	return nil
}

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// CacheTTL returns the response cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func mergeInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
