package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path; a trailing "/" matches by prefix
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// IdleTTL is how long an unused bucket is kept before cleanup drops it.
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// DefaultConfig returns the built-in limits.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	return LoadConfigFrom(os.LookupEnv)
}

// LoadConfigFrom builds the configuration from lookup, falling back to DefaultConfig
// for unset or unparsable values.
func LoadConfigFrom(lookup func(string) (string, bool)) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = envBool(lookup, "RATE_LIMIT_ENABLED", cfg.Enabled)
	cfg.DefaultLimit = envInt(lookup, "RATE_LIMIT_DEFAULT_LIMIT", cfg.DefaultLimit)
	cfg.DefaultWindow = envDuration(lookup, "RATE_LIMIT_DEFAULT_WINDOW", cfg.DefaultWindow)
	cfg.CleanupInterval = envDuration(lookup, "RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval)
	if v, ok := lookup("RATE_LIMIT_WHITELIST"); ok {
		cfg.Whitelist = parseIPList(v)
	}
	if v, ok := lookup("RATE_LIMIT_BLACKLIST"); ok {
		cfg.Blacklist = parseIPList(v)
	}
	if limit := envInt(lookup, "RATE_LIMIT_GENERATE_PER_MINUTE", 0); limit > 0 {
		for i := range cfg.EndpointConfigs {
			if strings.HasPrefix(cfg.EndpointConfigs[i].Path, "/generate-cover-letter") {
				cfg.EndpointConfigs[i].Limit = limit
			}
		}
	}
	return cfg
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Generation calls the model and is the expensive path.
		{Path: "/generate-cover-letter", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/generate-cover-letter-with-context", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		// Retrieval only: embedding plus search.
		{Path: "/context-by-role/", Method: "GET", Limit: 120, Window: time.Minute, Burst: 20},
		// A rebuild re-embeds the whole corpus.
		{Path: "/admin/index/rebuild", Method: "POST", Limit: 5, Window: time.Hour, Burst: 1},
	}
}

func envString(lookup func(string) (string, bool), key string) (string, bool) {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func envInt(lookup func(string) (string, bool), key string, defaultValue int) int {
	if value, ok := envString(lookup, key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func envBool(lookup func(string) (string, bool), key string, defaultValue bool) bool {
	if value, ok := envString(lookup, key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func envDuration(lookup func(string) (string, bool), key string, defaultValue time.Duration) time.Duration {
	if value, ok := envString(lookup, key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
