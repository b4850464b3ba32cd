package ratelimit

import "strings"

// unlimited marks endpoints that are never rate limited.
var unlimited = EndpointConfig{}

// MatchEndpoint returns the configuration for path and method, or nil when the
// default limit applies. Exact matches win over prefix matches.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && path == "/health" {
		return &unlimited
	}

	for i := range configs {
		if configs[i].Method == method && configs[i].Path == path {
			return &configs[i]
		}
	}

	for i := range configs {
		cfg := &configs[i]
		if cfg.Method == method && strings.HasSuffix(cfg.Path, "/") && strings.HasPrefix(path, cfg.Path) {
			return cfg
		}
	}
	return nil
}
