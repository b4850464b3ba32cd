package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Admin token settings.
const (
	DefaultJWTIssuer          = "cover-letter-rag"
	DefaultJWTExpirationHours = 24
	// MaxJWTExpirationHours bounds admin token lifetime to 30 days.
	MaxJWTExpirationHours = 720
	minJWTSecretLength    = 16
)

// JWTConfig holds the signing settings for admin tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
}

// NewJWTConfig reads the admin token settings from the process environment.
// See JWTConfigFromEnv.
func NewJWTConfig() (*JWTConfig, error) {
	return JWTConfigFromEnv(os.LookupEnv)
}

// JWTConfigFromEnv reads ADMIN_JWT_SECRET (required, at least 16 characters),
// ADMIN_JWT_EXPIRATION_HOURS (default 24) and ADMIN_JWT_ISSUER through lookup.
// A missing secret means the admin API stays disabled.
func JWTConfigFromEnv(lookup func(string) (string, bool)) (*JWTConfig, error) {
	get := func(name string) string {
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}

	cfg := &JWTConfig{
		Secret:          get("ADMIN_JWT_SECRET"),
		ExpirationHours: DefaultJWTExpirationHours,
		Issuer:          get("ADMIN_JWT_ISSUER"),
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("ADMIN_JWT_SECRET is required but not set")
	}
	if raw := get("ADMIN_JWT_EXPIRATION_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_JWT_EXPIRATION_HOURS %q: %w", raw, err)
		}
		cfg.ExpirationHours = hours
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultJWTIssuer
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks secret length and token lifetime.
func (c *JWTConfig) Validate() error {
	if len(c.Secret) < minJWTSecretLength {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.ExpirationHours < 1 || c.ExpirationHours > MaxJWTExpirationHours {
		return fmt.Errorf("ADMIN_JWT_EXPIRATION_HOURS must be between 1 and %d, got %d",
			MaxJWTExpirationHours, c.ExpirationHours)
	}
	return nil
}

// Expiration returns the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}
