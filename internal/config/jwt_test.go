package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-0123456789"

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestNewJWTConfig_FromProcessEnv(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", testSecret)
	t.Setenv("ADMIN_JWT_EXPIRATION_HOURS", "")
	t.Setenv("ADMIN_JWT_ISSUER", "")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.Secret)
	assert.Equal(t, DefaultJWTExpirationHours, cfg.ExpirationHours)
	assert.Equal(t, DefaultJWTIssuer, cfg.Issuer)
	assert.Equal(t, 24*time.Hour, cfg.Expiration())
}

func TestJWTConfigFromEnv_CustomValues(t *testing.T) {
	tests := []struct {
		name          string
		expiration    string
		expectedHours int
	}{
		{name: "custom expiration 12 hours", expiration: "12", expectedHours: 12},
		{name: "minimum expiration 1 hour", expiration: "1", expectedHours: 1},
		{name: "one week", expiration: " 168 ", expectedHours: 168},
		{name: "maximum", expiration: "720", expectedHours: MaxJWTExpirationHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := JWTConfigFromEnv(envMap(map[string]string{
				"ADMIN_JWT_SECRET":           testSecret,
				"ADMIN_JWT_EXPIRATION_HOURS": tt.expiration,
				"ADMIN_JWT_ISSUER":           "ops",
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHours, cfg.ExpirationHours)
			assert.Equal(t, "ops", cfg.Issuer)
		})
	}
}

func TestJWTConfigFromEnv_InvalidSecret(t *testing.T) {
	for name, secret := range map[string]string{"not set": "", "too short": "short", "blank": "    "} {
		t.Run(name, func(t *testing.T) {
			cfg, err := JWTConfigFromEnv(envMap(map[string]string{"ADMIN_JWT_SECRET": secret}))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "ADMIN_JWT_SECRET")
		})
	}
}

func TestJWTConfigFromEnv_InvalidExpiration(t *testing.T) {
	for _, expiration := range []string{"invalid", "0", "-1", "12.5", "721"} {
		t.Run(expiration, func(t *testing.T) {
			cfg, err := JWTConfigFromEnv(envMap(map[string]string{
				"ADMIN_JWT_SECRET":           testSecret,
				"ADMIN_JWT_EXPIRATION_HOURS": expiration,
			}))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "ADMIN_JWT_EXPIRATION_HOURS")
		})
	}
}
