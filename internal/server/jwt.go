package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonathan/cover-letter-rag/internal/config"
	"github.com/jonathan/cover-letter-rag/internal/server/middleware"
)

// ScopeAdmin is the scope required for admin endpoints.
const ScopeAdmin = "admin"

// Claims are the JWT claims of an admin token.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 admin tokens.
type JWTService struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given configuration.
func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{config: cfg, now: time.Now}
}

// GenerateToken issues an admin token for subject.
func (s *JWTService) GenerateToken(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject is empty")
	}
	now := s.now()

	claims := &Claims{
		Scope: ScopeAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a token and returns its claims.
// Tokens from another issuer or without the admin scope are rejected.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("token expired: %w", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("invalid token signature: %w", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("malformed token: %w", err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims.Scope != ScopeAdmin {
		return nil, fmt.Errorf("token scope %q is not %q", claims.Scope, ScopeAdmin)
	}
	return claims, nil
}

// AsTokenValidator adapts the service to middleware.TokenValidator.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return tokenValidator{service: s}
}

type tokenValidator struct {
	service *JWTService
}

func (v tokenValidator) ValidateToken(tokenString string) (middleware.SubjectGetter, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
