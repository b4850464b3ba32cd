package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticClaims struct {
	subject string
}

func (c staticClaims) GetSubject() (string, error) { return c.subject, nil }

// mapValidator accepts the tokens it was seeded with.
type mapValidator map[string]string

func (v mapValidator) ValidateToken(tokenString string) (SubjectGetter, error) {
	subject, ok := v[tokenString]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return staticClaims{subject: subject}, nil
}

func protectedHandler(t *testing.T, called *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		subject, err := Subject(r)
		require.NoError(t, err)
		_, _ = w.Write([]byte(subject))
	})
}

func TestRequireBearer(t *testing.T) {
	validator := mapValidator{"good-token": "ops", "anonymous": ""}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer good-token", http.StatusOK, "ops"},
		{"lowercase scheme", "bearer good-token", http.StatusOK, "ops"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good-token", http.StatusUnauthorized, ""},
		{"extra parts", "Bearer good-token extra", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer bad-token", http.StatusUnauthorized, ""},
		{"empty subject", "Bearer anonymous", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := RequireBearer(validator)(protectedHandler(t, &called))

			req := httptest.NewRequest(http.MethodPost, "/admin/index/rebuild", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, called)
				assert.Equal(t, tt.wantBody, w.Body.String())
			} else {
				assert.False(t, called)
				assert.Contains(t, w.Body.String(), "unauthorized")
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestSubject_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := Subject(req)
	assert.ErrorIs(t, err, ErrNoSubject)

	req = req.WithContext(context.WithValue(req.Context(), subjectKey, 42))
	_, err = Subject(req)
	assert.ErrorIs(t, err, ErrNoSubject)
}
