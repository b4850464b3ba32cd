// Package server provides the HTTP API for cover letter generation.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/cover-letter-rag/internal/types"
)

// ErrValidation indicates request validation failure outside the generation request body,
// such as a malformed query parameter.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// StatusForCategory maps a failure category to an HTTP status code.
func StatusForCategory(category types.Category) int {
	switch category {
	case types.CategoryInvalidRequest:
		return http.StatusBadRequest
	case types.CategoryIndexNotReady, types.CategoryGenerationUnavailable:
		return http.StatusServiceUnavailable
	case types.CategoryTimeout:
		return http.StatusGatewayTimeout
	case types.CategoryGenerationEmpty:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *ErrValidation
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return StatusForCategory(types.CategoryOf(err))
}
