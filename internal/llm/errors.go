package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

var (
	// ErrUnavailable is returned when the backend is unreachable, throttling, or rejects our credentials.
	ErrUnavailable = errors.New("llm backend unavailable")
	// ErrEmptyResponse is returned when the backend produced no usable text.
	ErrEmptyResponse = errors.New("llm returned empty response")
	// ErrTruncated is returned when output stopped at the token limit.
	ErrTruncated = errors.New("llm output truncated")
)

// httpCoder is satisfied by gax apierror.APIError, which genai surfaces for REST failures.
type httpCoder interface {
	HTTPCode() int
}

// Classify wraps err with ErrUnavailable or ErrEmptyResponse when its cause is recognized.
// Context errors and unrecognized errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrTruncated) {
		return err
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %w", ErrEmptyResponse, err)
	}

	code := 0
	var gerr *googleapi.Error
	var coder httpCoder
	switch {
	case errors.As(err, &gerr):
		code = gerr.Code
	case errors.As(err, &coder):
		code = coder.HTTPCode()
	}
	if code != 0 {
		if unavailableStatus(code) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func unavailableStatus(code int) bool {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return true
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}
