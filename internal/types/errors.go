package types

import (
	"errors"
	"fmt"
)

// Category classifies a pipeline failure so callers can tell "fix your input"
// from "try again later" from "system misconfigured".
type Category string

// Failure categories.
const (
	CategoryInvalidRequest        Category = "InvalidRequest"
	CategoryIndexNotReady         Category = "IndexNotReady"
	CategoryEmbeddingFailure      Category = "EmbeddingFailure"
	CategoryGenerationUnavailable Category = "GenerationUnavailable"
	CategoryGenerationEmpty       Category = "GenerationEmpty"
	CategoryIntegrityError        Category = "IntegrityError"
	CategoryConfigurationError    Category = "ConfigurationError"
	CategoryTimeout               Category = "Timeout"
	CategoryInternal              Category = "Internal"
)

// Retryable reports whether the same request may succeed if resubmitted later.
func (c Category) Retryable() bool {
	switch c {
	case CategoryIndexNotReady, CategoryEmbeddingFailure, CategoryGenerationUnavailable,
		CategoryGenerationEmpty, CategoryTimeout:
		return true
	}
	return false
}

// Advice tells the caller what to do next.
func (c Category) Advice() string {
	switch c {
	case CategoryInvalidRequest:
		return "Correct the request fields and resubmit."
	case CategoryIndexNotReady:
		return "The retrieval index is not loaded yet; retry once it has been built."
	case CategoryEmbeddingFailure:
		return "The embedding service failed; retry shortly."
	case CategoryGenerationUnavailable:
		return "The text generation service is unreachable or rejected our credentials; retry later or contact the operator."
	case CategoryGenerationEmpty:
		return "The model returned no usable text; retry the request."
	case CategoryTimeout:
		return "The request took too long; retry, possibly with a smaller top_k."
	case CategoryIntegrityError, CategoryConfigurationError:
		return "The service is misconfigured; contact the operator."
	default:
		return "An unexpected error occurred; contact the operator if it persists."
	}
}

// PipelineError is the structured failure surfaced by every pipeline stage.
type PipelineError struct {
	Category Category
	Message  string
	Cause    error
}

// NewError creates a PipelineError.
func NewError(category Category, message string, cause error) *PipelineError {
	return &PipelineError{Category: category, Message: message, Cause: cause}
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// UserMessage is the category-qualified message returned to callers. Causes are left out
// so that internal details do not leak across the boundary.
func (e *PipelineError) UserMessage() string {
	return fmt.Sprintf("%s: %s. %s", e.Category, e.Message, e.Category.Advice())
}

// CategoryOf returns the category of the first PipelineError in err's chain,
// or CategoryInternal when there is none.
func CategoryOf(err error) Category {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Category
	}
	return CategoryInternal
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category Category) bool {
	var perr *PipelineError
	return errors.As(err, &perr) && perr.Category == category
}
