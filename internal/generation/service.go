// Package generation prompts the language model for a cover letter and turns its
// output into clean plain text.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/cover-letter-rag/internal/llm"
	"github.com/jonathan/cover-letter-rag/internal/types"
)

// Config controls output length and retry behaviour.
type Config struct {
	// MaxTokens caps model output.
	MaxTokens int
	// MinWords and MaxWords bound the accepted length; letters outside it carry a warning.
	MinWords int
	MaxWords int
	// TargetMinWords and TargetMaxWords are the length the prompt asks for.
	TargetMinWords int
	TargetMaxWords int
	// RetryDelay is the pause before the single retry.
	RetryDelay time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:      llm.DefaultMaxOutputTokens,
		MinWords:       200,
		MaxWords:       450,
		TargetMinWords: 300,
		TargetMaxWords: 400,
		RetryDelay:     500 * time.Millisecond,
	}
}

// Letter is a cleaned cover letter.
type Letter struct {
	Text       string
	WordCount  int
	Inspection Inspection
	Warnings   []types.Warning
	Attempts   int
}

// Service generates cover letters.
type Service struct {
	generator llm.Generator
	cfg       Config
	logger    *slog.Logger
}

// NewService creates a Service. Zero-valued fields of cfg take their defaults.
func NewService(generator llm.Generator, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = def.MinWords
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = def.MaxWords
	}
	if cfg.TargetMinWords <= 0 {
		cfg.TargetMinWords = def.TargetMinWords
	}
	if cfg.TargetMaxWords <= 0 {
		cfg.TargetMaxWords = def.TargetMaxWords
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{generator: generator, cfg: cfg, logger: logger}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Generate produces a cleaned letter for in.
//
// An unavailable backend fails with GenerationUnavailable; empty, blocked, or truncated
// output fails with GenerationEmpty. Either is retried once. Context cancellation is
// returned immediately and is never retried.
func (s *Service) Generate(ctx context.Context, in Input) (*Letter, error) {
	prompt, err := BuildPrompt(in, s.cfg.TargetMinWords, s.cfg.TargetMaxWords)
	if err != nil {
		return nil, types.NewError(types.CategoryInternal, "failed to build prompt", err)
	}

	const maxAttempts = 2
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
		}

		letter, err := s.attempt(ctx, prompt)
		if err == nil {
			letter.Attempts = attempt
			return letter, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generation interrupted: %w", ctx.Err())
		}

		lastErr = err
		if !types.CategoryOf(err).Retryable() || !retryable(err) {
			return nil, err
		}
		s.logger.Warn("generation attempt failed", "attempt", attempt, "category", types.CategoryOf(err), "error", err)
	}
	return nil, lastErr
}

func (s *Service) attempt(ctx context.Context, prompt string) (*Letter, error) {
	raw, err := s.generator.Generate(ctx, prompt, s.cfg.MaxTokens)
	if err != nil {
		return nil, classify(err)
	}

	text := Clean(raw)
	if text == "" {
		return nil, types.NewError(types.CategoryGenerationEmpty, "model output was empty after cleaning", nil)
	}

	inspection := Inspect(text, s.cfg.MinWords, s.cfg.MaxWords)
	warnings := inspection.Warnings(s.cfg.MinWords, s.cfg.MaxWords)
	if len(warnings) > 0 {
		s.logger.Warn("letter outside word band", "words", inspection.WordCount, "min", s.cfg.MinWords, "max", s.cfg.MaxWords)
	}
	return &Letter{
		Text:       text,
		WordCount:  inspection.WordCount,
		Inspection: inspection,
		Warnings:   warnings,
	}, nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.cfg.RetryDelay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.cfg.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("generation interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// classify maps a generator error onto a pipeline category.
func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, llm.ErrTruncated):
		return types.NewError(types.CategoryGenerationEmpty, "model output was truncated at the token limit", err)
	case errors.Is(err, llm.ErrEmptyResponse):
		return types.NewError(types.CategoryGenerationEmpty, "model returned no text", err)
	case errors.Is(err, llm.ErrUnavailable):
		return types.NewError(types.CategoryGenerationUnavailable, "language model unavailable", err)
	default:
		return types.NewError(types.CategoryGenerationUnavailable, "language model request failed", err)
	}
}

// retryable reports whether a classified generator error warrants the single retry.
// Unrecognized backend errors, such as a rejected request, are not retried.
func retryable(err error) bool {
	return errors.Is(err, llm.ErrTruncated) ||
		errors.Is(err, llm.ErrEmptyResponse) ||
		errors.Is(err, llm.ErrUnavailable) ||
		types.IsCategory(err, types.CategoryGenerationEmpty)
}
