package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/cover-letter-rag/internal/fetch"
)

var (
	// ErrHTTPRequestFailed is returned when the posting cannot be downloaded
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	// ErrContentExtractionFailed is returned when no usable text can be extracted
	ErrContentExtractionFailed = errors.New("content extraction failed")
)

// IngestFromURL fetches a job posting, extracts its main text with platform-specific
// selectors, and returns the cleaned text with metadata.
func IngestFromURL(ctx context.Context, urlStr string, opts *fetch.Options, logger *slog.Logger) (string, *Metadata, error) {
	if logger == nil {
		logger = slog.Default()
	}

	platform := fetch.DetectPlatform(urlStr)
	logger.Debug("fetching job posting", "url", urlStr, "platform", platform)

	result, err := fetch.URL(ctx, urlStr, opts)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}
	logger.Debug("fetched job posting", "bytes", len(result.HTML), "truncated", result.Truncated)

	textContent, err := fetch.ExtractMainText(result.HTML,
		fetch.PlatformContentSelectors(platform),
		fetch.PlatformNoiseSelectors(platform)...)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}

	cleanedText := CleanText(textContent)
	if len(cleanedText) < fetch.MinContentLength {
		return "", nil, fmt.Errorf("%w: %w (%d chars from %s)",
			ErrContentExtractionFailed, fetch.ErrInsufficientContent, len(cleanedText), urlStr)
	}
	logger.Debug("extracted job posting", "chars", len(cleanedText))

	metadata := newMetadata(OriginURL, urlStr, cleanedText, time.Now())
	metadata.Platform = string(platform)
	metadata.Title = fetch.PageTitle(result.HTML)
	return cleanedText, metadata, nil
}
