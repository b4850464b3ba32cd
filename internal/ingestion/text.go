// Package ingestion loads corpus records and the résumé and job posting inputs of a request.
package ingestion

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

var (
	innerSpacePattern = regexp.MustCompile(`[ \t\f\v]+`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes line endings and spacing while preserving paragraph structure.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, " ", " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line)
	}

	result := strings.Join(lines, "\n")
	result = blankRunPattern.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// cleanLine collapses inner whitespace; list and heading markers are kept so the
// posting's structure survives for the prompt.
func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	return innerSpacePattern.ReplaceAllString(trimmed, " ")
}

// MaxInputBytes bounds résumé and job description files.
const MaxInputBytes = 1 << 20

// IngestFromFile reads a text file, cleans it, and returns cleaned text with metadata
func IngestFromFile(path string) (string, *Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("file not found: %w", err)
		}
		return "", nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxInputBytes {
		return "", nil, fmt.Errorf("file %s is larger than %d bytes", path, MaxInputBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}

	cleanedText := CleanText(string(content))
	if cleanedText == "" {
		return "", nil, fmt.Errorf("file %s is empty", path)
	}
	return cleanedText, newMetadata(OriginFile, path, cleanedText, time.Now()), nil
}
