// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

// StripCodeFence removes a markdown code block wrapping the whole response.
// Models sometimes fence plain prose even when asked not to.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// Skip a language identifier on the first line
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(text[:idx])
		if len(firstLine) < 20 && !strings.Contains(firstLine, " ") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
