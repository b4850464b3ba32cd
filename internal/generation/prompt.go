package generation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/cover-letter-rag/internal/prompts"
	"github.com/jonathan/cover-letter-rag/internal/types"
)

// maxContextChars bounds each retrieved chunk as rendered into the prompt.
const maxContextChars = 300

// Input is everything the model sees for one letter.
type Input struct {
	ResumeContent  string
	JobDescription string
	CompanyName    string
	JobRole        string
	Context        []types.RetrievedContext
}

// BuildPrompt renders the system instructions followed by the request section.
func BuildPrompt(in Input, targetMin, targetMax int) (string, error) {
	set, err := prompts.CoverLetter()
	if err != nil {
		return "", err
	}
	system, err := set.Render(prompts.KeySystem, map[string]string{
		"MinTargetWords": strconv.Itoa(targetMin),
		"MaxTargetWords": strconv.Itoa(targetMax),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}

	contextText, err := formatContext(set, in.Context)
	if err != nil {
		return "", err
	}

	user, err := set.Render(prompts.KeyUser, map[string]string{
		"CompanyName":      in.CompanyName,
		"JobRole":          in.JobRole,
		"ResumeContent":    in.ResumeContent,
		"JobDescription":   in.JobDescription,
		"RetrievedContext": contextText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render user prompt: %w", err)
	}

	return system + "\n\n" + user, nil
}

// FormatContext renders retrieved chunks as numbered blocks, each truncated to 300 characters.
func FormatContext(items []types.RetrievedContext) (string, error) {
	set, err := prompts.CoverLetter()
	if err != nil {
		return "", err
	}
	return formatContext(set, items)
}

func formatContext(set *prompts.Set, items []types.RetrievedContext) (string, error) {
	if len(items) == 0 {
		return set.Get(prompts.KeyNoContext)
	}

	blocks := make([]string, 0, len(items))
	for i, item := range items {
		source := string(item.Metadata.Source)
		if source == "" {
			source = "unknown"
		}
		block, err := set.Render(prompts.KeyContextItem, map[string]string{
			"Position": strconv.Itoa(i + 1),
			"Source":   source,
			"Text":     types.Truncate(item.Text, maxContextChars),
		})
		if err != nil {
			return "", fmt.Errorf("failed to render context item: %w", err)
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n"), nil
}
