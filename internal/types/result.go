package types

import (
	"errors"
	"time"
)

// RetrievedContext is one ranked chunk returned by the retriever.
// SimilarityScore is for ranking and display only.
type RetrievedContext struct {
	ID              int           `json:"id"`
	Rank            int           `json:"rank"`
	Text            string        `json:"text"`
	Metadata        ChunkMetadata `json:"metadata"`
	Distance        float64       `json:"distance"`
	SimilarityScore float64       `json:"similarity_score"`
}

// ContextItem is the diagnostic view of a retrieved chunk.
type ContextItem struct {
	Text            string  `json:"text"`
	Source          Source  `json:"source"`
	Role            string  `json:"role"`
	SimilarityScore float64 `json:"similarity_score"`
}

// maxContextPreview bounds the text returned in diagnostic responses.
const maxContextPreview = 300

// ToContextItems converts retrieved chunks into their diagnostic view.
func ToContextItems(retrieved []RetrievedContext) []ContextItem {
	items := make([]ContextItem, 0, len(retrieved))
	for _, rc := range retrieved {
		items = append(items, ContextItem{
			Text:            Truncate(rc.Text, maxContextPreview),
			Source:          rc.Metadata.Source,
			Role:            rc.Metadata.Role,
			SimilarityScore: rc.SimilarityScore,
		})
	}
	return items
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Warning flags a successful generation that the caller may want to review.
type Warning string

// Warning constants.
const (
	WarningBelowWordBand Warning = "word_count_below_target"
	WarningAboveWordBand Warning = "word_count_above_target"
	WarningNoContext     Warning = "no_context_retrieved"
)

// GenerationResult is the successful outcome of a generation request.
type GenerationResult struct {
	RequestID             string    `json:"request_id,omitempty"`
	CoverLetter           string    `json:"cover_letter"`
	WordCount             int       `json:"word_count"`
	RetrievedContextCount int       `json:"retrieved_context_count"`
	GenerationTimestamp   string    `json:"generation_timestamp"`
	Warnings              []Warning `json:"warnings,omitempty"`
}

// FormatTimestamp renders a generation timestamp as ISO-8601.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Response is the boundary object returned for every request, successful or not.
// On failure the embedded result is nil, so no cover_letter field is serialized.
type Response struct {
	Success bool `json:"success"`
	*GenerationResult
	RetrievedContext []ContextItem `json:"retrieved_context,omitempty"`
	Error            string        `json:"error,omitempty"`
	Category         Category      `json:"category,omitempty"`
}

// FailureResponse builds the failure shape from any error.
func FailureResponse(err error) Response {
	var perr *PipelineError
	if !errors.As(err, &perr) {
		perr = NewError(CategoryInternal, "request failed", err)
	}
	return Response{
		Success:  false,
		Error:    perr.UserMessage(),
		Category: perr.Category,
	}
}
