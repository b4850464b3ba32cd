// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/cover-letter-rag/internal/pipeline"
	"github.com/jonathan/cover-letter-rag/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(line))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad fits line into the box interior, truncating with an ellipsis.
func pad(line string) string {
	width := boxWidth - 4
	runes := []rune(line)
	if len(runes) > width {
		return string(runes[:width-3]) + "..."
	}
	return line + strings.Repeat(" ", width-len(runes))
}

// PrintStage outputs a single stage transition.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStage(event pipeline.StageEvent) {
	marker := "•"
	switch event.Stage {
	case pipeline.StageCompleted:
		marker = "✓"
	case pipeline.StageFailed:
		marker = "✗"
	}
	if event.Message != "" {
		fmt.Fprintf(p.out, "%s %-11s %s\n", marker, event.Stage, event.Message)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", marker, event.Stage)
}

// PrintIndexSummary outputs the result of an index rebuild.
func (p *Printer) PrintIndexSummary(summary pipeline.IndexSummary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Records:   %d (%d skipped)\n", summary.Records, summary.Skipped))
	sb.WriteString(fmt.Sprintf("Chunks:    %d\n", summary.Chunks))
	sb.WriteString(fmt.Sprintf("Indexed:   %d", summary.Indexed))
	if summary.Dropped > 0 {
		sb.WriteString(fmt.Sprintf(" (%d dropped)", summary.Dropped))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Roles:     %d\n", summary.Roles))
	sb.WriteString(fmt.Sprintf("Embedder:  %s (dim %d)\n", summary.Embedder, summary.Dimension))
	if summary.Path != "" {
		sb.WriteString(fmt.Sprintf("Path:      %s\n", summary.Path))
	}
	sb.WriteString(fmt.Sprintf("Duration:  %s", summary.Duration.Round(time.Millisecond)))

	p.printBox("INDEX BUILT", sb.String())
}

// PrintContext outputs the retrieved context items with their scores.
func (p *Printer) PrintContext(items []types.ContextItem) {
	if len(items) == 0 {
		p.printBox("RETRIEVED CONTEXT", "No context retrieved")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Retrieved %d chunks:\n\n", len(items)))

	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		item := items[i]
		sb.WriteString(fmt.Sprintf("#%d  %s / %s  (score %.3f)\n", i+1, item.Source, item.Role, item.SimilarityScore))
		sb.WriteString(fmt.Sprintf("    %s\n", oneLine(item.Text)))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(items)-maxItemsToShow))
	}

	p.printBox("RETRIEVED CONTEXT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRoles outputs the roles available in the index.
func (p *Printer) PrintRoles(roles []string) {
	if len(roles) == 0 {
		p.printBox("AVAILABLE ROLES", "No roles indexed")
		return
	}
	p.printBox(fmt.Sprintf("AVAILABLE ROLES (%d)", len(roles)), "• "+strings.Join(roles, "\n• "))
}

// PrintResponse outputs the outcome of a generation request.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintResponse(resp types.Response) {
	if !resp.Success {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Category: %s\n", resp.Category))
		sb.WriteString(resp.Error)
		if advice := resp.Category.Advice(); advice != "" {
			sb.WriteString("\n\n" + advice)
		}
		p.printBox("❌ GENERATION FAILED", sb.String())
		return
	}

	if len(resp.RetrievedContext) > 0 {
		p.PrintContext(resp.RetrievedContext)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Words:     %d\n", resp.WordCount))
	sb.WriteString(fmt.Sprintf("Context:   %d chunks\n", resp.RetrievedContextCount))
	sb.WriteString(fmt.Sprintf("Generated: %s", resp.GenerationTimestamp))
	for _, w := range resp.Warnings {
		sb.WriteString(fmt.Sprintf("\n⚠ %s", w))
	}
	p.printBox("✅ COVER LETTER GENERATED", sb.String())

	fmt.Fprintf(p.out, "\n%s\n", resp.CoverLetter)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
