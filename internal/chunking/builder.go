// Package chunking turns structured corpus records into retrievable chunks.
package chunking

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/cover-letter-rag/internal/types"
)

// DefaultMaxChars is the default upper bound on chunk length, in runes.
const DefaultMaxChars = 500

var whitespacePattern = regexp.MustCompile(`\s+`)

// Stats summarizes a build.
type Stats struct {
	Records int
	Chunks  int
	Skipped int
	Split   int
}

// Builder produces an ordered chunk sequence from a RecordSet.
// Given the same records and MaxChars, Build always returns the same sequence.
type Builder struct {
	MaxChars int
	Logger   *slog.Logger
}

// NewBuilder creates a Builder. A non-positive maxChars selects DefaultMaxChars.
func NewBuilder(maxChars int, logger *slog.Logger) *Builder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{MaxChars: maxChars, Logger: logger}
}

// Build returns the chunk sequence for records.
func (b *Builder) Build(records types.RecordSet) []types.Chunk {
	chunks, _ := b.BuildWithStats(records)
	return chunks
}

// BuildWithStats returns the chunk sequence along with counts of skipped and split records.
// Records are visited in a fixed family order: résumés, job descriptions, skill mappings,
// then cover letters.
func (b *Builder) BuildWithStats(records types.RecordSet) ([]types.Chunk, Stats) {
	stats := Stats{Records: records.Len()}
	var chunks []types.Chunk

	emit := func(source types.Source, index int, role, experience, text string) {
		meta, err := b.metadata(source, role, experience)
		if err != nil {
			stats.Skipped++
			b.Logger.Warn("skipping record", "source", source, "index", index, "reason", err.Error())
			return
		}
		text = normalizeWhitespace(text)
		if text == "" {
			stats.Skipped++
			b.Logger.Warn("skipping record", "source", source, "index", index, "reason", "empty text")
			return
		}
		pieces := b.split(text)
		if len(pieces) > 1 {
			stats.Split++
		}
		for _, piece := range pieces {
			chunks = append(chunks, types.Chunk{Text: piece, Metadata: meta})
		}
	}

	for i, r := range records.Resumes {
		emit(types.SourceResume, i, r.Role, r.ExperienceType, r.Text)
	}
	for i, r := range records.JobDescriptions {
		emit(types.SourceJobDescription, i, r.Role, r.ExperienceType, r.Text)
	}
	for i, r := range records.SkillMappings {
		emit(types.SourceSkillMapping, i, r.Role, r.ExperienceType, SkillMappingText(r))
	}
	for i, r := range records.CoverLetters {
		emit(types.SourceCoverLetter, i, r.Role, r.ExperienceType, r.Text)
	}

	stats.Chunks = len(chunks)
	return chunks, stats
}

// SkillMappingText renders a skill mapping record as indexable prose.
func SkillMappingText(r types.SkillMappingRecord) string {
	role := strings.TrimSpace(r.Role)
	skills := strings.TrimSpace(r.Skills)
	if skills == "" {
		return ""
	}
	text := fmt.Sprintf("Role: %s. Skills: %s.", role, strings.TrimRight(skills, "."))
	if edu := strings.TrimSpace(r.Education); edu != "" {
		text += fmt.Sprintf(" Education: %s", edu)
	}
	return text
}

func (b *Builder) metadata(source types.Source, role, experience string) (types.ChunkMetadata, error) {
	role = normalizeWhitespace(role)
	if role == "" {
		return types.ChunkMetadata{}, fmt.Errorf("missing role")
	}
	exp, err := types.ParseExperienceType(experience)
	if err != nil {
		return types.ChunkMetadata{}, err
	}
	return types.ChunkMetadata{Source: source, Role: role, ExperienceType: exp}, nil
}

// split breaks text into pieces of at most MaxChars runes along sentence boundaries,
// falling back to whitespace for over-long sentences. A single token longer than
// MaxChars is emitted whole.
func (b *Builder) split(text string) []string {
	if utf8.RuneCountInString(text) <= b.MaxChars {
		return []string{text}
	}

	var pieces []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			currentLen = 0
		}
	}
	add := func(unit string) {
		unitLen := utf8.RuneCountInString(unit)
		if currentLen > 0 && currentLen+1+unitLen > b.MaxChars {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(unit)
		currentLen += unitLen
	}

	for _, sentence := range sentences(text) {
		if utf8.RuneCountInString(sentence) <= b.MaxChars {
			add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			add(word)
		}
	}
	flush()
	return pieces
}

// sentences splits whitespace-normalized text after runs of terminal punctuation that are
// followed by a space, so "3.5 years" stays intact.
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && isTerminal(runes[j+1]) {
			j++
		}
		if j+1 == len(runes) || runes[j+1] == ' ' {
			out = append(out, strings.TrimSpace(string(runes[start:j+1])))
			start = j + 1
		}
		i = j
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
