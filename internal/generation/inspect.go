package generation

import (
	"regexp"
	"strings"

	"github.com/jonathan/cover-letter-rag/internal/types"
)

var (
	markdownHeaderPattern = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+\S`)
	markdownLinkPattern   = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
)

// Inspection reports formatting problems and length of a letter.
type Inspection struct {
	HasMarkdown bool `json:"has_markdown"`
	HasBullets  bool `json:"has_bullets"`
	HasEmoji    bool `json:"has_emoji"`
	WordCount   int  `json:"word_count"`
	WithinBand  bool `json:"within_band"`
}

// Clean reports whether no formatting problems were found.
func (i Inspection) Clean() bool {
	return !i.HasMarkdown && !i.HasBullets && !i.HasEmoji
}

// Inspect examines text against the [minWords, maxWords] band.
func Inspect(text string, minWords, maxWords int) Inspection {
	words := CountWords(text)
	return Inspection{
		HasMarkdown: strings.ContainsAny(text, "*`#") ||
			markdownHeaderPattern.MatchString(text) ||
			markdownLinkPattern.MatchString(text),
		HasBullets: bulletPattern.MatchString(text) || strings.ContainsAny(text, inlineBulletGlyphs),
		HasEmoji:   strings.IndexFunc(text, isDecorative) >= 0,
		WordCount:  words,
		WithinBand: words >= minWords && words <= maxWords,
	}
}

// Warnings converts an inspection into caller-facing warnings.
func (i Inspection) Warnings(minWords, maxWords int) []types.Warning {
	var out []types.Warning
	switch {
	case i.WordCount < minWords:
		out = append(out, types.WarningBelowWordBand)
	case i.WordCount > maxWords:
		out = append(out, types.WarningAboveWordBand)
	}
	return out
}
