package generation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jonathan/cover-letter-rag/internal/llm"
)

var (
	fenceLinePattern   = regexp.MustCompile("(?m)^[ \t]*```.*$")
	headerPattern      = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	blockquotePattern  = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	rulePattern        = regexp.MustCompile(`(?m)^[ \t]*(?:(?:-[ \t]*){3,}|(?:\*[ \t]*){3,}|(?:_[ \t]*){3,})$`)
	imagePattern       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkPattern        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	bulletPattern      = regexp.MustCompile(`(?m)^[ \t]*[-•*+▪◦‣][ \t]+`)
	numberedPattern    = regexp.MustCompile(`(?m)^[ \t]*\d{1,2}[.)][ \t]+`)
	boldPattern        = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldAltPattern     = regexp.MustCompile(`__(.+?)__`)
	italicPattern      = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicAltPattern   = regexp.MustCompile(`(^|\W)_([^_\n]+)_(\W|$)`)
	inlineCodePattern  = regexp.MustCompile("`([^`\n]*)`")
	sharpPattern       = regexp.MustCompile(`\b([CF])#`)
	hashPattern        = regexp.MustCompile(`#+`)
	inlineBulletGlyphs = "•▪◦‣●○■□▸►"
	spacesPattern      = regexp.MustCompile(`[ \t]{2,}`)
	orphanPunctPattern = regexp.MustCompile(`[ \t]+([,.;:!?])`)
	lineEdgePattern    = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
	paragraphPattern   = regexp.MustCompile(`\n[ \t]*\n`)
)

// Clean converts model output into plain-text paragraphs: markdown structure and
// emphasis are removed, emoji and decorative symbols dropped, and whitespace normalized.
// Bullet glyphs and '#' are removed wherever they appear; C# and F# are spelled out.
// Paragraphs are separated by exactly one blank line. Clean is idempotent.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = llm.StripCodeFence(text)
	text = fenceLinePattern.ReplaceAllString(text, "")

	text = rulePattern.ReplaceAllString(text, "")
	text = headerPattern.ReplaceAllString(text, "")
	text = blockquotePattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "")
	text = numberedPattern.ReplaceAllString(text, "")

	text = imagePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = boldPattern.ReplaceAllString(text, "$1")
	text = boldAltPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = italicAltPattern.ReplaceAllString(text, "$1$2$3")
	text = inlineCodePattern.ReplaceAllString(text, "$1")

	// Stray markers left by unbalanced emphasis
	text = strings.NewReplacer("*", "", "`", "").Replace(text)
	text = sharpPattern.ReplaceAllString(text, "$1 Sharp")
	text = hashPattern.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(inlineBulletGlyphs, r) {
			return ' '
		}
		return r
	}, text)

	text = stripDecorative(text)
	text = orphanPunctPattern.ReplaceAllString(text, "$1")

	text = spacesPattern.ReplaceAllString(text, " ")
	text = lineEdgePattern.ReplaceAllString(text, "")
	return normalizeParagraphs(text)
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func normalizeParagraphs(text string) string {
	parts := paragraphPattern.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "\n"); strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func stripDecorative(text string) string {
	return strings.Map(func(r rune) rune {
		if isDecorative(r) {
			return -1
		}
		return r
	}, text)
}

// isDecorative reports emoji, pictographs, dingbats, and the joiners that glue them together.
func isDecorative(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0x2190 && r <= 0x21FF:
		return true
	case r == 0x200D || r == 0x20E3 || (r >= 0xFE00 && r <= 0xFE0F):
		return true
	case unicode.Is(unicode.Co, r):
		return true
	}
	return false
}
