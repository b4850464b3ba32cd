package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
	"unicode/utf8"
)

// Origin says where an input document came from.
type Origin string

// Origin values.
const (
	OriginFile Origin = "file"
	OriginURL  Origin = "url"
)

// Metadata describes one ingested résumé or job posting.
type Metadata struct {
	Origin    Origin `json:"origin"`
	Location  string `json:"location"`           // File path or URL
	Title     string `json:"title,omitempty"`    // Page title for fetched postings
	Platform  string `json:"platform,omitempty"` // Detected job board
	Hash      string `json:"hash"`               // SHA-256 of the cleaned text
	Chars     int    `json:"chars"`
	FetchedAt string `json:"fetched_at"` // RFC3339
}

func newMetadata(origin Origin, location, cleaned string, now time.Time) *Metadata {
	sum := sha256.Sum256([]byte(cleaned))
	return &Metadata{
		Origin:    origin,
		Location:  location,
		Hash:      hex.EncodeToString(sum[:]),
		Chars:     utf8.RuneCountInString(cleaned),
		FetchedAt: now.UTC().Format(time.RFC3339),
	}
}

// ShortHash is the first 12 hex digits of Hash, enough to tell inputs apart in logs.
func (m *Metadata) ShortHash() string {
	if len(m.Hash) < 12 {
		return m.Hash
	}
	return m.Hash[:12]
}

// LogValue implements slog.LogValuer.
func (m *Metadata) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("origin", string(m.Origin)),
		slog.String("location", m.Location),
		slog.Int("chars", m.Chars),
		slog.String("hash", m.ShortHash()),
	}
	if m.Platform != "" {
		attrs = append(attrs, slog.String("platform", m.Platform))
	}
	if m.Title != "" {
		attrs = append(attrs, slog.String("title", m.Title))
	}
	return slog.GroupValue(attrs...)
}
