// Package types provides type definitions for structured data used throughout the cover letter pipeline.
package types

import (
	"fmt"
	"strings"
)

// Source identifies which kind of record a chunk was derived from.
type Source string

// Source constants name the record families that feed the index.
const (
	SourceResume         Source = "resume"
	SourceJobDescription Source = "job_description"
	SourceSkillMapping   Source = "skill_mapping"
	SourceCoverLetter    Source = "cover_letter"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceResume, SourceJobDescription, SourceSkillMapping, SourceCoverLetter:
		return true
	}
	return false
}

// ExperienceType is the seniority band a record or request belongs to.
type ExperienceType string

const (
	// ExperienceFresher is a candidate without prior professional experience
	ExperienceFresher ExperienceType = "fresher"
	// ExperienceExperienced is a candidate with prior professional experience
	ExperienceExperienced ExperienceType = "experienced"
)

// DefaultExperienceType is used when a request omits experience_type.
const DefaultExperienceType = ExperienceExperienced

// ParseExperienceType normalizes free-form input ("Fresher ", "EXPERIENCED") into an ExperienceType.
func ParseExperienceType(raw string) (ExperienceType, error) {
	switch ExperienceType(strings.ToLower(strings.TrimSpace(raw))) {
	case ExperienceFresher:
		return ExperienceFresher, nil
	case ExperienceExperienced:
		return ExperienceExperienced, nil
	}
	return "", fmt.Errorf("unknown experience type %q", raw)
}

// Valid reports whether e is one of the known experience types.
func (e ExperienceType) Valid() bool {
	return e == ExperienceFresher || e == ExperienceExperienced
}

// ChunkMetadata is the provenance attached to every chunk.
type ChunkMetadata struct {
	Source         Source         `json:"source"`
	Role           string         `json:"role"`
	ExperienceType ExperienceType `json:"experience_type"`
}

// Chunk is a minimal unit of retrievable text plus its provenance.
// Chunks are produced by the chunking package and never mutated afterwards.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}
