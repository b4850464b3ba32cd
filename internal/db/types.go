package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cover-letter-rag/internal/types"
)

// DefaultListLimit is used when RunFilters.Limit is zero
const DefaultListLimit = 50

// MaxListLimit caps RunFilters.Limit
const MaxListLimit = 500

// Run is a stored generation_runs row
type Run struct {
	ID             uuid.UUID       `json:"id"`
	RequestID      string          `json:"request_id"`
	Operation      string          `json:"operation"`
	CompanyName    string          `json:"company_name"`
	JobRole        string          `json:"job_role"`
	ExperienceType string          `json:"experience_type"`
	TopK           int             `json:"top_k"`
	Status         types.RunStatus `json:"status"`
	Category       *string         `json:"category,omitempty"`
	WordCount      int             `json:"word_count"`
	ContextCount   int             `json:"context_count"`
	Warnings       []string        `json:"warnings"`
	CacheHit       bool            `json:"cache_hit"`
	DurationMs     int64           `json:"duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	Company  string
	Status   string
	Category string
	Since    time.Time
	Limit    int
}

// CategoryCount is the number of runs that ended with a category
type CategoryCount struct {
	Status   types.RunStatus `json:"status"`
	Category string          `json:"category"`
	Count    int             `json:"count"`
}
