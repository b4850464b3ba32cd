package types

import "time"

// RunStatus is the terminal state of a request.
type RunStatus string

// RunStatus constants.
const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the audit entry written for every finished generation request.
// It carries request shape and outcome, never the résumé or letter text.
type RunRecord struct {
	RequestID      string        `json:"request_id"`
	Operation      string        `json:"operation"`
	CompanyName    string        `json:"company_name"`
	JobRole        string        `json:"job_role"`
	ExperienceType string        `json:"experience_type"`
	TopK           int           `json:"top_k"`
	Status         RunStatus     `json:"status"`
	Category       Category      `json:"category,omitempty"`
	WordCount      int           `json:"word_count"`
	ContextCount   int           `json:"context_count"`
	Warnings       []Warning     `json:"warnings,omitempty"`
	CacheHit       bool          `json:"cache_hit"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
}
