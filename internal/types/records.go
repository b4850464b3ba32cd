package types

// ResumeRecord is a sample résumé from the reference corpus.
// Role and ExperienceType are kept as raw strings; the chunk builder validates them.
type ResumeRecord struct {
	Role           string `json:"role"`
	ExperienceType string `json:"experience_type"`
	Text           string `json:"text"`
}

// JobDescriptionRecord is a sample job posting from the reference corpus.
type JobDescriptionRecord struct {
	Role           string `json:"role"`
	ExperienceType string `json:"experience_type"`
	JobTitle       string `json:"job_title,omitempty"`
	Skills         string `json:"skills,omitempty"`
	Text           string `json:"text"`
}

// SkillMappingRecord maps a role to the skills and education it usually requires.
type SkillMappingRecord struct {
	Role           string `json:"role"`
	ExperienceType string `json:"experience_type"`
	Skills         string `json:"skills"`
	Education      string `json:"education,omitempty"`
}

// CoverLetterRecord is an exemplar cover letter for a role.
type CoverLetterRecord struct {
	Role           string `json:"role"`
	ExperienceType string `json:"experience_type"`
	Text           string `json:"text"`
}

// RecordSet is the full set of structured records an index is built from.
type RecordSet struct {
	Resumes         []ResumeRecord         `json:"resumes"`
	JobDescriptions []JobDescriptionRecord `json:"job_descriptions"`
	SkillMappings   []SkillMappingRecord   `json:"skill_mappings"`
	CoverLetters    []CoverLetterRecord    `json:"cover_letters"`
}

// Len returns the total number of records across all families.
func (r *RecordSet) Len() int {
	return len(r.Resumes) + len(r.JobDescriptions) + len(r.SkillMappings) + len(r.CoverLetters)
}
