package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultTopK is the number of context chunks retrieved when a request omits top_k.
	DefaultTopK = 5
	// MinTopK is the smallest accepted top_k.
	MinTopK = 1
	// MaxTopK is the largest accepted top_k.
	MaxTopK = 10
)

var validate = validator.New()

// GenerationRequest is the inbound request for a cover letter.
// TopK is a pointer so an explicit 0 can be told apart from an omitted field.
type GenerationRequest struct {
	ResumeContent  string `json:"resume_content" validate:"required"`
	JobDescription string `json:"job_description" validate:"required"`
	CompanyName    string `json:"company_name" validate:"required"`
	JobRole        string `json:"job_role" validate:"required"`
	ExperienceType string `json:"experience_type,omitempty" validate:"omitempty,oneof=fresher experienced"`
	TopK           *int   `json:"top_k,omitempty" validate:"omitempty,min=1,max=10"`
}

// Normalized returns a copy with surrounding whitespace trimmed, experience_type
// lower-cased, and defaults applied to omitted optional fields.
func (r GenerationRequest) Normalized() GenerationRequest {
	out := GenerationRequest{
		ResumeContent:  strings.TrimSpace(r.ResumeContent),
		JobDescription: strings.TrimSpace(r.JobDescription),
		CompanyName:    strings.TrimSpace(r.CompanyName),
		JobRole:        strings.TrimSpace(r.JobRole),
		ExperienceType: strings.ToLower(strings.TrimSpace(r.ExperienceType)),
	}
	if out.ExperienceType == "" {
		out.ExperienceType = string(DefaultExperienceType)
	}
	k := DefaultTopK
	if r.TopK != nil {
		k = *r.TopK
	}
	out.TopK = &k
	return out
}

// Validate validates the GenerationRequest using the validator.
func (r *GenerationRequest) Validate() error {
	return validate.Struct(r)
}

// K returns the effective top_k.
func (r *GenerationRequest) K() int {
	if r.TopK == nil {
		return DefaultTopK
	}
	return *r.TopK
}

// Experience returns the effective experience type.
func (r *GenerationRequest) Experience() ExperienceType {
	if e, err := ParseExperienceType(r.ExperienceType); err == nil {
		return e
	}
	return DefaultExperienceType
}

// DescribeValidationError turns validator output into a short, field-oriented sentence.
func DescribeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describeField(fe))
	}
	return strings.Join(parts, "; ")
}

func describeField(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s must be between %d and %d", field, MinTopK, MaxTopK)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func jsonFieldName(goName string) string {
	switch goName {
	case "ResumeContent":
		return "resume_content"
	case "JobDescription":
		return "job_description"
	case "CompanyName":
		return "company_name"
	case "JobRole":
		return "job_role"
	case "ExperienceType":
		return "experience_type"
	case "TopK":
		return "top_k"
	}
	return goName
}
