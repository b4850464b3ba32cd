package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected Platform
	}{
		{"https://job-boards.greenhouse.io/acme/jobs/7063751", PlatformGreenhouse},
		{"https://boards.greenhouse.io/company/jobs/123", PlatformGreenhouse},
		{"https://jobs.lever.co/company/job-id", PlatformLever},
		{"https://company.wd5.myworkdayjobs.com/en-US/External", PlatformWorkday},
		{"https://jobs.ashbyhq.com/acme/123", PlatformAshby},
		{"https://jobs.smartrecruiters.com/Acme/123", PlatformSmartRecruiters},
		{"https://notgreenhouse.io.example.com/jobs", PlatformUnknown},
		{"https://example.com/careers/backend", PlatformUnknown},
		{"://bad", PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPlatform(tt.url))
		})
	}
}

func TestPlatformContentSelectors(t *testing.T) {
	assert.Equal(t, ".job__description.body", PlatformContentSelectors(PlatformGreenhouse)[0])
	assert.Contains(t, PlatformContentSelectors(PlatformLever), ".posting-description")
	assert.Equal(t, JobPostingSelectors(), PlatformContentSelectors(PlatformUnknown))
}

func TestPlatformNoiseSelectors(t *testing.T) {
	common := PlatformNoiseSelectors(PlatformUnknown)
	assert.Contains(t, common, "form")
	assert.Contains(t, common, ".eeo-statement")

	greenhouse := PlatformNoiseSelectors(PlatformGreenhouse)
	assert.Contains(t, greenhouse, "form")
	assert.Contains(t, greenhouse, "#usa_self_id_section")
	assert.NotContains(t, common, "#usa_self_id_section", "platform selectors must not leak into the shared list")
}
