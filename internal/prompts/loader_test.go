package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coverLetterSet(t *testing.T) *Set {
	t.Helper()
	set, err := CoverLetter()
	require.NoError(t, err)
	return set
}

func TestCoverLetter_SystemRules(t *testing.T) {
	prompt, err := coverLetterSet(t).Get(KeySystem)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Never invent skills")
	assert.Contains(t, prompt, "no bullet points, no markdown")
}

func TestCoverLetter_Keys(t *testing.T) {
	assert.Equal(t, []string{KeyContextItem, KeyNoContext, KeySystem, KeyUser}, coverLetterSet(t).Keys())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("nonexistent.json")
	assert.ErrorContains(t, err, "failed to read prompt file")
}

func TestGet_UnknownKey(t *testing.T) {
	_, err := coverLetterSet(t).Get("nonexistent-key")
	assert.ErrorContains(t, err, "not found")
}

func TestRequire(t *testing.T) {
	set := &Set{name: "inline", templates: map[string]string{"a": "x"}}
	assert.NoError(t, set.Require("a"))
	assert.ErrorContains(t, set.Require("a", "b", "c"), "lacks b, c")
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{"fills values", "Hello {{.Name}}, welcome to {{.Company}}!",
			map[string]string{"Name": "Alice", "Company": "Acme Corp"}, "Hello Alice, welcome to Acme Corp!"},
		{"leaves unknown placeholders", "Hello {{.Name}}", map[string]string{}, "Hello {{.Name}}"},
		{"does not re-expand values", "A={{.A}} B={{.B}}",
			map[string]string{"A": "{{.B}}", "B": "b"}, "A={{.B}} B=b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.template, tt.data))
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, Placeholders("{{.A}} {{.B}} {{.A}} {{ .C }}"))
	assert.Empty(t, Placeholders("plain text"))
}

func TestRender_MissingValue(t *testing.T) {
	_, err := coverLetterSet(t).Render(KeyContextItem, map[string]string{"Position": "1", "Source": "resume"})
	assert.ErrorContains(t, err, "missing values for Text")
}

func TestRender_UserPrompt(t *testing.T) {
	prompt, err := coverLetterSet(t).Render(KeyUser, map[string]string{
		"CompanyName":      "Acme",
		"JobRole":          "Data Scientist",
		"ResumeContent":    "Five years of Python.",
		"JobDescription":   "Build models.",
		"RetrievedContext": "No additional context retrieved.",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Company Name: Acme\nJob Role: Data Scientist")
	assert.Contains(t, prompt, "Candidate Resume:\nFive years of Python.")
	assert.NotContains(t, prompt, "{{.")
}
