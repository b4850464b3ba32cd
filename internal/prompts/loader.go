// Package prompts holds the externalized cover letter prompt templates.
// Templates are JSON files of key/template pairs embedded at compile time and
// use {{.Name}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// CoverLetterFile holds the cover letter generation prompts.
const CoverLetterFile = "cover_letter.json"

// Keys in CoverLetterFile.
const (
	KeySystem      = "system"
	KeyUser        = "user"
	KeyContextItem = "context-item"
	KeyNoContext   = "no-context"
)

//go:embed *.json
var promptFiles embed.FS

var placeholderPattern = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9]*)\}\}`)

// Set is one parsed prompt file. It is immutable after Load.
type Set struct {
	name      string
	templates map[string]string
}

// Load parses an embedded prompt file.
func Load(filename string) (*Set, error) {
	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	var templates map[string]string
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	return &Set{name: filename, templates: templates}, nil
}

var coverLetter = sync.OnceValues(func() (*Set, error) {
	set, err := Load(CoverLetterFile)
	if err != nil {
		return nil, err
	}
	if err := set.Require(KeySystem, KeyUser, KeyContextItem, KeyNoContext); err != nil {
		return nil, err
	}
	return set, nil
})

// CoverLetter returns the cover letter prompt set, parsed once.
func CoverLetter() (*Set, error) {
	return coverLetter()
}

// Get returns the raw template for key.
func (s *Set) Get(key string) (string, error) {
	t, ok := s.templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, s.name)
	}
	return t, nil
}

// Require fails unless every key is present.
func (s *Set) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := s.templates[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("prompt file %s lacks %s", s.name, strings.Join(missing, ", "))
	}
	return nil
}

// Keys returns the template keys, sorted.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.templates))
	for k := range s.templates {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Render fills the template for key from data. It fails when a placeholder has no
// value, so a renamed field cannot silently reach the model.
func (s *Set) Render(key string, data map[string]string) (string, error) {
	t, err := s.Get(key)
	if err != nil {
		return "", err
	}
	var missing []string
	for _, name := range Placeholders(t) {
		if _, ok := data[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s/%s missing values for %s", s.name, key, strings.Join(missing, ", "))
	}
	return Format(t, data), nil
}

// Placeholders lists the distinct placeholder names in template, in order of first use.
func Placeholders(template string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

// Format replaces {{.Key}} placeholders with values from data in a single pass;
// substituted values are never re-expanded. Placeholders without a value are left in place.
func Format(template string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		if v, ok := data[placeholderPattern.FindStringSubmatch(m)[1]]; ok {
			return v
		}
		return m
	})
}
