package schemas

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rootschemas "github.com/jonathan/cover-letter-rag/schemas"
)

const personSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "tags"],
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"address": {
			"type": "object",
			"required": ["city"],
			"properties": {"city": {"type": "string"}}
		}
	}
}`

func TestValidator_Fields(t *testing.T) {
	v, err := NewValidator("person", personSchema)
	require.NoError(t, err)
	assert.Equal(t, "person", v.Name())

	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{name: "missing field", doc: `{"name": "Ada"}`, wantField: "(root)"},
		{name: "wrong type", doc: `{"name": "Ada", "tags": ["x"], "age": "old"}`, wantField: "age"},
		{name: "nested field", doc: `{"name": "Ada", "tags": [], "address": {}}`, wantField: "address"},
		{name: "array item", doc: `{"name": "Ada", "tags": [1]}`, wantField: "tags.0"},
		{name: "malformed", doc: `{"name": `, wantField: "(root)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var validationErr *ValidationError
			require.ErrorAs(t, v.Validate([]byte(tt.doc)), &validationErr)
			require.NotEmpty(t, validationErr.Errors)
			assert.Equal(t, tt.wantField, validationErr.Errors[0].Field)
		})
	}

	assert.NoError(t, v.Validate([]byte(`{"name": "Ada", "tags": []}`)))
}

func TestValidator_InvalidSchema(t *testing.T) {
	_, err := NewValidator("broken", `{"type": "nonsense"}`)
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "broken", loadErr.Name)
}

func TestValidationError_Format(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{
		{Field: "name", Message: "name is required"},
		{Field: "age", Message: "Invalid type"},
	}}

	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "validation failed:"))
	assert.Contains(t, msg, "1. name: name is required")
	assert.Contains(t, msg, "2. age: Invalid type")
	assert.Equal(t, "name: name is required; age: Invalid type", err.Summary())
}

func TestValidationError_CapsFieldErrors(t *testing.T) {
	v, err := NewValidator("tags", `{"type": "array", "items": {"type": "string"}}`)
	require.NoError(t, err)

	items := make([]string, 15)
	for i := range items {
		items[i] = fmt.Sprint(i)
	}
	var validationErr *ValidationError
	require.ErrorAs(t, v.Validate([]byte("["+strings.Join(items, ",")+"]")), &validationErr)
	assert.Len(t, validationErr.Errors, maxFieldErrors)
	assert.Equal(t, 5, validationErr.Omitted)
	assert.Contains(t, validationErr.Summary(), "(and 5 more)")
}

func TestEmbedded(t *testing.T) {
	v1, err := Embedded(rootschemas.GenerationRequestFile)
	require.NoError(t, err)
	v2, err := Embedded(rootschemas.GenerationRequestFile)
	require.NoError(t, err)
	assert.Same(t, v1, v2)

	_, err = Embedded("missing.schema.json")
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestValidator_Concurrent(t *testing.T) {
	v, err := NewValidator("person", personSchema)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.Validate([]byte(`{"name": "Ada", "tags": ["a"]}`)))
		}()
	}
	wg.Wait()
}
