// Package schemas compiles the embedded JSON Schemas and validates request bodies and
// record files against them.
package schemas

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	rootschemas "github.com/jonathan/cover-letter-rag/schemas"
)

// maxFieldErrors caps how many field errors a ValidationError reports.
const maxFieldErrors = 10

// ValidationError lists the fields a document got wrong.
type ValidationError struct {
	Errors []FieldError
	// Omitted counts errors beyond maxFieldErrors.
	Omitted int
}

// FieldError is one schema violation at a dotted field path.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	if ve.Omitted > 0 {
		sb.WriteString(fmt.Sprintf("  (%d more)\n", ve.Omitted))
	}
	return sb.String()
}

// Summary joins the field errors into a single line for API responses.
func (ve *ValidationError) Summary() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, err := range ve.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	s := strings.Join(parts, "; ")
	if ve.Omitted > 0 {
		s += fmt.Sprintf(" (and %d more)", ve.Omitted)
	}
	return s
}

// SchemaLoadError reports a schema that could not be found or compiled.
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Validator checks documents against a schema compiled once.
// It is safe for concurrent use.
type Validator struct {
	name   string
	schema *gojsonschema.Schema
}

// NewValidator compiles schemaContent. name is used in error messages.
func NewValidator(name, schemaContent string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaContent))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Cause: err}
	}
	return &Validator{name: name, schema: schema}, nil
}

var compiled sync.Map // schema file name -> *Validator

// Embedded returns the validator for one of the schema files shipped with the binary,
// compiling it on first use.
func Embedded(name string) (*Validator, error) {
	if v, ok := compiled.Load(name); ok {
		return v.(*Validator), nil
	}
	content, err := rootschemas.Load(name)
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Cause: err}
	}
	v, err := NewValidator(name, content)
	if err != nil {
		return nil, err
	}
	actual, _ := compiled.LoadOrStore(name, v)
	return actual.(*Validator), nil
}

// Name returns the schema name given at construction.
func (v *Validator) Name() string {
	return v.name
}

// Validate checks a raw JSON document. Malformed JSON is reported as a ValidationError at the root.
func (v *Validator) Validate(doc []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: "malformed JSON: " + err.Error()}}}
	}
	return toValidationError(result)
}

func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	all := result.Errors()
	validationErr := &ValidationError{Errors: make([]FieldError, 0, min(len(all), maxFieldErrors))}
	for i, desc := range all {
		if i == maxFieldErrors {
			validationErr.Omitted = len(all) - maxFieldErrors
			break
		}
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return validationErr
}
