// Package schemas holds the JSON Schemas for request bodies and corpus record files.
package schemas

import (
	"embed"
	"fmt"
)

// Schema file names.
const (
	GenerationRequestFile = "generation_request.schema.json"
	RecordsFile           = "records.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Load returns the content of an embedded schema file.
func Load(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("schema %s not found: %w", name, err)
	}
	return string(data), nil
}
