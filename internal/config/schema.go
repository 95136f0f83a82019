package config

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/wheelforge.v1.schema.json
var schemaFS embed.FS

const schemaPath = "schemas/wheelforge.v1.schema.json"

// SchemaError lists every schema violation found in a document.
type SchemaError struct {
	Violations []Violation
}

// Violation is a single schema failure.
type Violation struct {
	Field   string
	Type    string
	Message string
}

func (e *SchemaError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("schema validation failed with %d errors: %s", len(e.Violations), strings.Join(msgs, "; "))
}

// ValidateSchema checks raw YAML against the embedded JSON schema.
func ValidateSchema(data []byte) error {
	schemaBytes, err := schemaFS.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load JSON schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	schemaErr := &SchemaError{}
	for _, desc := range result.Errors() {
		schemaErr.Violations = append(schemaErr.Violations, Violation{
			Field:   desc.Field(),
			Type:    desc.Type(),
			Message: desc.Description(),
		})
	}
	return schemaErr
}
