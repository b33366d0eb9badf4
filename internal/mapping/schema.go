package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/doc-composer/internal/value"
)

// documentSchema constrains the typed surface of a composed mapping
// tree. Unknown top-level sections are allowed; downstream stages read
// those themselves.
const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"template": {
			"type": "object",
			"properties": {
				"url": {"type": "string"},
				"type": {"type": "string"}
			}
		},
		"mapping": {
			"type": "object",
			"properties": {
				"pdf": {
					"type": "object",
					"properties": {
						"field": {
							"type": "object",
							"additionalProperties": {"type": "string"}
						}
					}
				},
				"excel": {
					"type": "object",
					"properties": {
						"cell": {
							"type": "object",
							"additionalProperties": {"type": "string"}
						}
					}
				}
			}
		},
		"metadata": {"type": "object"}
	}
}`

// ValidationError reports where a composed tree violates the document
// schema.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violation at a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("mapping document validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// ValidateTree checks a composed tree against the document schema.
func ValidateTree(tree *value.Map) error {
	doc, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to encode mapping tree: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed during load: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
