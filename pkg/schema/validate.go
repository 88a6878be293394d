package schema

import (
	"fmt"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema lowers a field-map definition to a draft-07 JSON schema document.
func JSONSchema(def *models.SchemaDefinition) map[string]any {
	doc := map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
	}

	if def == nil {
		return doc
	}

	if def.Title != "" {
		doc["title"] = def.Title
	}

	if def.Description != "" {
		doc["description"] = def.Description
	}

	properties := make(map[string]any, len(def.Fields))
	required := make([]string, 0)

	for name, field := range def.Fields {
		properties[name] = fieldSchema(field)
		if field != nil && field.Required {
			required = append(required, name)
		}
	}

	doc["properties"] = properties
	if len(required) > 0 {
		doc["required"] = required
	}

	return doc
}

func fieldSchema(field *models.Field) map[string]any {
	prop := map[string]any{}
	if field == nil {
		return prop
	}

	if field.Type != "" && field.Type != models.FieldTypeAny {
		prop["type"] = string(field.Type)
	}

	if field.Description != "" {
		prop["description"] = field.Description
	}

	if len(field.Enum) > 0 {
		prop["enum"] = field.Enum
	}

	if field.Default != nil {
		prop["default"] = field.Default
	}

	if len(field.Properties) > 0 {
		nested := make(map[string]any, len(field.Properties))
		required := make([]string, 0)

		for name, sub := range field.Properties {
			nested[name] = fieldSchema(sub)
			if sub != nil && sub.Required {
				required = append(required, name)
			}
		}

		prop["properties"] = nested
		if len(required) > 0 {
			prop["required"] = required
		}
	}

	if field.Items != nil {
		prop["items"] = fieldSchema(field.Items)
	}

	return prop
}

// Validate parses payload against the definition. A mismatch returns a
// *ValidationError carrying per-field error lists.
func Validate(def *models.SchemaDefinition, subject string, payload map[string]any) error {
	if def == nil {
		return nil
	}

	if payload == nil {
		payload = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(JSONSchema(def))
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", subject, err)
	}

	if result.Valid() {
		return nil
	}

	fieldErrors := make(map[string][]string)

	for _, resultError := range result.Errors() {
		field := resultError.Field()
		if field == "(root)" {
			if property, ok := resultError.Details()["property"].(string); ok {
				field = property
			}
		}

		fieldErrors[field] = append(fieldErrors[field], resultError.Description())
	}

	return &ValidationError{Subject: subject, FieldErrors: fieldErrors}
}

// ApplyDefaults returns a copy of payload with declared defaults filled in
// for absent top-level fields.
func ApplyDefaults(def *models.SchemaDefinition, payload map[string]any) map[string]any {
	if def == nil {
		return payload
	}

	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	for name, field := range def.Fields {
		if field == nil || field.Default == nil {
			continue
		}

		if _, ok := out[name]; !ok {
			out[name] = field.Default
		}
	}

	return out
}
