package schema

import "github.com/arjanchaudharyy/flowdeck/pkg/models"

// MaskToken replaces every secret-tagged value in captured payloads.
const MaskToken = "******"

// Mask returns a copy of payload with every field the definition tags as
// secret replaced by MaskToken. If the definition itself is secret-typed the
// whole payload is replaced. Masking is schema-driven: values are never
// inspected, and masking an already-masked payload is a no-op.
func Mask(def *models.SchemaDefinition, payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}

	if def != nil && def.Secret {
		return map[string]any{"value": MaskToken}
	}

	out := make(map[string]any, len(payload))

	for name, value := range payload {
		var field *models.Field
		if def != nil {
			field = def.Fields[name]
		}

		out[name] = maskValue(field, value)
	}

	return out
}

func maskValue(field *models.Field, value any) any {
	if field == nil {
		return value
	}

	if field.Secret {
		return MaskToken
	}

	switch typed := value.(type) {
	case map[string]any:
		if len(field.Properties) == 0 {
			return value
		}

		out := make(map[string]any, len(typed))
		for name, sub := range typed {
			out[name] = maskValue(field.Properties[name], sub)
		}

		return out
	case []any:
		if field.Items == nil {
			return value
		}

		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = maskValue(field.Items, item)
		}

		return out
	default:
		return value
	}
}
