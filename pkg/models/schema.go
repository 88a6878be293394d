package models

// FieldType enumerates the primitive types a port field can carry.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeInteger FieldType = "integer"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeObject  FieldType = "object"
	FieldTypeArray   FieldType = "array"
	FieldTypeAny     FieldType = "any"
)

// Field describes one typed field of a component's input or output payload.
// Secret marks the field for masking before any captured payload is persisted
// or summarized; masking is schema-driven, never value-driven.
type Field struct {
	Type        FieldType         `json:"type"`
	Description string            `json:"description,omitempty"`
	Required    bool              `json:"required,omitempty"`
	Secret      bool              `json:"secret,omitempty"`
	Enum        []any             `json:"enum,omitempty"`
	Default     any               `json:"default,omitempty"`
	Properties  map[string]*Field `json:"properties,omitempty"`
	Items       *Field            `json:"items,omitempty"`
}

// SchemaDefinition is the typed field map a component declares for its
// parameters and results. If Secret is set the entire payload is treated as
// secret-typed and masked wholesale.
type SchemaDefinition struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Fields      map[string]*Field `json:"fields"`
	Secret      bool              `json:"secret,omitempty"`
}

// RequiredFields returns the names of all required top-level fields.
func (d *SchemaDefinition) RequiredFields() []string {
	required := make([]string, 0)
	for name, f := range d.Fields {
		if f != nil && f.Required {
			required = append(required, name)
		}
	}

	return required
}
