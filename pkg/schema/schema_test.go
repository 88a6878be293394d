package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

func requestSchema() *models.SchemaDefinition {
	return &models.SchemaDefinition{
		Title: "http request parameters",
		Fields: map[string]*models.Field{
			"url":    {Type: models.FieldTypeString, Required: true},
			"method": {Type: models.FieldTypeString, Enum: []any{"GET", "POST"}, Default: "GET"},
			"token":  {Type: models.FieldTypeString, Secret: true},
			"options": {
				Type: models.FieldTypeObject,
				Properties: map[string]*models.Field{
					"timeout": {Type: models.FieldTypeNumber},
					"api_key": {Type: models.FieldTypeString, Secret: true},
				},
			},
		},
	}
}

func TestValidate_ValidPayload(t *testing.T) {
	err := Validate(requestSchema(), "params", map[string]any{
		"url":    "https://example.com",
		"method": "POST",
	})
	assert.NoError(t, err)
}

func TestValidate_NilSchemaAcceptsAnything(t *testing.T) {
	assert.NoError(t, Validate(nil, "params", map[string]any{"whatever": 1}))
}

func TestValidate_MissingRequiredField(t *testing.T) {
	err := Validate(requestSchema(), "params", map[string]any{"method": "GET"})

	var validationErr *ValidationError

	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "params", validationErr.Subject)
	assert.Contains(t, validationErr.FieldErrors, "url")
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestValidate_TypeMismatch(t *testing.T) {
	err := Validate(requestSchema(), "params", map[string]any{"url": 42})

	var validationErr *ValidationError

	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.FieldErrors, "url")
}

func TestValidate_EnumViolation(t *testing.T) {
	err := Validate(requestSchema(), "params", map[string]any{
		"url":    "https://example.com",
		"method": "TRACE",
	})

	var validationErr *ValidationError

	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.FieldErrors, "method")
}

func TestValidate_CollectsAllFieldErrors(t *testing.T) {
	err := Validate(requestSchema(), "params", map[string]any{"method": 5})

	var validationErr *ValidationError

	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.FieldErrors, 2)
}

func TestApplyDefaults(t *testing.T) {
	out := ApplyDefaults(requestSchema(), map[string]any{"url": "https://example.com"})

	assert.Equal(t, "GET", out["method"])
	assert.Equal(t, "https://example.com", out["url"])
}

func TestApplyDefaults_DoesNotOverride(t *testing.T) {
	out := ApplyDefaults(requestSchema(), map[string]any{"url": "u", "method": "POST"})
	assert.Equal(t, "POST", out["method"])
}

func TestMask_SecretFields(t *testing.T) {
	payload := map[string]any{
		"url":   "https://example.com",
		"token": "hunter2",
		"options": map[string]any{
			"timeout": 30,
			"api_key": "sk-secret",
		},
	}

	masked := Mask(requestSchema(), payload)

	assert.Equal(t, "https://example.com", masked["url"])
	assert.Equal(t, MaskToken, masked["token"])

	options, ok := masked["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 30, options["timeout"])
	assert.Equal(t, MaskToken, options["api_key"])

	// The input payload is never mutated.
	assert.Equal(t, "hunter2", payload["token"])
}

func TestMask_WholeSchemaSecret(t *testing.T) {
	def := &models.SchemaDefinition{Secret: true}

	masked := Mask(def, map[string]any{"anything": "at all"})
	assert.Equal(t, map[string]any{"value": MaskToken}, masked)
}

func TestMask_Idempotent(t *testing.T) {
	def := requestSchema()

	once := Mask(def, map[string]any{"token": "hunter2"})
	twice := Mask(def, once)

	assert.Equal(t, once, twice)
}

func TestMask_SecretArrayItems(t *testing.T) {
	def := &models.SchemaDefinition{
		Fields: map[string]*models.Field{
			"keys": {
				Type:  models.FieldTypeArray,
				Items: &models.Field{Type: models.FieldTypeString, Secret: true},
			},
		},
	}

	masked := Mask(def, map[string]any{"keys": []any{"a", "b"}})
	assert.Equal(t, []any{MaskToken, MaskToken}, masked["keys"])
}

func TestMask_UndeclaredFieldsPassThrough(t *testing.T) {
	masked := Mask(requestSchema(), map[string]any{"extra": "kept"})
	assert.Equal(t, "kept", masked["extra"])
}

func TestJSONSchema(t *testing.T) {
	doc := JSONSchema(requestSchema())

	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []string{"url"}, doc["required"])

	properties, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, properties, 4)
}
