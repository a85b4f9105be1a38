package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSchema(t *testing.T) {
	t.Run("Should accept a nil schema", func(t *testing.T) {
		assert.NoError(t, ValidateSchema(nil))
	})

	t.Run("Should reject a non-object top-level type", func(t *testing.T) {
		assert.Error(t, ValidateSchema(map[string]any{"type": "array"}))
	})

	t.Run("Should reject minimum greater than maximum", func(t *testing.T) {
		assert.Error(t, ValidateSchema(map[string]any{"minimum": 10.0, "maximum": 5.0}))
	})

	t.Run("Should reject a required field absent from properties", func(t *testing.T) {
		schema := map[string]any{
			"type":     "object",
			"required": []any{"missing"},
			"properties": map[string]any{
				"present": map[string]any{"type": "string"},
			},
		}
		assert.Error(t, ValidateSchema(schema))
	})

	t.Run("Should accept a well-formed schema", func(t *testing.T) {
		schema := map[string]any{
			"type":     "object",
			"required": []any{"name"},
			"properties": map[string]any{
				"name": map[string]any{"type": "string", "minLength": 1.0, "maxLength": 10.0},
				"age":  map[string]any{"type": "integer", "minimum": 0.0, "maximum": 120.0},
			},
		}
		assert.NoError(t, ValidateSchema(schema))
	})
}

func TestValidate(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name":  map[string]any{"type": "string", "minLength": 2.0},
			"email": map[string]any{"type": "string", "format": "email"},
			"age":   map[string]any{"type": "integer", "minimum": 0.0, "maximum": 150.0},
			"tags":  map[string]any{"type": "array", "minItems": 1.0},
			"role":  map[string]any{"type": "string", "enum": []any{"admin", "user"}, "default": "user"},
		},
	}

	t.Run("Should report a missing required field", func(t *testing.T) {
		errs := Validate(map[string]any{}, schema)
		assertHasCode(t, errs, "name", "required")
	})

	t.Run("Should report a type mismatch", func(t *testing.T) {
		errs := Validate(map[string]any{"name": 5.0}, schema)
		assertHasCode(t, errs, "name", "type")
	})

	t.Run("Should report string/number/array constraint violations", func(t *testing.T) {
		errs := Validate(map[string]any{
			"name": "a", "age": 200.0, "tags": []any{},
		}, schema)
		assertHasCode(t, errs, "name", "minLength")
		assertHasCode(t, errs, "age", "maximum")
		assertHasCode(t, errs, "tags", "minItems")
	})

	t.Run("Should report an invalid email format", func(t *testing.T) {
		errs := Validate(map[string]any{"name": "ab", "email": "not-an-email"}, schema)
		assertHasCode(t, errs, "email", "format")
	})

	t.Run("Should report a value outside its enum", func(t *testing.T) {
		errs := Validate(map[string]any{"name": "ab", "role": "superadmin"}, schema)
		assertHasCode(t, errs, "role", "enum")
	})

	t.Run("Should apply a default for a missing optional field", func(t *testing.T) {
		args := map[string]any{"name": "ab"}
		errs := Validate(args, schema)
		assert.Empty(t, errs)
		assert.Equal(t, "user", args["role"])
	})

	t.Run("Should reject additional properties when the schema forbids them", func(t *testing.T) {
		strict := map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"name": map[string]any{"type": "string"}},
			"additionalProperties": false,
		}
		errs := Validate(map[string]any{"name": "a", "extra": "x"}, strict)
		assertHasCode(t, errs, "extra", "additionalProperties")
	})
}

func assertHasCode(t *testing.T, errs []ValidationError, path, code string) {
	t.Helper()
	for _, e := range errs {
		if e.Path == path && e.Code == code {
			return
		}
	}
	t.Fatalf("expected a %s error on %q, got %+v", code, path, errs)
}
