package adapter

import (
	"fmt"
	"regexp"
	"time"
)

// ValidationError is one aggregated parameter failure.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidateSchema checks schema for the registration-time consistency rules
// configs are rejected for: minimum>maximum, minLength>maxLength,
// minItems>maxItems, a required name absent from properties, and a
// non-object top-level schema.
func ValidateSchema(schema map[string]any) error {
	if schema == nil {
		return nil
	}
	if t, ok := schema["type"]; ok && t != "object" {
		return fmt.Errorf("top-level parameter schema must be type object, got %v", t)
	}
	if err := checkMinMax(schema, "minimum", "maximum"); err != nil {
		return err
	}
	if err := checkMinMax(schema, "minLength", "maxLength"); err != nil {
		return err
	}
	if err := checkMinMax(schema, "minItems", "maxItems"); err != nil {
		return err
	}

	props, _ := schema["properties"].(map[string]any)
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			name, _ := r.(string)
			if props == nil {
				return fmt.Errorf("required field %q has no properties entry", name)
			}
			if _, ok := props[name]; !ok {
				return fmt.Errorf("required field %q is not declared in properties", name)
			}
		}
	}
	for name, propSchema := range props {
		ps, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}
		if err := checkMinMax(ps, "minimum", "maximum"); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		if err := checkMinMax(ps, "minLength", "maxLength"); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		if err := checkMinMax(ps, "minItems", "maxItems"); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	return nil
}

func checkMinMax(schema map[string]any, minKey, maxKey string) error {
	minV, minOk := asFloat(schema[minKey])
	maxV, maxOk := asFloat(schema[maxKey])
	if minOk && maxOk && minV > maxV {
		return fmt.Errorf("%s (%v) cannot exceed %s (%v)", minKey, minV, maxKey, maxV)
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks args against schema, applying defaults for missing
// optional fields in place, and aggregates every violation it finds instead
// of stopping at the first.
func Validate(args map[string]any, schema map[string]any) []ValidationError {
	if args == nil {
		args = map[string]any{}
	}
	var errs []ValidationError
	validateObject("", args, schema, &errs)
	return errs
}

func validateObject(path string, obj map[string]any, schema map[string]any, errs *[]ValidationError) {
	props, _ := schema["properties"].(map[string]any)
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			name, _ := r.(string)
			if _, present := obj[name]; !present {
				*errs = append(*errs, ValidationError{
					Path: joinPath(path, name), Message: "required field is missing", Code: "required",
				})
			}
		}
	}

	for name, propSchema := range props {
		ps, _ := propSchema.(map[string]any)
		val, present := obj[name]
		if !present {
			if def, ok := ps["default"]; ok {
				obj[name] = def
			}
			continue
		}
		validateValue(joinPath(path, name), val, ps, errs)
	}

	if additional, ok := schema["additionalProperties"]; ok {
		if allowed, isBool := additional.(bool); isBool && !allowed {
			for name := range obj {
				if _, declared := props[name]; !declared {
					*errs = append(*errs, ValidationError{
						Path: joinPath(path, name), Message: "additional property not allowed", Code: "additionalProperties",
					})
				}
			}
		}
	}
}

func validateValue(path string, val any, schema map[string]any, errs *[]ValidationError) {
	if schema == nil {
		return
	}
	if t, ok := schema["type"].(string); ok && !matchesType(val, t) {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected type %s", t), Code: "type"})
		return
	}

	if enum, ok := schema["enum"].([]any); ok && !inEnum(val, enum) {
		*errs = append(*errs, ValidationError{Path: path, Message: "value not in enum", Code: "enum"})
	}

	switch v := val.(type) {
	case string:
		validateString(path, v, schema, errs)
	case float64:
		validateNumber(path, v, schema, errs)
	case []any:
		validateArray(path, v, schema, errs)
	case map[string]any:
		validateObject(path, v, schema, errs)
	}
}

func matchesType(val any, t string) bool {
	switch t {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		_, ok := val.(float64)
		return ok
	case "integer":
		f, ok := val.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	case "array":
		_, ok := val.([]any)
		return ok
	case "null":
		return val == nil
	default:
		return true
	}
}

func inEnum(val any, enum []any) bool {
	for _, e := range enum {
		if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", val) {
			return true
		}
	}
	return false
}

func validateString(path, v string, schema map[string]any, errs *[]ValidationError) {
	if minLen, ok := asFloat(schema["minLength"]); ok && float64(len(v)) < minLen {
		*errs = append(*errs, ValidationError{Path: path, Message: "string too short", Code: "minLength"})
	}
	if maxLen, ok := asFloat(schema["maxLength"]); ok && float64(len(v)) > maxLen {
		*errs = append(*errs, ValidationError{Path: path, Message: "string too long", Code: "maxLength"})
	}
	if pattern, ok := schema["pattern"].(string); ok {
		if re, err := regexp.Compile(pattern); err == nil && !re.MatchString(v) {
			*errs = append(*errs, ValidationError{Path: path, Message: "does not match pattern", Code: "pattern"})
		}
	}
	if format, ok := schema["format"].(string); ok {
		if !matchesFormat(v, format) {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("invalid %s format", format), Code: "format"})
		}
	}
}

func matchesFormat(v, format string) bool {
	switch format {
	case "email":
		return emailRE.MatchString(v)
	case "date":
		_, err := time.Parse("2006-01-02", v)
		return err == nil
	case "date-time":
		_, err := time.Parse(time.RFC3339, v)
		return err == nil
	default:
		return true
	}
}

func validateNumber(path string, v float64, schema map[string]any, errs *[]ValidationError) {
	if minV, ok := asFloat(schema["minimum"]); ok && v < minV {
		*errs = append(*errs, ValidationError{Path: path, Message: "value below minimum", Code: "minimum"})
	}
	if maxV, ok := asFloat(schema["maximum"]); ok && v > maxV {
		*errs = append(*errs, ValidationError{Path: path, Message: "value above maximum", Code: "maximum"})
	}
}

func validateArray(path string, v []any, schema map[string]any, errs *[]ValidationError) {
	if minItems, ok := asFloat(schema["minItems"]); ok && float64(len(v)) < minItems {
		*errs = append(*errs, ValidationError{Path: path, Message: "too few items", Code: "minItems"})
	}
	if maxItems, ok := asFloat(schema["maxItems"]); ok && float64(len(v)) > maxItems {
		*errs = append(*errs, ValidationError{Path: path, Message: "too many items", Code: "maxItems"})
	}
	if items, ok := schema["items"].(map[string]any); ok {
		for i, item := range v {
			validateValue(fmt.Sprintf("%s[%d]", path, i), item, items, errs)
		}
	}
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
