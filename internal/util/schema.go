package util

import (
	"fmt"
	"slices"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// StringArgs builds a minimal object schema where every named argument is a
// required string. Most command capabilities take plain text arguments.
func StringArgs(names ...string) map[string]any {
	props := make(map[string]any, len(names))
	for _, n := range names {
		props[n] = map[string]any{"type": "string"}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   slices.Clone(names),
	}
}

// ValidateParameters checks args against a minimal JSON schema: required
// fields, primitive types and string enums. Unknown fields are allowed since
// model generated arguments often carry extras.
func ValidateParameters(args map[string]any, schema map[string]any) error {
	if schema == nil {
		return nil
	}

	for _, name := range requiredFields(schema["required"]) {
		if _, ok := args[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range args {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}

		if expected, _ := prop["type"].(string); !matchesType(value, expected) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			}
		}

		if enum, ok := prop["enum"].([]any); ok && value != nil && !slices.Contains(enum, value) {
			return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("value not in %v", enum)}
		}
	}

	return nil
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func matchesType(value any, expected string) bool {
	if value == nil {
		return true
	}

	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // decoded JSON numbers
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
