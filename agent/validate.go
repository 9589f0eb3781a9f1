package agent

import (
	"encoding/json"
	"fmt"
	"math"
)

// validateArguments checks a raw argument payload against a tool's input
// schema. It is a minimal JSON Schema check covering malformed JSON, required
// fields, and primitive type mismatches; violations become a
// SchemaValidationError that the executor reports back to the model.
func validateArguments(tool string, schema map[string]interface{}, raw json.RawMessage) error {
	var args map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return &SchemaValidationError{Tool: tool, Detail: fmt.Sprintf("arguments are not a JSON object: %v", err)}
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if schema == nil {
		return nil
	}

	if required, ok := schema["required"].([]interface{}); ok {
		for _, f := range required {
			field, ok := f.(string)
			if !ok {
				continue
			}
			if _, exists := args[field]; !exists {
				return &SchemaValidationError{Tool: tool, Detail: "missing required field: " + field}
			}
		}
	}
	if required, ok := schema["required"].([]string); ok {
		for _, field := range required {
			if _, exists := args[field]; !exists {
				return &SchemaValidationError{Tool: tool, Detail: "missing required field: " + field}
			}
		}
	}

	properties, ok := schema["properties"].(map[string]interface{})
	if !ok || len(properties) == 0 {
		return nil
	}

	for key, value := range args {
		propDef, ok := properties[key]
		if !ok {
			continue
		}
		expected := expectedType(propDef)
		if expected == "" {
			continue
		}
		if err := checkType(value, expected); err != nil {
			return &SchemaValidationError{Tool: tool, Detail: fmt.Sprintf("field %s: %v", key, err)}
		}
	}

	return nil
}

func expectedType(definition interface{}) string {
	if def, ok := definition.(map[string]interface{}); ok {
		if value, ok := def["type"].(string); ok {
			return value
		}
	}
	return ""
}

func checkType(value interface{}, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if value == nil {
			break
		}
		if _, ok := value.(map[string]interface{}); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]interface{}); ok {
			return nil
		}
	case "null":
		if value == nil {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func isNumber(value interface{}) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value interface{}) bool {
	switch v := value.(type) {
	case int, int64:
		return true
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
