package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema derives a JSON Schema from a Go struct's fields and
// jsonschema tags. Additional properties are disallowed so the model cannot
// invent argument names.
func GenerateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(&v)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
