// Package middleware implements the three built-in tool middlewares named
// by §4.C: SchemaValidator, PermissionChecker, and OutputFormatter.
package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/tools"
)

type jsonSchema struct {
	Type     string                 `json:"type"`
	Required []string               `json:"required"`
	Properties map[string]jsonSchemaProp `json:"properties"`
}

type jsonSchemaProp struct {
	Type string `json:"type"`
}

// SchemaValidator is a cheap guard-rail, not a full JSON Schema
// implementation (§4.C.1): schemas without a top-level "type" pass
// through unchecked; a "type": "object" schema requires the input to be a
// JSON object, required properties to be present, and declared property
// types to match one of string/integer/number/boolean/array/object/null.
func SchemaValidator(schemaByTool func(name string) json.RawMessage) tools.Middleware {
	return func(name string, input json.RawMessage, tc *model.ToolContext, next tools.Next) (model.ToolOutput, error) {
		raw := schemaByTool(name)
		if len(raw) > 0 {
			var schema jsonSchema
			if err := json.Unmarshal(raw, &schema); err == nil && schema.Type == "object" {
				if err := validateObject(schema, input); err != nil {
					return model.ToolOutput{}, err
				}
			}
		}
		return next(name, input, tc)
	}
}

func validateObject(schema jsonSchema, input json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(input, &obj); err != nil {
		return tools.InvalidInput("input must be a JSON object")
	}
	for _, req := range schema.Required {
		if _, ok := obj[req]; !ok {
			return tools.InvalidInput(fmt.Sprintf("missing required field %q", req))
		}
	}
	for field, prop := range schema.Properties {
		raw, ok := obj[field]
		if !ok || prop.Type == "" {
			continue
		}
		if err := checkType(field, prop.Type, raw); err != nil {
			return err
		}
	}
	return nil
}

func checkType(field, want string, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return tools.InvalidInput(fmt.Sprintf("field %q is not valid JSON", field))
	}
	ok := false
	switch want {
	case "string":
		_, ok = v.(string)
	case "boolean":
		_, ok = v.(bool)
	case "integer":
		n, isNum := v.(float64)
		ok = isNum && n == float64(int64(n))
	case "number":
		_, ok = v.(float64)
	case "array":
		_, ok = v.([]any)
	case "object":
		_, ok = v.(map[string]any)
	case "null":
		ok = v == nil
	default:
		// Unknown declared type: pass through rather than reject, staying
		// on the "cheap guard-rail" side of the contract.
		ok = true
	}
	if !ok {
		return tools.InvalidInput(fmt.Sprintf("field %q must be of type %q", field, want))
	}
	return nil
}
