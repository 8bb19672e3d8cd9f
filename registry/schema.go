package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// CheckSchemaWellFormed compiles schema as a standalone JSON Schema
// document and reports an error if it is not well-formed. This is a
// strictly separate concern from the engine-facing SchemaValidator
// middleware (registry/middleware), which intentionally stays shallow —
// this check instead guards the tool author's declared InputSchema itself,
// at Register time, grounded on registry/service.go's
// jsonschema.NewCompiler / AddResource / Compile pattern.
func CheckSchemaWellFormed(schema json.RawMessage) error {
	if len(schema) == 0 {
		// No declared schema is valid: it means "accept any JSON object",
		// matching the shallow validator's pass-through rule.
		return nil
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(schema))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("registry: input schema is not valid JSON: %w", err)
	}

	c := jsonschema.NewCompiler()
	const resourceName = "inputSchema.json"
	if err := c.AddResource(resourceName, doc); err != nil {
		return fmt.Errorf("registry: input schema is not a valid JSON Schema resource: %w", err)
	}
	if _, err := c.Compile(resourceName); err != nil {
		return fmt.Errorf("registry: input schema failed to compile: %w", err)
	}
	return nil
}
