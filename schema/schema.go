// Package schema bridges Go types and the JSON-schema maps the
// structured output path works with.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	jsvalidate "github.com/santhosh-tekuri/jsonschema/v5"
)

// FromType derives a JSON schema map from a Go value's type, suitable
// for an agent's structured output declaration.
func FromType(v any) (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	derived := reflector.Reflect(v)
	encoded, err := json.Marshal(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to encode derived schema: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("failed to decode derived schema: %w", err)
	}
	delete(out, "$schema")
	return out, nil
}

// Validate checks a raw JSON document against a schema map.
func Validate(schemaMap map[string]any, document json.RawMessage) error {
	encoded, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	compiler := jsvalidate.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(encoded)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	var value any
	if err := json.Unmarshal(document, &value); err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}
