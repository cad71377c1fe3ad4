package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema wraps a compiled JSON schema for validating a tool's bound
// parameter map. Registry.Dispatch does not consult it; parameters are
// validated only where Validate is called.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document (as raw JSON bytes) for
// later use validating tool parameters.
func CompileSchema(name string, document []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	resourceName := name + ".json"
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("tool: unmarshal schema %s: %w", name, err)
	}
	if err := compiler.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("tool: add schema resource %s: %w", name, err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("tool: compile schema %s: %w", name, err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks a bound parameter map against the schema, returning a
// descriptive error (never a panic) on mismatch.
func (s *Schema) Validate(params map[string]Param) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("tool: marshal params: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("tool: unmarshal params: %w", err)
	}
	return s.compiled.Validate(v)
}
