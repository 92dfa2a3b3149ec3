// Package validation checks op payload documents against their JSON Schemas
// before they are handed to a script.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/deno-lib/oned/application/schema"
	"github.com/deno-lib/oned/domain/entities"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaSource returns the JSON Schema document for op.
type SchemaSource func(op string) ([]byte, error)

// PayloadValidator validates payloads using JSON schemas. Compiled schemas
// are cached per op.
type PayloadValidator struct {
	source   SchemaSource
	compiler *jsonschema.Compiler
	schemas  map[string]*jsonschema.Schema
	mu       sync.Mutex
}

// NewPayloadValidator creates a validator. A nil source uses the built-in
// payload schemas.
func NewPayloadValidator(source SchemaSource) *PayloadValidator {
	if source == nil {
		source = schema.PayloadSchema
	}
	return &PayloadValidator{
		source:   source,
		compiler: jsonschema.NewCompiler(),
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

// Validate checks payload against op's schema. The returned error reports a
// problem with the schema or a payload that is not JSON; schema violations
// are reported in the result.
func (v *PayloadValidator) Validate(op string, payload []byte) (*entities.ValidationResult, error) {
	sch, err := v.compile(op)
	if err != nil {
		return nil, err
	}

	var obj interface{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("%s payload is not valid JSON: %w", op, err)
	}

	result := &entities.ValidationResult{Valid: true}
	if err := sch.Validate(obj); err != nil {
		result.Valid = false

		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			result.Errors = append(result.Errors, entities.ValidationError{Message: err.Error()})
			return result, nil
		}
		for _, leaf := range leaves(ve) {
			result.Errors = append(result.Errors, entities.ValidationError{
				Field:   leaf.InstanceLocation,
				Message: leaf.Message,
			})
		}
	}
	return result, nil
}

func (v *PayloadValidator) compile(op string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.schemas[op]; ok {
		return sch, nil
	}

	doc, err := v.source(op)
	if err != nil {
		return nil, err
	}

	url := "https://oned.invalid/schemas/" + op + ".json"
	if err := v.compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource for %s: %w", op, err)
	}
	sch, err := v.compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", op, err)
	}
	v.schemas[op] = sch
	return sch, nil
}

// leaves flattens a validation error tree to its most specific causes.
func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, leaves(cause)...)
	}
	return out
}
