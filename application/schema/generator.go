// Package schema renders JSON Schema documents for op payloads and the
// runtime configuration.
package schema

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"sort"

	"github.com/deno-lib/oned/application/config"
	"github.com/deno-lib/oned/domain/entities"
	"github.com/invopop/jsonschema"
)

// ErrNoPayload is returned for ops that take no auxiliary payload.
var ErrNoPayload = stdErrors.New("op takes no payload")

// ConfigName is the schema name of the runtime configuration.
const ConfigName = "config"

// payloads maps op names to the Go type of their auxiliary payload.
var payloads = map[string]any{
	"run":  entities.RunRequest{},
	"kill": entities.KillRequest{},
}

// GenerateSchema creates a JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12).
func GenerateSchema(v interface{}) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
		Anonymous:      true, // No $id, schemas are registered under op names
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}

// PayloadSchema returns the schema of op's auxiliary payload.
func PayloadSchema(op string) ([]byte, error) {
	v, ok := payloads[op]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNoPayload)
	}
	return GenerateSchema(v)
}

// ConfigSchema returns the schema of the runtime configuration.
func ConfigSchema() ([]byte, error) {
	return GenerateSchema(config.Config{})
}

// PayloadOps lists the ops that accept a payload, sorted by name.
func PayloadOps() []string {
	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
