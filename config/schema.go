package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for storyview.yml. It reflects the
// Config struct from types.go; extension keys are left open.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Extensions such as `logging` live next to the core keys.
		AllowAdditionalProperties: true,
		// Expand struct references instead of using $ref for cleaner base schema.
		ExpandedStruct: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "Storyview Configuration"
	schema.Description = "Schema for storyview.yml."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}
