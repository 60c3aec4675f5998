package logging

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema returns the JSON Schema of the `logging` extension in
// storyview.yml.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "Storyview Logging Configuration"
	schema.Description = "Schema for the 'logging' extension in storyview.yml."

	// Every logging key has a default.
	schema.Required = nil

	return json.MarshalIndent(schema, "", "  ")
}
