package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for envwatch.yml. The Config struct
// is reflected without its Extensions field; each entry of extensions is
// reflected and attached as a top-level property, and any other top-level key
// is allowed.
func GenerateSchema(extensions map[string]interface{}) ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	type BaseConfig struct {
		Version  string         `yaml:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
		Root     string         `yaml:"root,omitempty" jsonschema:"description=Directory whose subdirectories are environments"`
		Exclude  []string       `yaml:"exclude,omitempty" jsonschema:"description=Patterns of environment names to ignore"`
		Watch    WatchConfig    `yaml:"watch,omitempty" jsonschema:"description=Change detection settings"`
		Refresh  RefreshConfig  `yaml:"refresh,omitempty" jsonschema:"description=Refresh worker pool settings"`
		Queries  QueriesConfig  `yaml:"queries,omitempty" jsonschema:"description=External query programs"`
		Snapshot SnapshotConfig `yaml:"snapshot,omitempty" jsonschema:"description=Registry snapshot persistence"`
		Daemon   DaemonConfig   `yaml:"daemon,omitempty" jsonschema:"description=Daemon settings"`
	}

	schema := r.Reflect(&BaseConfig{})
	schema.Title = "envwatch Configuration"
	schema.Description = "Schema for envwatch.yml."
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Required = nil

	for key, target := range extensions {
		ext := &jsonschema.Reflector{
			AllowAdditionalProperties: true,
			ExpandedStruct:            true,
			DoNotReference:            true,
			FieldNameTag:              "yaml",
		}
		extSchema := ext.Reflect(target)
		extSchema.Version = ""
		extSchema.ID = ""
		extSchema.Required = nil
		schema.Properties.Set(key, extSchema)
	}

	// Unknown top-level keys are extensions owned by other tools.
	schema.AdditionalProperties = jsonschema.TrueSchema

	return json.MarshalIndent(schema, "", "  ")
}
