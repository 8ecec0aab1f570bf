// Describes the configuration file with JSON Schema.

package config

import (
	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of the configuration file.
//
// Additional properties are allowed since [LoadFile] tolerates unknown keys.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&Overrides{})
	s.Title = FileName
	s.Description = "Configuration of a tdbmini database, read from the working directory."
	return s
}
