// Package config resolves the settings of a tdbmini database.
//
// The effective [Config] is built from three layers, later layers winning
// field by field: the built-in [Defaults], the optional [FileName] file in
// the working directory, and caller supplied [Overrides].
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the name of the optional configuration file looked up in the
// working directory.
const FileName = "tdb-mini.config.json"

// DefaultBaseDir is the base directory used when no layer sets one.
const DefaultBaseDir = "./tdb-mini-data"

var (
	// ErrParse is returned when the configuration file exists but is not a
	// valid JSON object with correctly typed fields.
	ErrParse = errors.New("malformed config file")
	// ErrInvalid is returned when the resolved configuration is unusable.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the effective configuration shared by all collections of a
// database.
type Config struct {
	// BaseDir is the directory holding one JSON file per collection.
	BaseDir string `json:"baseDir"`
	// PrettyJSON selects 2-space indented output instead of compact output.
	PrettyJSON bool `json:"prettyJson"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{BaseDir: DefaultBaseDir}
}

// Validate checks that the configuration can be used to open a database.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("%w: baseDir is required", ErrInvalid)
	}
	return nil
}

// Overrides is one configuration layer. A nil field leaves the value of the
// previous layer untouched.
type Overrides struct {
	BaseDir    *string `json:"baseDir,omitempty" jsonschema:"description=Directory holding one JSON file per collection"`
	PrettyJSON *bool   `json:"prettyJson,omitempty" jsonschema:"description=Write collections with 2-space indentation"`
}

// WithBaseDir returns a layer that only sets the base directory.
func WithBaseDir(dir string) Overrides {
	return Overrides{BaseDir: &dir}
}

// WithPrettyJSON returns a layer that only sets the pretty-print flag.
func WithPrettyJSON(pretty bool) Overrides {
	return Overrides{PrettyJSON: &pretty}
}

// IsZero reports whether the layer sets no field.
func (o *Overrides) IsZero() bool {
	return o.BaseDir == nil && o.PrettyJSON == nil
}

func (o *Overrides) applyTo(c *Config) {
	if o.BaseDir != nil {
		c.BaseDir = *o.BaseDir
	}
	if o.PrettyJSON != nil {
		c.PrettyJSON = *o.PrettyJSON
	}
}

// Resolve overlays the layers on top of [Defaults], in order.
func Resolve(layers ...Overrides) Config {
	c := Defaults()
	for i := range layers {
		layers[i].applyTo(&c)
	}
	return c
}

// knownKeys lists the keys understood in the configuration file.
var knownKeys = map[string]bool{
	"baseDir":    true,
	"prettyJson": true,
}

// LoadFile reads one configuration layer from path.
//
// A missing file is not an error and yields an empty layer. Unknown keys are
// ignored with a warning.
func LoadFile(path string) (Overrides, error) {
	var o Overrides
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the well-known config file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return o, nil
		}
		return o, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return o, fmt.Errorf("%w %s: %w", ErrParse, path, err)
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("%w %s: %w", ErrParse, path, err)
	}
	for k := range raw {
		if !knownKeys[k] {
			slog.Warn("Ignoring unknown config key", "path", path, "key", k)
		}
	}
	return o, nil
}

// Load reads the configuration layer from [FileName] in dir.
func Load(dir string) (Overrides, error) {
	return LoadFile(filepath.Join(dir, FileName))
}
