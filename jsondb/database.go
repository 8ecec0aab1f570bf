// Provides Database, the entry point producing collections.

package jsondb

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/maruel/tdbmini/config"
)

// Database groups the collections stored under one base directory.
type Database struct {
	cfg config.Config
	dir string
}

// Open resolves the configuration from the defaults, the [config.FileName]
// file in the working directory and overrides, in that order, then opens the
// database.
//
// A malformed configuration file fails with [config.ErrParse].
func Open(overrides ...config.Overrides) (*Database, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	file, err := config.Load(wd)
	if err != nil {
		return nil, err
	}
	if file.IsZero() {
		slog.Debug("No settings from config file", "dir", wd, "file", config.FileName)
	}
	return OpenWith(config.Resolve(append([]config.Overrides{file}, overrides...)...))
}

// OpenWith opens the database described by cfg, creating its base directory
// if needed. No configuration file is read.
func OpenWith(cfg config.Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("%w: failed to create base directory: %w", ErrStorage, err)
	}
	slog.Debug("Opened database", "dir", dir, "pretty", cfg.PrettyJSON)
	return &Database{cfg: cfg, dir: dir}, nil
}

// Config returns the resolved configuration.
func (d *Database) Config() config.Config {
	return d.cfg
}

// Dir returns the absolute base directory.
func (d *Database) Dir() string {
	return d.dir
}

// Collection returns a handle on the collection name, creating its file if
// needed. Each call returns a new handle; all handles of the same name share
// the file.
func (d *Database) Collection(name string) (*Collection, error) {
	return newCollection(name, d.dir, d.cfg.PrettyJSON)
}

// Collections lists the collection names found in the base directory, sorted.
func (d *Database) Collections() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list collections: %w", ErrStorage, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok && validateName(name) == nil {
			names = append(names, name)
		}
	}
	// ReadDir orders by file name, and "a-b.json" sorts before "a.json".
	slices.Sort(names)
	return names, nil
}

// Drop deletes the file of the collection name. Dropping a collection that
// does not exist is not an error.
func (d *Database) Drop(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	path := filepath.Join(d.dir, name+".json")
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: failed to drop collection: %w", ErrStorage, err)
	}
	slog.Debug("Dropped collection", "name", name)
	return nil
}
