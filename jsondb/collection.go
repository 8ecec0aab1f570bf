// Handles storage of one collection as a JSON array file.

package jsondb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maruel/tdbmini/config"
)

// Collection is a named, file-backed ordered sequence of records.
//
// Every call reads the whole file, and every mutation rewrites it. Nothing
// is cached, so several Collection values for the same name always observe
// the current file content. There is no locking: concurrent writers, in this
// process or another, can lose updates. The file is rewritten in place, so
// a crash during a write can leave it truncated.
type Collection struct {
	name   string
	path   string
	pretty bool
}

// OpenCollection opens the collection name in cfg.BaseDir, creating the
// directory and an empty collection file as needed.
//
// Most callers go through [Database.Collection] instead.
func OpenCollection(name string, cfg config.Config) (*Collection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return newCollection(name, dir, cfg.PrettyJSON)
}

func newCollection(name, dir string, pretty bool) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("%w: failed to create directory: %w", ErrStorage, err)
	}
	c := &Collection{
		name:   name,
		path:   filepath.Join(dir, name+".json"),
		pretty: pretty,
	}
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G302: data file
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return c, nil
		}
		return nil, fmt.Errorf("%w: failed to create collection file: %w", ErrStorage, err)
	}
	_, err = f.WriteString("[]")
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize collection file: %w", ErrStorage, err)
	}
	slog.Debug("Created collection", "name", name, "path", c.path)
	return c, nil
}

// validateName rejects names that would escape the base directory.
func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Path returns the absolute path of the backing file.
func (c *Collection) Path() string {
	return c.path
}

// Get returns the records selected by f, in collection order.
func (c *Collection) Get(f Filter) ([]*Record, error) {
	match, err := compileFilter(f)
	if err != nil {
		return nil, err
	}
	records, err := c.read()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Count returns the number of records selected by f.
func (c *Collection) Count(f Filter) (int, error) {
	records, err := c.Get(f)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Add appends records at the end of the collection, in order.
//
// Empty records are stored as {}. A nil record fails with
// [ErrInvalidRecord]; a record that cannot be encoded fails with
// [ErrSerialization]. In both cases the file is left untouched.
func (c *Collection) Add(records ...*Record) error {
	for i, r := range records {
		if r == nil {
			return fmt.Errorf("%w: record %d is nil", ErrInvalidRecord, i)
		}
	}
	current, err := c.read()
	if err != nil {
		return err
	}
	return c.write(append(current, records...))
}

// Del removes the records selected by f. The file is not rewritten when
// nothing matches. A nil filter empties the collection.
func (c *Collection) Del(f Filter) error {
	match, err := compileFilter(f)
	if err != nil {
		return err
	}
	records, err := c.read()
	if err != nil {
		return err
	}
	kept := make([]*Record, 0, len(records))
	for _, r := range records {
		if !match(r) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return c.write(kept)
}

// Update replaces every record selected by f with a shallow merge of the
// record and patch: patch fields win, other fields are kept. Records not
// selected are written back unchanged.
func (c *Collection) Update(f Filter, patch *Record) error {
	if patch == nil {
		return fmt.Errorf("%w: patch is nil", ErrInvalidRecord)
	}
	if err := checkCycles(patch); err != nil {
		return err
	}
	match, err := compileFilter(f)
	if err != nil {
		return err
	}
	records, err := c.read()
	if err != nil {
		return err
	}
	for i, r := range records {
		if match(r) {
			records[i] = r.merged(patch)
		}
	}
	return c.write(records)
}

func (c *Collection) read() ([]*Record, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Removed behind our back; start over from an empty collection.
			if err := c.write(nil); err != nil {
				return nil, err
			}
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: failed to read collection: %w", ErrStorage, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCorruptFile, c.path, err)
	}
	return records, nil
}

// encode serializes records in the configured format.
func (c *Collection) encode(records []*Record) ([]byte, error) {
	if records == nil {
		records = []*Record{}
	}
	var data []byte
	var err error
	if c.pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		if !errors.Is(err, ErrSerialization) {
			err = fmt.Errorf("%w: %w", ErrSerialization, err)
		}
		return nil, fmt.Errorf("failed to encode collection %q: %w", c.name, err)
	}
	return data, nil
}

// write replaces the file content. Encoding completes before the file is
// opened, so a serialization failure never truncates it.
func (c *Collection) write(records []*Record) error {
	data, err := c.encode(records)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil { //nolint:gosec // G306: data file
		return fmt.Errorf("%w: failed to write collection: %w", ErrStorage, err)
	}
	slog.Debug("Wrote collection", "name", c.name, "records", len(records), "bytes", len(data))
	return nil
}
