// Implements the tdbmini subcommands.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/maruel/ksid"
	"github.com/maruel/tdbmini/config"
	"github.com/maruel/tdbmini/jsondb"
	"gopkg.in/yaml.v3"
)

// whereFlag accumulates -where key=value pairs into a pattern.
type whereFlag jsondb.Pattern

func (w *whereFlag) String() string {
	keys := make([]string, 0, len(*w))
	for k := range *w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, (*w)[k]))
	}
	return strings.Join(parts, ",")
}

func (w *whereFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	if *w == nil {
		*w = whereFlag{}
	}
	(*w)[k] = parseValue(v)
	return nil
}

// filter returns the pattern, or nil when no -where was given.
func (w *whereFlag) filter() jsondb.Filter {
	if len(*w) == 0 {
		return nil
	}
	return jsondb.Pattern(*w)
}

// parseValue interprets s as JSON when it is valid JSON, otherwise as a
// plain string. "1" is a number, "true" a boolean and "bob" a string.
// Numbers stay json.Number so large ids are matched exactly.
func parseValue(s string) any {
	if !json.Valid([]byte(s)) {
		return s
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return s
	}
	return v
}

// parseRecord parses a JSON object given on the command line.
func parseRecord(s string) (*jsondb.Record, error) {
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("invalid JSON: %q", s)
	}
	return jsondb.FromValue(json.RawMessage(s))
}

func newFlagSet(name string, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	return fs
}

func cmdGet(w io.Writer, db *jsondb.Database, args []string) error {
	fs := newFlagSet("get", w)
	var where whereFlag
	fs.Var(&where, "where", "Only records where key equals value (repeatable)")
	format := fs.String("format", "json", "Output format (json, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("get: expected one collection name")
	}
	c, err := db.Collection(fs.Arg(0))
	if err != nil {
		return err
	}
	records, err := c.Get(where.filter())
	if err != nil {
		return err
	}
	switch *format {
	case "json":
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("get: unknown format %q", *format)
	}
}

func cmdAdd(w io.Writer, db *jsondb.Database, args []string) error {
	fs := newFlagSet("add", w)
	withID := fs.Bool("id", false, "Set a generated sortable \"id\" field on records that have none")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("add: expected a collection name and at least one JSON object")
	}
	records := make([]*jsondb.Record, 0, fs.NArg()-1)
	for _, arg := range fs.Args()[1:] {
		r, err := parseRecord(arg)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		if *withID {
			if _, ok := r.Get("id"); !ok {
				r.Set("id", ksid.NewID().String())
			}
		}
		records = append(records, r)
	}
	c, err := db.Collection(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := c.Add(records...); err != nil {
		return err
	}
	for _, r := range records {
		if _, err := fmt.Fprintln(w, r); err != nil {
			return err
		}
	}
	return nil
}

func cmdDel(w io.Writer, db *jsondb.Database, args []string) error {
	fs := newFlagSet("del", w)
	var where whereFlag
	fs.Var(&where, "where", "Only records where key equals value (repeatable)")
	all := fs.Bool("all", false, "Delete every record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("del: expected one collection name")
	}
	if len(where) == 0 && !*all {
		return errors.New("del: use -where or -all")
	}
	c, err := db.Collection(fs.Arg(0))
	if err != nil {
		return err
	}
	n, err := c.Count(where.filter())
	if err != nil {
		return err
	}
	if err := c.Del(where.filter()); err != nil {
		return err
	}
	slog.Info("Deleted records", "collection", c.Name(), "count", n)
	_, err = fmt.Fprintf(w, "%d\n", n)
	return err
}

func cmdUpdate(w io.Writer, db *jsondb.Database, args []string) error {
	fs := newFlagSet("update", w)
	var where whereFlag
	fs.Var(&where, "where", "Only records where key equals value (repeatable)")
	all := fs.Bool("all", false, "Update every record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("update: expected a collection name and one JSON patch")
	}
	if len(where) == 0 && !*all {
		return errors.New("update: use -where or -all")
	}
	patch, err := parseRecord(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	c, err := db.Collection(fs.Arg(0))
	if err != nil {
		return err
	}
	n, err := c.Count(where.filter())
	if err != nil {
		return err
	}
	if err := c.Update(where.filter(), patch); err != nil {
		return err
	}
	slog.Info("Updated records", "collection", c.Name(), "count", n)
	_, err = fmt.Fprintf(w, "%d\n", n)
	return err
}

func cmdList(w io.Writer, db *jsondb.Database, args []string) error {
	if len(args) != 0 {
		return errors.New("list: unexpected arguments")
	}
	names, err := db.Collections()
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

func cmdDrop(db *jsondb.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("drop: expected one collection name")
	}
	return db.Drop(args[0])
}

func cmdWatch(ctx context.Context, w io.Writer, db *jsondb.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("watch: expected one collection name")
	}
	c, err := db.Collection(args[0])
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Watching collection", "path", c.Path())
	return c.Watch(ctx, func() {
		n, err := c.Count(nil)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read collection", "collection", c.Name(), "err", err)
			return
		}
		_, _ = fmt.Fprintf(w, "%s: %d records\n", c.Name(), n)
	})
}

func cmdSchema(w io.Writer, args []string) error {
	if len(args) != 0 {
		return errors.New("schema: unexpected arguments")
	}
	data, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
