// Defines Record, the ordered JSON object stored in collections.

package jsondb

import (
	"encoding/json"
	"fmt"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Record is a single stored JSON object.
//
// Fields keep their insertion order, and records loaded from a collection
// keep the order found in the file, including in nested objects. Values read
// back from a collection are nil, bool, json.Number, string, []any or
// *Record. Numbers keep their literal text, so large integer ids survive a
// rewrite unchanged.
//
// The zero value is an empty record ready to use.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// Field is a key/value pair used to build a [Record].
type Field struct {
	Key   string
	Value any
}

// F is shorthand for Field{Key: key, Value: value}.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// NewRecord returns a record holding fields in order. A repeated key keeps
// its first position and its last value.
func NewRecord(fields ...Field) *Record {
	r := &Record{fields: orderedmap.New[string, any](len(fields))}
	for _, f := range fields {
		r.fields.Set(f.Key, f.Value)
	}
	return r
}

// FromValue encodes v to JSON and returns it as a record.
//
// It fails with [ErrNotObject] when v does not encode to a JSON object, for
// example for slices and scalars.
func FromValue(v any) (*Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	decoded, err := decodeOne(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	r, ok := decoded.(*Record)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, kindOf(decoded))
	}
	return r, nil
}

// Decode converts a record into a T, typically a struct with json tags.
func Decode[T any](r *Record) (T, error) {
	var out T
	data, err := json.Marshal(r)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode record: %w", err)
	}
	return out, nil
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Get returns the value of a field.
func (r *Record) Get(key string) (any, bool) {
	if r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Set sets a field. An existing field keeps its position; a new field is
// appended.
func (r *Record) Set(key string, value any) {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
	r.fields.Set(key, value)
}

// Delete removes a field and reports whether it was present.
func (r *Record) Delete(key string) bool {
	if r.fields == nil {
		return false
	}
	_, ok := r.fields.Delete(key)
	return ok
}

// Keys returns the field names in order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	for k := range r.All() {
		keys = append(keys, k)
	}
	return keys
}

// All returns an iterator over the fields in order.
func (r *Record) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if r.fields == nil {
			return
		}
		for p := r.fields.Oldest(); p != nil; p = p.Next() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Clone returns a shallow copy: nested values are shared.
func (r *Record) Clone() *Record {
	c := &Record{fields: orderedmap.New[string, any](r.Len())}
	for k, v := range r.All() {
		c.fields.Set(k, v)
	}
	return c
}

// merged returns a shallow copy of r with the fields of patch applied on top.
func (r *Record) merged(patch *Record) *Record {
	c := r.Clone()
	for k, v := range patch.All() {
		c.fields.Set(k, v)
	}
	return c
}

// String returns the compact JSON encoding of the record.
func (r *Record) String() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// MarshalJSON implements [json.Marshaler]. The value receiver lets a Record
// stored by value inside another record encode its fields.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil || r.fields.Len() == 0 {
		return []byte("{}"), nil
	}
	if err := checkCycles(r); err != nil {
		return nil, err
	}
	return r.fields.MarshalJSON()
}

// UnmarshalJSON implements [json.Unmarshaler]. A JSON null leaves the record
// untouched.
func (r *Record) UnmarshalJSON(data []byte) error {
	v, err := decodeOne(data)
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		return nil
	case *Record:
		r.fields = t.fields
		return nil
	default:
		return fmt.Errorf("%w: got %s", ErrNotObject, kindOf(v))
	}
}

// MarshalYAML implements yaml.Marshaler, keeping field order. Numbers are
// emitted with their literal text.
func (r Record) MarshalYAML() (any, error) {
	if err := checkCycles(r); err != nil {
		return nil, err
	}
	return r.yamlNode()
}

func (r Record) yamlNode() (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if r.fields == nil {
		return n, nil
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		v, err := yamlValue(p.Value)
		if err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Key}, v)
	}
	return n, nil
}

func yamlValue(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *Record:
		if t != nil {
			return t.yamlNode()
		}
	case Record:
		return t.yamlNode()
	case json.Number:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: numberTag(t), Value: string(t)}, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			c, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return n, nil
}
