// Converts between JSON text and the dynamic values held by records.

package jsondb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// decodeValue reads the next JSON value from dec.
//
// Objects become *Record with their field order intact, arrays become []any
// and scalars are nil, bool, json.Number or string. dec must come from
// newDecoder so numbers keep their exact text.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		fields := orderedmap.New[string, any]()
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("invalid object key %v", tok)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			fields.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return &Record{fields: fields}, nil
	case '[':
		items := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", rune(d))
	}
}

func newDecoder(data []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec
}

// decodeOne decodes data which must hold exactly one JSON value.
func decodeOne(data []byte) (any, error) {
	dec := newDecoder(data)
	v, err := decodeValue(dec)
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeRecords parses the content of a collection file.
func decodeRecords(data []byte) ([]*Record, error) {
	dec := newDecoder(data)
	tok, err := dec.Token()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("top-level value is not an array")
	}
	records := []*Record{}
	for i := 0; dec.More(); i++ {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		r, ok := v.(*Record)
		if !ok {
			return nil, fmt.Errorf("element %d is %s: %w", i, kindOf(v), ErrNotObject)
		}
		records = append(records, r)
	}
	if _, err := dec.Token(); err != nil {
		return nil, unexpectedEOF(err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	return records, nil
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing data after offset %d", dec.InputOffset())
	}
	return nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// normalize converts an arbitrary Go value to its decoded JSON form, so that
// int(1), float64(1) and a stored 1 compare equal.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeOne(data)
}

// strictEqual compares two decoded JSON values. Only scalars of the same type
// can be equal; objects and arrays never are.
func strictEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case json.Number:
		bv, ok := b.(json.Number)
		return ok && numberEqual(av, bv)
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		return false
	}
}

// numberEqual compares two JSON number literals by value without rounding
// them to float64, so 1, 1.0 and 1e0 are equal but 9007199254740993 and
// 9007199254740992 are not.
func numberEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	// Enough bits to tell apart any two decimals with this many digits.
	prec := uint(4*max(len(a), len(b)) + 64)
	x, _, err := big.ParseFloat(string(a), 10, prec, big.ToNearestEven)
	if err != nil {
		return false
	}
	y, _, err := big.ParseFloat(string(b), 10, prec, big.ToNearestEven)
	if err != nil {
		return false
	}
	return x.Cmp(y) == 0
}

// numberTag returns the YAML tag matching a JSON number literal.
func numberTag(n json.Number) string {
	if strings.ContainsAny(string(n), ".eE") {
		return "!!float"
	}
	return "!!int"
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case json.Number:
		return "a number"
	case string:
		return "a string"
	case []any:
		return "an array"
	case *Record:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

var (
	recordType    = reflect.TypeFor[*Record]()
	recordValType = reflect.TypeFor[Record]()
	fieldsType    = reflect.TypeFor[*orderedmap.OrderedMap[string, any]]()
)

// visit identifies a reference on the current encoding path.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// checkCycles returns an error if v references itself.
//
// encoding/json only notices cycles through plain maps and slices after a
// thousand levels and not at all across Marshaler boundaries, so records are
// walked explicitly before encoding. Shared references that do not form a
// cycle are accepted.
func checkCycles(v any) error {
	return walkCycles(reflect.ValueOf(v), map[visit]struct{}{})
}

func walkCycles(v reflect.Value, path map[visit]struct{}) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if v.Kind() == reflect.Slice {
			if v.Type().Elem().Kind() == reflect.Uint8 {
				return nil
			}
			key.len = v.Len()
		}
		if _, ok := path[key]; ok {
			return fmt.Errorf("%w: encountered a cycle via %s", ErrSerialization, v.Type())
		}
		path[key] = struct{}{}
		defer delete(path, key)
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.Type() == recordType && v.CanInterface() {
			r, _ := v.Interface().(*Record)
			return walkRecord(*r, path)
		}
		return walkCycles(v.Elem(), path)
	case reflect.Interface:
		return walkCycles(v.Elem(), path)
	case reflect.Map:
		for it := v.MapRange(); it.Next(); {
			if err := walkCycles(it.Value(), path); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if err := walkCycles(v.Index(i), path); err != nil {
				return err
			}
		}
	case reflect.Struct:
		if v.Type() == recordValType && v.CanInterface() {
			r, _ := v.Interface().(Record)
			return walkRecord(r, path)
		}
		t := v.Type()
		for i := range t.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := walkCycles(v.Field(i), path); err != nil {
				return err
			}
		}
	}
	return nil
}

// walkRecord visits the fields of r. Records are keyed by their field storage
// so a Record copied by value into itself is caught like a pointer would be.
func walkRecord(r Record, path map[visit]struct{}) error {
	if r.fields == nil {
		return nil
	}
	key := visit{ptr: reflect.ValueOf(r.fields).Pointer(), typ: fieldsType}
	if _, ok := path[key]; ok {
		return fmt.Errorf("%w: encountered a cycle via %s", ErrSerialization, recordType)
	}
	path[key] = struct{}{}
	defer delete(path, key)
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		if err := walkCycles(reflect.ValueOf(p.Value), path); err != nil {
			return err
		}
	}
	return nil
}
