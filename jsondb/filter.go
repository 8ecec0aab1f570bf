// Selects records for Get, Del, Update and Count.

package jsondb

import (
	"fmt"
)

// Filter selects records. It is either a [Pattern] or a [Predicate]. A nil
// Filter selects every record.
type Filter interface {
	compile() (matcher, error)
}

type matcher func(r *Record) bool

// Pattern selects records whose fields are strictly equal to every entry of
// the pattern. Fields absent from the pattern are unconstrained, so an empty
// pattern selects everything.
//
// Values are compared after conversion to JSON: int(1) matches a stored 1
// but not "1". Only null, booleans, numbers and strings can match; objects
// and arrays in a pattern never match anything.
type Pattern map[string]any

// Predicate selects records for which it returns true. A nil Predicate
// selects every record.
type Predicate func(r *Record) bool

func (p Pattern) compile() (matcher, error) {
	if len(p) == 0 {
		return matchAll, nil
	}
	want := make(map[string]any, len(p))
	for k, v := range p {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern field %q: %w", ErrSerialization, k, err)
		}
		want[k] = n
	}
	return func(r *Record) bool {
		for k, w := range want {
			got, ok := r.Get(k)
			if !ok || !strictEqual(got, w) {
				return false
			}
		}
		return true
	}, nil
}

func (p Predicate) compile() (matcher, error) {
	if p == nil {
		return matchAll, nil
	}
	return matcher(p), nil
}

func matchAll(*Record) bool { return true }

func compileFilter(f Filter) (matcher, error) {
	if f == nil {
		return matchAll, nil
	}
	return f.compile()
}
