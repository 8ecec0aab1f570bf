package jsondb

import "errors"

var (
	// ErrSerialization is returned when a record or a pattern value cannot be
	// encoded to JSON, for example because it contains a cycle. Nothing is
	// written when it is returned.
	ErrSerialization = errors.New("cannot serialize record")
	// ErrStorage wraps filesystem failures. The underlying *fs.PathError is
	// kept in the chain.
	ErrStorage = errors.New("storage failure")
	// ErrCorruptFile is returned when a collection file is not a JSON array of
	// objects.
	ErrCorruptFile = errors.New("corrupt collection file")
	// ErrInvalidRecord is returned when a nil record is passed to a mutator.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidName is returned for a collection name that cannot be mapped
	// to a file inside the base directory.
	ErrInvalidName = errors.New("invalid collection name")
	// ErrNotObject is returned when a value does not encode to a JSON object.
	ErrNotObject = errors.New("value is not a JSON object")
)
