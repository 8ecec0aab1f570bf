// Package jsondb provides a minimal embedded document store backed by JSON
// files.
//
// # Overview
//
// A [Database] maps each named [Collection] to the file <baseDir>/<name>.json,
// which holds a JSON array of objects. A [Record] is one of those objects,
// with its field order preserved.
//
// # Read-Modify-Write
//
// Each operation loads the whole file, computes its result in memory and,
// for [Collection.Add], [Collection.Del] and [Collection.Update], rewrites
// the whole file. Nothing is cached between calls. There is no locking and
// no temp-file swap: the store is meant for a single process with a single
// writer.
//
// # Filters
//
// Selection uses a [Filter], either a [Pattern] of fields that must be
// strictly equal, or a [Predicate] function. A nil Filter selects everything.
//
// # File Format
//
// Files are written compact by default, or with 2-space indentation when
// config.Config.PrettyJSON is set.
package jsondb
