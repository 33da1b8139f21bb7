// Package store adapts an external document store to the four primitives the
// application depends on: keyed reads/writes, shallow-merge updates, ordered
// range queries over a parent path, and an atomic conditional set. No
// multi-path atomicity is assumed anywhere above this interface.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
)

// Document is one stored record together with the key it lives under.
type Document struct {
	Key   string
	Value json.RawMessage
}

// RangeOptions bounds a RangeQuery. Start and End are inclusive bounds on
// the order field's string value. FromEnd keeps the last Limit documents of
// the range instead of the first; results are ascending either way.
type RangeOptions struct {
	Start   *string
	End     *string
	Limit   int
	FromEnd bool
}

type Store interface {
	// Read returns the document at path, or found=false when absent.
	Read(ctx context.Context, path string) (json.RawMessage, bool, error)
	// Write sets the document at path, replacing any previous value.
	Write(ctx context.Context, path string, value any) error
	// Update shallow-merges fields into the document at path, creating the
	// document if it does not exist.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the document at path. Deleting an absent path is not an
	// error.
	Delete(ctx context.Context, path string) error
	// RangeQuery returns the immediate children of parent ordered by the
	// given field (document key as tiebreak).
	RangeQuery(ctx context.Context, parent, orderField string, opts RangeOptions) ([]Document, error)
	// ConditionalSet writes value at path only if the path is currently
	// absent. When the write loses, committed is false and current holds the
	// present value.
	ConditionalSet(ctx context.Context, path string, value any) (committed bool, current json.RawMessage, err error)
}

// Join builds a path from segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// Split breaks a path into its parent and final key.
func Split(path string) (parent, key string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// orderValue extracts the order field's value from a document as a string.
// Missing or non-string fields sort first, as empty.
func orderValue(doc Document, field string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc.Value, &m); err != nil {
		return ""
	}
	raw, ok := m[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// applyRange filters, orders and limits documents per opts. Shared by the
// backends that cannot push the range down to the store itself.
func applyRange(docs []Document, orderField string, opts RangeOptions) []Document {
	filtered := make([]Document, 0, len(docs))
	for _, doc := range docs {
		v := orderValue(doc, orderField)
		if opts.Start != nil && v < *opts.Start {
			continue
		}
		if opts.End != nil && v > *opts.End {
			continue
		}
		filtered = append(filtered, doc)
	}

	sort.Slice(filtered, func(i, j int) bool {
		vi, vj := orderValue(filtered[i], orderField), orderValue(filtered[j], orderField)
		if vi != vj {
			return vi < vj
		}
		return filtered[i].Key < filtered[j].Key
	})

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		if opts.FromEnd {
			filtered = filtered[len(filtered)-opts.Limit:]
		} else {
			filtered = filtered[:opts.Limit]
		}
	}
	return filtered
}
