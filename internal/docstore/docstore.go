// Package docstore abstracts the Firestore document model behind a typed value
// union, so the sync core never probes opaque objects for timestamp-ness.
package docstore

import (
	"context"
	"time"
)

// SentinelID marks the placeholder document written when a collection is first
// initialized by the application. It is not a real record and is never mirrored.
const SentinelID = "_initialized"

// Value is a document field value: Scalar, Timestamp, Nested, or Array.
type Value interface {
	isValue()
}

// Scalar holds a plain value (string, number, bool, nil).
type Scalar struct {
	V any
}

// Timestamp holds a point in time. The Firestore adapter converts native
// timestamp objects into this form at the store boundary.
type Timestamp struct {
	T time.Time
}

// Nested holds a nested object.
type Nested map[string]Value

// Array holds an ordered list of values.
type Array []Value

func (Scalar) isValue()    {}
func (Timestamp) isValue() {}
func (Nested) isValue()    {}
func (Array) isValue()     {}

// Document is one record in a collection. ID is the document key and becomes
// the relational primary key; it is the sole identity shared across stores.
type Document struct {
	ID     string
	Fields map[string]Value
}

// ChangeKind classifies a change event.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

// String returns the event kind name for logs.
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one observed change in a watched collection. Err is set (and the
// channel subsequently closed) when the watch transport itself fails; the
// bridge logs it and stops that collection rather than resubscribing.
type Change struct {
	Kind ChangeKind
	Doc  Document
	Err  error
}

// Store is the document-store collaborator. Watch yields changes in source
// delivery order for one collection; GetAll reads a full collection snapshot.
type Store interface {
	Watch(ctx context.Context, collection string) (<-chan Change, error)
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

// StringField returns the field as a string scalar, or "" if absent or not a
// string.
func (d Document) StringField(name string) string {
	if s, ok := d.Fields[name].(Scalar); ok {
		if v, ok := s.V.(string); ok {
			return v
		}
	}
	return ""
}

// TimeField returns the field as a timestamp, or the zero time if absent or
// not a timestamp.
func (d Document) TimeField(name string) time.Time {
	if ts, ok := d.Fields[name].(Timestamp); ok {
		return ts.T
	}
	return time.Time{}
}

// NumberField returns the field as a float64 for int/float scalars, or 0.
func (d Document) NumberField(name string) float64 {
	s, ok := d.Fields[name].(Scalar)
	if !ok {
		return 0
	}
	switch v := s.V.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// NestedString returns a string leaf inside a nested object field, or "".
func (d Document) NestedString(field, key string) string {
	n, ok := d.Fields[field].(Nested)
	if !ok {
		return ""
	}
	if s, ok := n[key].(Scalar); ok {
		if v, ok := s.V.(string); ok {
			return v
		}
	}
	return ""
}
