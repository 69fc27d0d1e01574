// Package store defines the entity store contract the integrity engine
// consumes, and the adapters that satisfy it.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Collections
const (
	Projects   = "projects"
	Tasks      = "tasks"
	Teams      = "teams"
	Earnings   = "earnings"
	Activities = "activities"
	Cascades   = "cascades"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidWrite = errors.New("invalid write operation")
	// ErrConflict is returned when a guarded update finds the document
	// changed since it was read.
	ErrConflict = errors.New("document changed concurrently")
)

// Store is a key/collection document store. Documents travel as JSON
// objects; every document carries its own "id" field.
type Store interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	// Query returns matches in id order unless OrderBy says otherwise.
	Query(ctx context.Context, collection string, filter Filter, opts ...QueryOption) ([]json.RawMessage, error)
	// Update merges fields into the top level of an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// AtomicBatch applies every op or none of them.
	AtomicBatch(ctx context.Context, ops []WriteOp) error
}

// ============================================
// Filters
// ============================================

type Operator int

const (
	// OpEq matches a top-level string field equal to the value.
	OpEq Operator = iota
	// OpContains matches a top-level string array holding the value.
	OpContains
)

type Condition struct {
	Field string
	Op    Operator
	Value string
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Condition

func Eq(field, value string) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

func Contains(field, value string) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

// Match evaluates the filter against a decoded document.
func (f Filter) Match(doc map[string]any) bool {
	for _, c := range f {
		v, ok := doc[c.Field]
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			s, ok := v.(string)
			if !ok || s != c.Value {
				return false
			}
		case OpContains:
			arr, ok := v.([]any)
			if !ok {
				return false
			}
			found := false
			for _, item := range arr {
				if s, ok := item.(string); ok && s == c.Value {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ============================================
// Query options
// ============================================

type QueryOptions struct {
	// SortField is a top-level field; numbers sort numerically, strings
	// lexically. Ties fall back to id order.
	SortField  string
	Descending bool
	// Limit of zero means no limit.
	Limit int
}

type QueryOption func(*QueryOptions)

func OrderBy(field string, descending bool) QueryOption {
	return func(o *QueryOptions) {
		o.SortField = field
		o.Descending = descending
	}
}

func Limit(n int) QueryOption {
	return func(o *QueryOptions) {
		if n > 0 {
			o.Limit = n
		}
	}
}

func collectOptions(opts []QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ============================================
// Writes
// ============================================

type WriteKind int

const (
	// WriteSet inserts or fully replaces a document.
	WriteSet WriteKind = iota
	// WriteUpdate merges fields into an existing document.
	WriteUpdate
	// WriteDelete removes a document; deleting a missing document is a no-op.
	WriteDelete
)

type WriteOp struct {
	Kind       WriteKind
	Collection string
	ID         string
	Doc        any
	Fields     map[string]any
	// Guard makes an update conditional on a top-level string field. A
	// missing field reads as "".
	Guard *Condition
}

func SetOp(collection, id string, doc any) WriteOp {
	return WriteOp{Kind: WriteSet, Collection: collection, ID: id, Doc: doc}
}

func UpdateOp(collection, id string, fields map[string]any) WriteOp {
	return WriteOp{Kind: WriteUpdate, Collection: collection, ID: id, Fields: fields}
}

// UpdateIfOp applies fields only while field still equals value, and fails
// the batch with ErrConflict otherwise.
func UpdateIfOp(collection, id, field, value string, fields map[string]any) WriteOp {
	op := UpdateOp(collection, id, fields)
	op.Guard = &Condition{Field: field, Op: OpEq, Value: value}
	return op
}

func DeleteOp(collection, id string) WriteOp {
	return WriteOp{Kind: WriteDelete, Collection: collection, ID: id}
}

// Put writes a single document through the batch primitive.
func Put(ctx context.Context, s Store, collection, id string, doc any) error {
	return s.AtomicBatch(ctx, []WriteOp{SetOp(collection, id, doc)})
}

func (op WriteOp) validate() error {
	if op.Collection == "" || op.ID == "" {
		return ErrInvalidWrite
	}
	if op.Guard != nil && (op.Kind != WriteUpdate || op.Guard.Field == "" || op.Guard.Op != OpEq) {
		return ErrInvalidWrite
	}
	switch op.Kind {
	case WriteSet:
		if op.Doc == nil {
			return ErrInvalidWrite
		}
	case WriteUpdate:
		if len(op.Fields) == 0 {
			return ErrInvalidWrite
		}
	case WriteDelete:
	default:
		return ErrInvalidWrite
	}
	return nil
}

// guardHolds evaluates an update guard against a decoded document.
func guardHolds(doc map[string]any, guard *Condition) bool {
	if guard == nil {
		return true
	}
	current, _ := doc[guard.Field].(string)
	return current == guard.Value
}

// encodeDoc marshals a document and forces its "id" field.
func encodeDoc(id string, doc any) (json.RawMessage, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["id"] = id
	return json.Marshal(m)
}

// normalizeFields round-trips update fields through JSON so that every
// adapter stores the same representation (times, decimals, structs).
func normalizeFields(fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	delete(out, "id")
	return out, nil
}
