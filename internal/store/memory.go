package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps documents in process. Batches are applied to a copy of
// the touched collections and swapped in only when every op succeeded.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRaw(doc), nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filter Filter, opts ...QueryOption) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data[collection]))
	for id := range s.data[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type match struct {
		raw json.RawMessage
		doc map[string]any
	}
	var matches []match
	for _, id := range ids {
		doc := s.data[collection][id]
		var m map[string]any
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
		}
		if filter.Match(m) {
			matches = append(matches, match{raw: doc, doc: m})
		}
	}

	o := collectOptions(opts)
	if o.SortField != "" {
		sort.SliceStable(matches, func(i, j int) bool {
			c := compareValues(matches[i].doc[o.SortField], matches[j].doc[o.SortField])
			if o.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if o.Limit > 0 && len(matches) > o.Limit {
		matches = matches[:o.Limit]
	}

	var out []json.RawMessage
	for _, m := range matches {
		out = append(out, cloneRaw(m.raw))
	}
	return out, nil
}

// compareValues orders missing values first, then numbers, then strings.
func compareValues(a, b any) int {
	rank := func(v any) int {
		switch v.(type) {
		case float64:
			return 1
		case string:
			return 2
		}
		return 0
	}
	if ra, rb := rank(a), rank(b); ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case string:
		return strings.Compare(x, b.(string))
	}
	return 0
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.AtomicBatch(ctx, []WriteOp{UpdateOp(collection, id, fields)})
}

func (s *MemoryStore) AtomicBatch(ctx context.Context, ops []WriteOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]map[string]json.RawMessage)
	collection := func(name string) map[string]json.RawMessage {
		if c, ok := staged[name]; ok {
			return c
		}
		c := make(map[string]json.RawMessage, len(s.data[name]))
		for k, v := range s.data[name] {
			c[k] = v
		}
		staged[name] = c
		return c
	}

	for _, op := range ops {
		if err := op.validate(); err != nil {
			return err
		}
		c := collection(op.Collection)
		switch op.Kind {
		case WriteSet:
			doc, err := encodeDoc(op.ID, op.Doc)
			if err != nil {
				return fmt.Errorf("failed to encode %s/%s: %w", op.Collection, op.ID, err)
			}
			c[op.ID] = doc
		case WriteUpdate:
			existing, ok := c[op.ID]
			if !ok {
				return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, ErrNotFound)
			}
			if op.Guard != nil {
				var current map[string]any
				if err := json.Unmarshal(existing, &current); err != nil {
					return fmt.Errorf("corrupt document %s/%s: %w", op.Collection, op.ID, err)
				}
				if !guardHolds(current, op.Guard) {
					return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, ErrConflict)
				}
			}
			merged, err := mergeRaw(existing, op.Fields)
			if err != nil {
				return fmt.Errorf("failed to merge %s/%s: %w", op.Collection, op.ID, err)
			}
			c[op.ID] = merged
		case WriteDelete:
			delete(c, op.ID)
		}
	}

	for name, c := range staged {
		s.data[name] = c
	}
	return nil
}

func mergeRaw(existing json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(existing, &m); err != nil {
		return nil, err
	}
	normalized, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}
	for k, v := range normalized {
		m[k] = v
	}
	return json.Marshal(m)
}

func cloneRaw(doc json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out
}
