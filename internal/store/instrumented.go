package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/metrics"
)

// InstrumentedStore records the latency and outcome of every call.
type InstrumentedStore struct {
	inner Store
}

func NewInstrumentedStore(inner Store) *InstrumentedStore {
	return &InstrumentedStore{inner: inner}
}

func (s *InstrumentedStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	start := time.Now()
	doc, err := s.inner.Get(ctx, collection, id)
	metrics.RecordStoreOp("get", collection, outcome(err), time.Since(start))
	return doc, err
}

func (s *InstrumentedStore) Query(ctx context.Context, collection string, filter Filter, opts ...QueryOption) ([]json.RawMessage, error) {
	start := time.Now()
	docs, err := s.inner.Query(ctx, collection, filter, opts...)
	metrics.RecordStoreOp("query", collection, outcome(err), time.Since(start))
	return docs, err
}

func (s *InstrumentedStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	start := time.Now()
	err := s.inner.Update(ctx, collection, id, fields)
	metrics.RecordStoreOp("update", collection, outcome(err), time.Since(start))
	return err
}

func (s *InstrumentedStore) AtomicBatch(ctx context.Context, ops []WriteOp) error {
	start := time.Now()
	err := s.inner.AtomicBatch(ctx, ops)
	metrics.RecordStoreOp("batch", batchLabel(ops), outcome(err), time.Since(start))
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// batchLabel keeps label cardinality bounded: one collection or "mixed".
func batchLabel(ops []WriteOp) string {
	if len(ops) == 0 {
		return "none"
	}
	first := ops[0].Collection
	for _, op := range ops[1:] {
		if op.Collection != first {
			return "mixed"
		}
	}
	return first
}
