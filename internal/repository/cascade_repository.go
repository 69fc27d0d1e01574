package repository

import (
	"context"
	"errors"

	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
)

// CascadeRepository is the journal of project deletions that have not yet
// converged. Records are keyed by project id, so re-journaling is idempotent.
type CascadeRepository interface {
	Save(ctx context.Context, record *CascadeRecord) error
	FindByID(ctx context.Context, id string) (*CascadeRecord, error)
	FindPending(ctx context.Context) ([]*CascadeRecord, error)
	SaveOp(record *CascadeRecord) store.WriteOp
}

type storeCascadeRepository struct {
	store store.Store
}

func NewCascadeRepository(s store.Store) CascadeRepository {
	return &storeCascadeRepository{store: s}
}

func (r *storeCascadeRepository) Save(ctx context.Context, record *CascadeRecord) error {
	return store.Put(ctx, r.store, store.Cascades, record.ID, record)
}

func (r *storeCascadeRepository) FindByID(ctx context.Context, id string) (*CascadeRecord, error) {
	raw, err := r.store.Get(ctx, store.Cascades, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode[CascadeRecord](raw)
}

func (r *storeCascadeRepository) FindPending(ctx context.Context) ([]*CascadeRecord, error) {
	docs, err := r.store.Query(ctx, store.Cascades, store.Filter{store.Eq("status", CascadePending)})
	if err != nil {
		return nil, err
	}
	return decodeAll[CascadeRecord](docs)
}

func (r *storeCascadeRepository) SaveOp(record *CascadeRecord) store.WriteOp {
	return store.SetOp(store.Cascades, record.ID, record)
}
