package repository

import (
	"context"

	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
)

type EarningRepository interface {
	CreateOp(earning *Earning) store.WriteOp
	FindByUserID(ctx context.Context, userID string) ([]*Earning, error)
	FindByTaskID(ctx context.Context, taskID string) ([]*Earning, error)
}

type storeEarningRepository struct {
	store store.Store
}

func NewEarningRepository(s store.Store) EarningRepository {
	return &storeEarningRepository{store: s}
}

func (r *storeEarningRepository) CreateOp(earning *Earning) store.WriteOp {
	return store.SetOp(store.Earnings, earning.ID, earning)
}

func (r *storeEarningRepository) FindByUserID(ctx context.Context, userID string) ([]*Earning, error) {
	docs, err := r.store.Query(ctx, store.Earnings, store.Filter{store.Eq("userId", userID)})
	if err != nil {
		return nil, err
	}
	return decodeAll[Earning](docs)
}

func (r *storeEarningRepository) FindByTaskID(ctx context.Context, taskID string) ([]*Earning, error) {
	docs, err := r.store.Query(ctx, store.Earnings, store.Filter{store.Eq("taskId", taskID)})
	if err != nil {
		return nil, err
	}
	return decodeAll[Earning](docs)
}
