package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
)

// ActivityEntry is the stored form of an activity record. Details holds the
// kind-specific payload.
type ActivityEntry struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	ActorID   string          `json:"actorId"`
	ProjectID string          `json:"projectId"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"createdAt"`
	// Sequence is CreatedAt in microseconds, a numeric key every backend
	// can sort on.
	Sequence  int64           `json:"sequence"`
}

type ActivityRepository interface {
	Create(ctx context.Context, entry *ActivityEntry) error
	// FindByProjectID returns the newest entries first, at most limit of them.
	FindByProjectID(ctx context.Context, projectID string, limit int) ([]*ActivityEntry, error)
}

type storeActivityRepository struct {
	store store.Store
}

func NewActivityRepository(s store.Store) ActivityRepository {
	return &storeActivityRepository{store: s}
}

func (r *storeActivityRepository) Create(ctx context.Context, entry *ActivityEntry) error {
	entry.Sequence = entry.CreatedAt.UnixMicro()
	return store.Put(ctx, r.store, store.Activities, entry.ID, entry)
}

func (r *storeActivityRepository) FindByProjectID(ctx context.Context, projectID string, limit int) ([]*ActivityEntry, error) {
	docs, err := r.store.Query(ctx, store.Activities,
		store.Filter{store.Eq("projectId", projectID)},
		store.OrderBy("sequence", true),
		store.Limit(limit),
	)
	if err != nil {
		return nil, err
	}
	return decodeAll[ActivityEntry](docs)
}
