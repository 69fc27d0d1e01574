package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
)

type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	// FindByID returns nil, nil when the task does not exist.
	FindByID(ctx context.Context, id string) (*Task, error)
	FindByProjectID(ctx context.Context, projectID string) ([]*Task, error)
	UpdateAssignees(ctx context.Context, id string, assignees []string, updatedAt time.Time) error
	StatusOp(id, status string, updatedAt time.Time) store.WriteOp
	DeleteOp(id string) store.WriteOp
}

type storeTaskRepository struct {
	store store.Store
}

func NewTaskRepository(s store.Store) TaskRepository {
	return &storeTaskRepository{store: s}
}

func (r *storeTaskRepository) Create(ctx context.Context, task *Task) error {
	if task.AssignedTo == nil {
		task.AssignedTo = []string{}
	}
	return store.Put(ctx, r.store, store.Tasks, task.ID, task)
}

func (r *storeTaskRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	raw, err := r.store.Get(ctx, store.Tasks, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode[Task](raw)
}

func (r *storeTaskRepository) FindByProjectID(ctx context.Context, projectID string) ([]*Task, error) {
	docs, err := r.store.Query(ctx, store.Tasks, store.Filter{store.Eq("projectId", projectID)})
	if err != nil {
		return nil, err
	}
	return decodeAll[Task](docs)
}

func (r *storeTaskRepository) UpdateAssignees(ctx context.Context, id string, assignees []string, updatedAt time.Time) error {
	return r.store.Update(ctx, store.Tasks, id, map[string]any{
		"assignedTo": assignees,
		"updatedAt":  updatedAt,
	})
}

func (r *storeTaskRepository) StatusOp(id, status string, updatedAt time.Time) store.WriteOp {
	return store.UpdateOp(store.Tasks, id, map[string]any{
		"status":    status,
		"updatedAt": updatedAt,
	})
}

func (r *storeTaskRepository) DeleteOp(id string) store.WriteOp {
	return store.DeleteOp(store.Tasks, id)
}
