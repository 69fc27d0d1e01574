package repository

import (
	"context"
	"errors"

	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"github.com/google/uuid"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	// FindByID returns nil, nil when the project does not exist.
	FindByID(ctx context.Context, id string) (*Project, error)
	FindAll(ctx context.Context) ([]*Project, error)
	UpdateTaskIDs(ctx context.Context, id string, taskIDs []string) error
	// UpdateDerived writes the project's metrics and milestones as long as
	// its revision is unchanged; otherwise it returns store.ErrConflict.
	UpdateDerived(ctx context.Context, project *Project) error
	UpdateStatus(ctx context.Context, id, status string) error
	// UpdateMilestones replaces the milestone list under the same guard and
	// moves the project to a new revision.
	UpdateMilestones(ctx context.Context, project *Project) error
	DeleteOp(id string) store.WriteOp
}

type storeProjectRepository struct {
	store store.Store
}

func NewProjectRepository(s store.Store) ProjectRepository {
	return &storeProjectRepository{store: s}
}

func (r *storeProjectRepository) Create(ctx context.Context, project *Project) error {
	if project.Teams == nil {
		project.Teams = []string{}
	}
	if project.TaskIDs == nil {
		project.TaskIDs = []string{}
	}
	if project.Milestones == nil {
		project.Milestones = []Milestone{}
	}
	return store.Put(ctx, r.store, store.Projects, project.ID, project)
}

func (r *storeProjectRepository) FindByID(ctx context.Context, id string) (*Project, error) {
	raw, err := r.store.Get(ctx, store.Projects, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode[Project](raw)
}

func (r *storeProjectRepository) FindAll(ctx context.Context) ([]*Project, error) {
	docs, err := r.store.Query(ctx, store.Projects, nil)
	if err != nil {
		return nil, err
	}
	return decodeAll[Project](docs)
}

func (r *storeProjectRepository) UpdateTaskIDs(ctx context.Context, id string, taskIDs []string) error {
	if taskIDs == nil {
		taskIDs = []string{}
	}
	return r.store.Update(ctx, store.Projects, id, map[string]any{"taskIds": taskIDs})
}

// UpdateDerived writes metrics and milestones together so readers never
// see one without the other. The revision is left alone: derived values
// are last-write-wins, only the milestone set itself is versioned.
func (r *storeProjectRepository) UpdateDerived(ctx context.Context, project *Project) error {
	milestones := project.Milestones
	if milestones == nil {
		milestones = []Milestone{}
	}
	op := store.UpdateIfOp(store.Projects, project.ID, "revision", project.Revision, map[string]any{
		"metrics":    project.Metrics,
		"milestones": milestones,
	})
	return r.store.AtomicBatch(ctx, []store.WriteOp{op})
}

func (r *storeProjectRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.store.Update(ctx, store.Projects, id, map[string]any{"status": status})
}

func (r *storeProjectRepository) UpdateMilestones(ctx context.Context, project *Project) error {
	milestones := project.Milestones
	if milestones == nil {
		milestones = []Milestone{}
	}
	next := uuid.NewString()
	op := store.UpdateIfOp(store.Projects, project.ID, "revision", project.Revision, map[string]any{
		"milestones": milestones,
		"revision":   next,
	})
	if err := r.store.AtomicBatch(ctx, []store.WriteOp{op}); err != nil {
		return err
	}
	project.Revision = next
	return nil
}

func (r *storeProjectRepository) DeleteOp(id string) store.WriteOp {
	return store.DeleteOp(store.Projects, id)
}
