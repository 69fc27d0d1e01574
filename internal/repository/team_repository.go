package repository

import (
	"context"
	"errors"

	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
)

// ============================================
// Team Repository Interface
// ============================================

// TeamRepository resolves team membership and project back-references.
type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	// FindByID returns nil, nil when the team does not exist.
	FindByID(ctx context.Context, id string) (*Team, error)
	// FindByIDs returns the teams that exist and the ids that did not resolve.
	FindByIDs(ctx context.Context, ids []string) ([]*Team, []string, error)
	FindByProjectID(ctx context.Context, projectID string) ([]*Team, error)
	ProjectsOp(id string, projects []string) store.WriteOp
}

type storeTeamRepository struct {
	store store.Store
}

func NewTeamRepository(s store.Store) TeamRepository {
	return &storeTeamRepository{store: s}
}

func (r *storeTeamRepository) Create(ctx context.Context, team *Team) error {
	if team.Members == nil {
		team.Members = []Member{}
	}
	if team.Projects == nil {
		team.Projects = []string{}
	}
	return store.Put(ctx, r.store, store.Teams, team.ID, team)
}

func (r *storeTeamRepository) FindByID(ctx context.Context, id string) (*Team, error) {
	raw, err := r.store.Get(ctx, store.Teams, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode[Team](raw)
}

func (r *storeTeamRepository) FindByIDs(ctx context.Context, ids []string) ([]*Team, []string, error) {
	var teams []*Team
	var missing []string
	for _, id := range ids {
		team, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if team == nil {
			missing = append(missing, id)
			continue
		}
		teams = append(teams, team)
	}
	return teams, missing, nil
}

func (r *storeTeamRepository) FindByProjectID(ctx context.Context, projectID string) ([]*Team, error) {
	docs, err := r.store.Query(ctx, store.Teams, store.Filter{store.Contains("projects", projectID)})
	if err != nil {
		return nil, err
	}
	return decodeAll[Team](docs)
}

func (r *storeTeamRepository) ProjectsOp(id string, projects []string) store.WriteOp {
	if projects == nil {
		projects = []string{}
	}
	return store.UpdateOp(store.Teams, id, map[string]any{"projects": projects})
}
