package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
)

var errInjected = errors.New("injected store failure")

// faultyStore wraps a store and fails selected writes.
type faultyStore struct {
	store.Store
	failBatch  func(ops []store.WriteOp) bool
	failUpdate bool
	failQuery  bool
	failGet    string
	// onQuery runs before every Query reaches the wrapped store.
	onQuery func(collection string)
}

func (s *faultyStore) AtomicBatch(ctx context.Context, ops []store.WriteOp) error {
	if s.failBatch != nil && s.failBatch(ops) {
		return errInjected
	}
	return s.Store.AtomicBatch(ctx, ops)
}

func (s *faultyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if s.failUpdate {
		return errInjected
	}
	return s.Store.Update(ctx, collection, id, fields)
}

func (s *faultyStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if s.failGet == collection {
		return nil, errInjected
	}
	return s.Store.Get(ctx, collection, id)
}

func (s *faultyStore) Query(ctx context.Context, collection string, filter store.Filter, opts ...store.QueryOption) ([]json.RawMessage, error) {
	if s.failQuery {
		return nil, errInjected
	}
	if s.onQuery != nil {
		s.onQuery(collection)
	}
	return s.Store.Query(ctx, collection, filter, opts...)
}

func touches(ops []store.WriteOp, collection string) bool {
	for _, op := range ops {
		if op.Collection == collection {
			return true
		}
	}
	return false
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	mem   *store.MemoryStore
	repos *repository.Repositories
	svc   *Services
	now   time.Time
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith builds services over a memory store, optionally wrapped.
func newFixtureWith(t *testing.T, wrap func(store.Store) store.Store) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	var s store.Store = mem
	if wrap != nil {
		s = wrap(mem)
	}
	f := &fixture{
		t:   t,
		ctx: context.Background(),
		mem: mem,
		now: date(2025, 3, 1),
	}
	f.repos = repository.NewRepositories(s)
	f.svc = NewServices(&ServiceDeps{
		Repos: f.repos,
		Now:   func() time.Time { return f.now },
	})
	return f
}

// seedRepos writes through the unwrapped store so seeding never hits
// injected faults.
func (f *fixture) seedRepos() *repository.Repositories {
	return repository.NewRepositories(f.mem)
}

func (f *fixture) addProject(p *repository.Project) *repository.Project {
	f.t.Helper()
	if p.Status == "" {
		p.Status = types.ProjectInProgress
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = date(2025, 1, 1)
	}
	if p.Deadline.IsZero() {
		p.Deadline = date(2025, 12, 31)
	}
	if err := f.seedRepos().ProjectRepo.Create(f.ctx, p); err != nil {
		f.t.Fatalf("create project: %v", err)
	}
	return p
}

func (f *fixture) addTask(task *repository.Task) *repository.Task {
	f.t.Helper()
	if task.Status == "" {
		task.Status = types.StatusBacklog
	}
	if err := f.seedRepos().TaskRepo.Create(f.ctx, task); err != nil {
		f.t.Fatalf("create task: %v", err)
	}
	return task
}

func (f *fixture) addTeam(team *repository.Team) *repository.Team {
	f.t.Helper()
	if err := f.seedRepos().TeamRepo.Create(f.ctx, team); err != nil {
		f.t.Fatalf("create team: %v", err)
	}
	return team
}

func (f *fixture) project(id string) *repository.Project {
	f.t.Helper()
	p, err := f.seedRepos().ProjectRepo.FindByID(f.ctx, id)
	if err != nil {
		f.t.Fatalf("find project: %v", err)
	}
	if p == nil {
		f.t.Fatalf("project %s not found", id)
	}
	return p
}

func (f *fixture) task(id string) *repository.Task {
	f.t.Helper()
	task, err := f.seedRepos().TaskRepo.FindByID(f.ctx, id)
	if err != nil {
		f.t.Fatalf("find task: %v", err)
	}
	return task
}

func (f *fixture) rawProject(id string) string {
	f.t.Helper()
	raw, err := f.mem.Get(f.ctx, store.Projects, id)
	if err != nil {
		f.t.Fatalf("get project: %v", err)
	}
	return string(raw)
}

// standardGraph seeds a project with one attached team:
// lead "lead-1", member "dev-1", project manager "pm-1", creator "owner-1".
func (f *fixture) standardGraph() *repository.Project {
	f.t.Helper()
	f.addTeam(&repository.Team{
		ID:       "team-1",
		Name:     "Core",
		Members:  []repository.Member{{UserID: "dev-1", Role: "developer"}},
		Lead:     &repository.Member{UserID: "lead-1", Role: "lead"},
		Projects: []string{"proj-1"},
	})
	return f.addProject(&repository.Project{
		ID:             "proj-1",
		Name:           "Integrity",
		CreatedBy:      "owner-1",
		ProjectManager: &repository.Member{UserID: "pm-1", Role: "manager"},
		Teams:          []string{"team-1"},
	})
}

func employee(userID string) PermissionContext {
	return PermissionContext{UserID: userID, UserRole: types.RoleEmployee}
}

func admin(userID string) PermissionContext {
	return PermissionContext{UserID: userID, UserRole: types.RoleAdmin}
}
