package service

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
)

func seedCascadeGraph(f *fixture) {
	f.addProject(&repository.Project{ID: "p1", Teams: []string{"team-a", "team-b"}, TaskIDs: []string{"t1", "t2"}})
	f.addProject(&repository.Project{ID: "p2", Teams: []string{"team-b"}, TaskIDs: []string{"t3"}})
	f.addTask(&repository.Task{ID: "t1", ProjectID: "p1"})
	f.addTask(&repository.Task{ID: "t2", ProjectID: "p1"})
	f.addTask(&repository.Task{ID: "t3", ProjectID: "p2"})
	f.addTeam(&repository.Team{ID: "team-a", Projects: []string{"p1"}})
	f.addTeam(&repository.Team{ID: "team-b", Projects: []string{"p2", "p1"}})
	f.addTeam(&repository.Team{ID: "team-c", Projects: []string{"p2"}})
}

func assertCascaded(t *testing.T, f *fixture, projectID string) {
	t.Helper()
	repos := f.seedRepos()

	tasks, err := repos.TaskRepo.FindByProjectID(f.ctx, projectID)
	if err != nil {
		t.Fatalf("find tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks for %s, found %d", projectID, len(tasks))
	}
	teams, err := repos.TeamRepo.FindByProjectID(f.ctx, projectID)
	if err != nil {
		t.Fatalf("find teams: %v", err)
	}
	if len(teams) != 0 {
		t.Errorf("expected no team to reference %s, found %d", projectID, len(teams))
	}
	p, err := repos.ProjectRepo.FindByID(f.ctx, projectID)
	if err != nil {
		t.Fatalf("find project: %v", err)
	}
	if p != nil {
		t.Errorf("expected project %s to be deleted", projectID)
	}
}

func TestCascadeDelete_RemovesDependents(t *testing.T) {
	f := newFixture(t)
	seedCascadeGraph(f)

	if err := f.svc.Cascade.CascadeDelete(f.ctx, "admin-1", "p1"); err != nil {
		t.Fatalf("cascade: %v", err)
	}

	assertCascaded(t, f, "p1")

	repos := f.seedRepos()
	if task, _ := repos.TaskRepo.FindByID(f.ctx, "t3"); task == nil {
		t.Error("tasks of other projects must survive")
	}
	teamB, _ := repos.TeamRepo.FindByID(f.ctx, "team-b")
	if !reflect.DeepEqual(teamB.Projects, []string{"p2"}) {
		t.Errorf("expected team-b to keep p2 only, got %v", teamB.Projects)
	}
	record, _ := repos.CascadeRepo.FindByID(f.ctx, "p1")
	if record == nil || record.Status != repository.CascadeDone || record.Attempts != 1 {
		t.Errorf("expected journal entry done after one attempt, got %+v", record)
	}
}

func TestCascadeDelete_AllOrNothing(t *testing.T) {
	fs := &faultyStore{}
	f := newFixtureWith(t, func(s store.Store) store.Store {
		fs.Store = s
		fs.failBatch = func(ops []store.WriteOp) bool { return touches(ops, store.Tasks) }
		return fs
	})
	seedCascadeGraph(f)

	err := f.svc.Cascade.CascadeDelete(f.ctx, "admin-1", "p1")
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	repos := f.seedRepos()
	tasks, _ := repos.TaskRepo.FindByProjectID(f.ctx, "p1")
	if len(tasks) != 2 {
		t.Errorf("expected no task deleted, found %d", len(tasks))
	}
	teams, _ := repos.TeamRepo.FindByProjectID(f.ctx, "p1")
	if len(teams) != 2 {
		t.Errorf("expected no team updated, found %d referencing p1", len(teams))
	}
	if p, _ := repos.ProjectRepo.FindByID(f.ctx, "p1"); p == nil {
		t.Error("expected project to survive a failed cascade")
	}

	record, _ := repos.CascadeRepo.FindByID(f.ctx, "p1")
	if record == nil || record.Status != repository.CascadePending || record.LastError == "" {
		t.Fatalf("expected pending journal entry with last error, got %+v", record)
	}

	// The store recovers; the retry converges.
	fs.failBatch = nil
	n, err := f.svc.Cascade.RetryPending(f.ctx)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 converged cascade, got %d", n)
	}
	assertCascaded(t, f, "p1")

	record, _ = repos.CascadeRepo.FindByID(f.ctx, "p1")
	if record.Status != repository.CascadeDone || record.Attempts != 2 || record.LastError != "" {
		t.Errorf("expected done after two attempts, got %+v", record)
	}

	if n, _ := f.svc.Cascade.RetryPending(f.ctx); n != 0 {
		t.Errorf("expected nothing left to retry, got %d", n)
	}
}

func TestCascadeDelete_Idempotent(t *testing.T) {
	f := newFixture(t)
	seedCascadeGraph(f)

	for i := 0; i < 2; i++ {
		if err := f.svc.Cascade.CascadeDelete(f.ctx, "admin-1", "p1"); err != nil {
			t.Fatalf("cascade %d: %v", i, err)
		}
	}
	assertCascaded(t, f, "p1")
}

func TestCascadeDelete_JournalFailureAbortsBeforeWork(t *testing.T) {
	f := newFixtureWith(t, func(s store.Store) store.Store {
		return &faultyStore{Store: s, failBatch: func(ops []store.WriteOp) bool { return true }}
	})
	seedCascadeGraph(f)

	if err := f.svc.Cascade.CascadeDelete(f.ctx, "admin-1", "p1"); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if p, _ := f.seedRepos().ProjectRepo.FindByID(f.ctx, "p1"); p == nil {
		t.Error("expected project untouched")
	}
}
