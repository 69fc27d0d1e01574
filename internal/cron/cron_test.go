package cron

import (
	"context"
	"testing"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/service"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"go.uber.org/zap"
)

func newScheduler(t *testing.T) (*Scheduler, *repository.Repositories) {
	t.Helper()
	repos := repository.NewRepositories(store.NewMemoryStore())
	services := service.NewServices(&service.ServiceDeps{Repos: repos})
	return NewScheduler(services, zap.NewNop()), repos
}

func TestRegister(t *testing.T) {
	s, _ := newScheduler(t)

	if err := s.Register("*/5 * * * *", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("expected only the cascade job, got %d", got)
	}
	if err := s.Register("", "every tuesday"); err == nil {
		t.Error("expected an invalid schedule to be rejected")
	}
}

func TestJobs_RunAgainstServices(t *testing.T) {
	s, repos := newScheduler(t)
	ctx := context.Background()

	if err := repos.ProjectRepo.Create(ctx, &repository.Project{ID: "p1", TaskIDs: []string{"ghost"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repos.CascadeRepo.Save(ctx, &repository.CascadeRecord{ID: "gone", ProjectID: "gone", Status: repository.CascadePending}); err != nil {
		t.Fatalf("seed cascade: %v", err)
	}

	s.sweepAudits()
	p, err := repos.ProjectRepo.FindByID(ctx, "p1")
	if err != nil || p == nil {
		t.Fatalf("find: %v", err)
	}
	if len(p.TaskIDs) != 0 {
		t.Errorf("expected the sweep to repair p1, got %v", p.TaskIDs)
	}

	s.retryCascades()
	rec, err := repos.CascadeRepo.FindByID(ctx, "gone")
	if err != nil || rec == nil {
		t.Fatalf("find cascade: %v", err)
	}
	if rec.Status != repository.CascadeDone {
		t.Errorf("expected the pending cascade to converge, got %s", rec.Status)
	}
}
