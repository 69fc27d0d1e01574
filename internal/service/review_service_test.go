package service

import (
	"errors"
	"testing"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
	"github.com/shopspring/decimal"
)

func seedReviewTask(f *fixture, status string, rate int64) {
	f.addProject(&repository.Project{ID: "p1", TaskIDs: []string{"t1"}})
	f.addTask(&repository.Task{
		ID:         "t1",
		ProjectID:  "p1",
		Status:     status,
		AssignedTo: []string{"dev-1", "dev-2"},
		TaskRate:   decimal.NewFromInt(rate),
	})
}

func TestReview_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	seedReviewTask(f, types.StatusBacklog, 0)

	steps := []struct {
		pc     PermissionContext
		action string
		want   string
	}{
		{employee("dev-1"), types.ReviewStart, types.StatusInProgress},
		{employee("dev-2"), types.ReviewSubmit, types.StatusCompleted},
		{admin("root"), types.ReviewRequestRevision, types.StatusRevision},
		{employee("dev-1"), types.ReviewResume, types.StatusInProgress},
		{employee("dev-1"), types.ReviewSubmit, types.StatusCompleted},
		{admin("root"), types.ReviewApprove, types.StatusDone},
	}

	for _, step := range steps {
		res, err := f.svc.Review.Review(f.ctx, step.pc, "t1", step.action)
		if err != nil {
			t.Fatalf("%s: %v", step.action, err)
		}
		if res.Task.Status != step.want {
			t.Fatalf("%s: expected %s, got %s", step.action, step.want, res.Task.Status)
		}
		if stored := f.task("t1"); stored.Status != step.want {
			t.Fatalf("%s: stored status %s, want %s", step.action, stored.Status, step.want)
		}
	}

	p := f.project("p1")
	if p.Metrics.CompletedTasks != 1 {
		t.Errorf("expected review to trigger recalculation, got %+v", p.Metrics)
	}
}

func TestReview_ApproveCreditsEachAssignee(t *testing.T) {
	f := newFixture(t)
	seedReviewTask(f, types.StatusCompleted, 25)

	res, err := f.svc.Review.Review(f.ctx, admin("root"), "t1", types.ReviewApprove)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(res.Earnings) != 2 {
		t.Fatalf("expected 2 earnings, got %d", len(res.Earnings))
	}

	for _, user := range []string{"dev-1", "dev-2"} {
		summary, err := f.svc.Review.Earnings(f.ctx, user)
		if err != nil {
			t.Fatalf("earnings: %v", err)
		}
		if len(summary.Earnings) != 1 || !summary.Total.Equal(decimal.NewFromInt(25)) {
			t.Errorf("%s: expected one earning of 25, got %d totalling %s", user, len(summary.Earnings), summary.Total)
		}
	}
}

func TestReview_ApproveWithoutRateCreatesNoEarnings(t *testing.T) {
	f := newFixture(t)
	seedReviewTask(f, types.StatusCompleted, 0)

	res, err := f.svc.Review.Review(f.ctx, admin("root"), "t1", types.ReviewApprove)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(res.Earnings) != 0 {
		t.Errorf("expected no earnings, got %d", len(res.Earnings))
	}
}

func TestReview_ApproveIsAtomic(t *testing.T) {
	f := newFixtureWith(t, func(s store.Store) store.Store {
		return &faultyStore{Store: s, failBatch: func(ops []store.WriteOp) bool { return touches(ops, store.Earnings) }}
	})
	seedReviewTask(f, types.StatusCompleted, 10)

	if _, err := f.svc.Review.Review(f.ctx, admin("root"), "t1", types.ReviewApprove); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if got := f.task("t1").Status; got != types.StatusCompleted {
		t.Errorf("expected status to stay completed, got %s", got)
	}
	earnings, _ := f.seedRepos().EarningRepo.FindByTaskID(f.ctx, "t1")
	if len(earnings) != 0 {
		t.Errorf("expected no earnings, got %d", len(earnings))
	}
}

func TestReview_Errors(t *testing.T) {
	f := newFixture(t)
	seedReviewTask(f, types.StatusCompleted, 10)

	tests := []struct {
		name   string
		pc     PermissionContext
		taskID string
		action string
		want   error
	}{
		{"unknown action", admin("root"), "t1", "archive", ErrInvalidInput},
		{"missing task", admin("root"), "nope", types.ReviewApprove, ErrNotFound},
		{"employee approving", employee("dev-1"), "t1", types.ReviewApprove, ErrForbidden},
		{"non assignee", employee("stranger"), "t1", types.ReviewStart, ErrForbidden},
		{"wrong state", admin("root"), "t1", types.ReviewStart, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Review.Review(f.ctx, tt.pc, tt.taskID, tt.action); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReview_TaskWithMissingProjectStillReviewed(t *testing.T) {
	f := newFixture(t)
	f.addTask(&repository.Task{ID: "t1", ProjectID: "gone", Status: types.StatusBacklog, AssignedTo: []string{"dev-1"}})

	res, err := f.svc.Review.Review(f.ctx, employee("dev-1"), "t1", types.ReviewStart)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if res.Task.Status != types.StatusInProgress {
		t.Errorf("expected in_progress, got %s", res.Task.Status)
	}
}
