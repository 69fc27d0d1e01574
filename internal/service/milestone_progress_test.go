package service

import (
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
)

func task(id string, deadline time.Time, status string) *repository.Task {
	return &repository.Task{ID: id, Deadline: deadline, Status: status}
}

func TestMilestoneProgress_MidYearScenario(t *testing.T) {
	m := repository.Milestone{ID: "m1", DueDate: date(2025, 6, 30), Status: types.MilestoneNotStarted}
	tasks := []*repository.Task{
		task("t1", date(2025, 5, 1), types.StatusDone),
		task("t2", date(2025, 6, 1), types.StatusBacklog),
		task("t3", date(2025, 7, 1), types.StatusDone),
	}

	got := MilestoneProgress(m, tasks, date(2025, 3, 1))

	if got.RelatedTasksCount != 2 {
		t.Errorf("expected 2 related tasks, got %d", got.RelatedTasksCount)
	}
	if got.CompletedTasksCount != 1 {
		t.Errorf("expected 1 completed task, got %d", got.CompletedTasksCount)
	}
	if got.Progress != 50 {
		t.Errorf("expected progress 50, got %d", got.Progress)
	}
	if got.Status != types.MilestoneInProgress {
		t.Errorf("expected status %s, got %s", types.MilestoneInProgress, got.Status)
	}
}

func TestMilestoneProgress_Rounding(t *testing.T) {
	due := date(2025, 6, 30)
	m := repository.Milestone{DueDate: due, Status: types.MilestoneNotStarted}

	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{"none related", 0, 0, 0},
		{"one of three", 1, 3, 33},
		{"two of three", 2, 3, 67},
		{"one of eight", 1, 8, 13},
		{"all", 4, 4, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tasks []*repository.Task
			for i := 0; i < tt.total; i++ {
				status := types.StatusBacklog
				if i < tt.completed {
					status = types.StatusCompleted
				}
				tasks = append(tasks, task("t", due, status))
			}
			if got := MilestoneProgress(m, tasks, date(2025, 1, 1)).Progress; got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestMilestoneProgress_DeadlineOnDueDateCounts(t *testing.T) {
	due := date(2025, 6, 30)
	m := repository.Milestone{DueDate: due, Status: types.MilestoneNotStarted}

	got := MilestoneProgress(m, []*repository.Task{task("t1", due, types.StatusCompleted)}, date(2025, 1, 1))
	if got.RelatedTasksCount != 1 || got.Progress != 100 {
		t.Errorf("expected the task due on the milestone date to count, got %+v", got)
	}
	if got.Status != types.MilestoneCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

func TestMilestoneProgress_TasksWithoutDeadlineIgnored(t *testing.T) {
	m := repository.Milestone{DueDate: date(2025, 6, 30), Status: types.MilestoneNotStarted}
	got := MilestoneProgress(m, []*repository.Task{task("t1", time.Time{}, types.StatusDone), nil}, date(2025, 1, 1))
	if got.RelatedTasksCount != 0 || got.Progress != 0 {
		t.Errorf("expected no related tasks, got %+v", got)
	}
}

func TestMilestoneProgress_StatusRules(t *testing.T) {
	due := date(2025, 6, 30)
	before := date(2025, 3, 1)
	after := date(2025, 8, 1)

	tests := []struct {
		name     string
		previous string
		done     int
		total    int
		now      time.Time
		want     string
	}{
		{"complete wins over overdue", types.MilestoneOverdue, 2, 2, after, types.MilestoneCompleted},
		{"started before due", types.MilestoneNotStarted, 1, 2, before, types.MilestoneInProgress},
		{"nothing done before due", types.MilestoneNotStarted, 0, 2, before, types.MilestoneNotStarted},
		{"nothing done past due", types.MilestoneNotStarted, 0, 2, after, types.MilestoneOverdue},
		{"in progress past due", types.MilestoneInProgress, 1, 2, after, types.MilestoneOverdue},
		{"started past due settles on overdue", types.MilestoneNotStarted, 1, 2, after, types.MilestoneOverdue},
		{"in progress stays before due", types.MilestoneInProgress, 1, 2, before, types.MilestoneInProgress},
		{"completed demoted when progress drops", types.MilestoneCompleted, 1, 2, before, types.MilestoneInProgress},
		{"completed demoted to not started", types.MilestoneCompleted, 0, 2, before, types.MilestoneNotStarted},
		{"completed demoted past due", types.MilestoneCompleted, 1, 2, after, types.MilestoneOverdue},
		{"empty status treated as not started", "", 1, 2, before, types.MilestoneInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tasks []*repository.Task
			for i := 0; i < tt.total; i++ {
				status := types.StatusInProgress
				if i < tt.done {
					status = types.StatusDone
				}
				tasks = append(tasks, task("t", date(2025, 5, 1), status))
			}
			m := repository.Milestone{DueDate: due, Status: tt.previous}
			if got := MilestoneProgress(m, tasks, tt.now).Status; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMilestoneProgress_StatusIsStable(t *testing.T) {
	due := date(2025, 6, 30)
	tasks := []*repository.Task{
		task("t1", date(2025, 5, 1), types.StatusDone),
		task("t2", date(2025, 5, 2), types.StatusBacklog),
	}

	for _, now := range []time.Time{date(2025, 3, 1), date(2025, 9, 1)} {
		for _, start := range []string{
			types.MilestoneNotStarted, types.MilestoneInProgress,
			types.MilestoneCompleted, types.MilestoneOverdue,
		} {
			first := MilestoneProgress(repository.Milestone{DueDate: due, Status: start}, tasks, now)
			second := MilestoneProgress(repository.Milestone{DueDate: due, Status: first.Status}, tasks, now)
			if first != second {
				t.Errorf("start %s at %s: second pass changed %+v to %+v", start, now.Format(dateLayout), first, second)
			}
		}
	}
}
