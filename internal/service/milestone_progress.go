package service

import (
	"math"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
)

// ProgressResult is the derived state of one milestone.
type ProgressResult struct {
	Progress            int    `json:"progress"`
	RelatedTasksCount   int    `json:"relatedTasksCount"`
	CompletedTasksCount int    `json:"completedTasksCount"`
	Status              string `json:"status"`
}

// MilestoneProgress counts the tasks due on or before the milestone date and
// derives progress and status from them. Tasks without a deadline never
// count toward a milestone.
func MilestoneProgress(m repository.Milestone, tasks []*repository.Task, now time.Time) ProgressResult {
	var related, completed int
	for _, t := range tasks {
		if t == nil || t.Deadline.IsZero() || t.Deadline.After(m.DueDate) {
			continue
		}
		related++
		if types.IsFinishedTask(t.Status) {
			completed++
		}
	}

	progress := 0
	if related > 0 {
		progress = int(math.Round(100 * float64(completed) / float64(related)))
	}

	return ProgressResult{
		Progress:            progress,
		RelatedTasksCount:   related,
		CompletedTasksCount: completed,
		Status:              settleMilestoneStatus(m.Status, progress, m.DueDate, now),
	}
}

// settleMilestoneStatus applies the status rules until they stop changing
// the result, so a recompute over unchanged tasks is a no-op.
func settleMilestoneStatus(status string, progress int, dueDate, now time.Time) string {
	if status == "" {
		status = types.MilestoneNotStarted
	}
	for i := 0; i < 4; i++ {
		next := milestoneStatus(status, progress, dueDate, now)
		if next == status {
			break
		}
		status = next
	}
	return status
}

// milestoneStatus is one pass of the rules, first match wins. A completed
// milestone whose progress fell below 100 is demoted first.
func milestoneStatus(prev string, progress int, dueDate, now time.Time) string {
	switch {
	case progress == 100:
		return types.MilestoneCompleted
	case prev == types.MilestoneCompleted:
		if progress > 0 {
			return types.MilestoneInProgress
		}
		return types.MilestoneNotStarted
	case progress > 0 && prev == types.MilestoneNotStarted:
		return types.MilestoneInProgress
	case dueDate.Before(now):
		return types.MilestoneOverdue
	}
	return prev
}

// recalculateMilestones returns a new slice; updatedAt moves only for
// milestones whose derived fields changed.
func recalculateMilestones(milestones []repository.Milestone, tasks []*repository.Task, now time.Time) []repository.Milestone {
	out := make([]repository.Milestone, len(milestones))
	for i, m := range milestones {
		result := MilestoneProgress(m, tasks, now)
		if result.Progress != m.Progress || result.Status != m.Status {
			m.Progress = result.Progress
			m.Status = result.Status
			m.UpdatedAt = now.UTC()
		}
		out[i] = m
	}
	return out
}
