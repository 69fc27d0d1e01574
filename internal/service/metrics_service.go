package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/activity"
	"github.com/Marga-Ghale/ora-project-integrity/internal/metrics"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
)

const maxRecalculateAttempts = 5

// MetricsService is the only writer of project metrics and of milestone
// progress and status.
type MetricsService interface {
	// Recalculate recomputes a project's metrics and milestones from its
	// tasks and returns the updated project.
	Recalculate(ctx context.Context, actorID, projectID string) (*repository.Project, error)
}

type metricsService struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	recorder    *activity.Recorder
	now         func() time.Time
}

func NewMetricsService(
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
	recorder *activity.Recorder,
	now func() time.Time,
) MetricsService {
	return &metricsService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		recorder:    recorder,
		now:         now,
	}
}

func (s *metricsService) Recalculate(ctx context.Context, actorID, projectID string) (*repository.Project, error) {
	for attempt := 1; ; attempt++ {
		project, err := s.recalculateOnce(ctx, projectID)
		if errors.Is(err, store.ErrConflict) && attempt < maxRecalculateAttempts {
			// The milestone set changed under us; recompute from the new list.
			continue
		}
		if err != nil {
			metrics.IncrementRecalculation("failed")
			if errors.Is(err, store.ErrConflict) {
				return nil, fmt.Errorf("%w: project %s kept changing during recalculation", ErrConflict, projectID)
			}
			return nil, err
		}
		metrics.IncrementRecalculation("success")

		s.recorder.Record(ctx, actorID, projectID, activity.MetricsRecalculated{
			TotalTasks:     project.Metrics.TotalTasks,
			CompletedTasks: project.Metrics.CompletedTasks,
			CompletionRate: project.Metrics.CompletionRate,
			Milestones:     len(project.Milestones),
		})
		return project, nil
	}
}

// recalculateOnce reads, computes and writes one snapshot. The write is
// guarded by the revision read here, so a milestone added in between is
// never overwritten.
func (s *metricsService) recalculateOnce(ctx context.Context, projectID string) (*repository.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if project == nil {
		return nil, ErrNotFound
	}

	tasks, err := s.taskRepo.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks of project %s: %w", projectID, err)
	}

	project.Metrics = ComputeMetrics(tasks)
	project.Milestones = recalculateMilestones(project.Milestones, tasks, s.now())

	if err := s.projectRepo.UpdateDerived(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to persist metrics of project %s: %w", projectID, err)
	}
	return project, nil
}

// ComputeMetrics derives the aggregate counters from a task set. Active
// members are the distinct assignees of in-progress tasks.
func ComputeMetrics(tasks []*repository.Task) repository.ProjectMetrics {
	var m repository.ProjectMetrics
	active := make(map[string]struct{})

	for _, t := range tasks {
		if t == nil {
			continue
		}
		m.TotalTasks++
		if types.IsFinishedTask(t.Status) {
			m.CompletedTasks++
		}
		if t.Status == types.StatusInProgress {
			for _, userID := range t.AssignedTo {
				active[userID] = struct{}{}
			}
		}
	}

	if m.TotalTasks > 0 {
		m.CompletionRate = float64(m.CompletedTasks) / float64(m.TotalTasks) * 100
	}
	m.PendingTasks = m.TotalTasks - m.CompletedTasks
	m.ActiveMembers = len(active)
	return m
}
