package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Marga-Ghale/ora-project-integrity/internal/activity"
	"github.com/Marga-Ghale/ora-project-integrity/internal/metrics"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Finding kinds, also used as metric labels
const (
	findingOrphanTask      = "orphan_task"
	findingDuplicateTask   = "duplicate_task"
	findingMissingTask     = "missing_task"
	findingDanglingTeam    = "dangling_team"
	findingMilestoneBounds = "milestone_bounds"
)

type AuditReport struct {
	IsConsistent bool     `json:"isConsistent"`
	Issues       []string `json:"issues"`
	Fixed        []string `json:"fixed"`
}

// ConsistencyService detects drift between a project and its tasks and
// teams. Task references are repaired; team references and milestone
// dates are only reported.
type ConsistencyService interface {
	Audit(ctx context.Context, actorID, projectID string) (*AuditReport, error)
	// AuditAll audits every project and returns how many were inconsistent.
	AuditAll(ctx context.Context, actorID string) (int, error)
}

type consistencyService struct {
	projectRepo    repository.ProjectRepository
	taskRepo       repository.TaskRepository
	teamRepo       repository.TeamRepository
	metricsService MetricsService
	recorder       *activity.Recorder
	logger         *zap.Logger
}

func NewConsistencyService(
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
	teamRepo repository.TeamRepository,
	metricsService MetricsService,
	recorder *activity.Recorder,
	logger *zap.Logger,
) ConsistencyService {
	return &consistencyService{
		projectRepo:    projectRepo,
		taskRepo:       taskRepo,
		teamRepo:       teamRepo,
		metricsService: metricsService,
		recorder:       recorder,
		logger:         logger,
	}
}

func (s *consistencyService) Audit(ctx context.Context, actorID, projectID string) (*AuditReport, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if project == nil {
		return nil, ErrNotFound
	}

	report := &AuditReport{Issues: []string{}, Fixed: []string{}}

	// Task references
	tasks, err := s.taskRepo.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks of project %s: %w", projectID, err)
	}
	taskIDs, fixed := reconcileTaskIDs(project.TaskIDs, tasks)
	if len(fixed) > 0 {
		if err := s.projectRepo.UpdateTaskIDs(ctx, projectID, taskIDs); err != nil {
			return nil, fmt.Errorf("failed to repair task references of project %s: %w", projectID, err)
		}
		for _, f := range fixed {
			metrics.IncrementAuditFinding(f.kind, "fixed")
			report.Fixed = append(report.Fixed, f.message)
		}
	}

	// Team references
	_, missingTeams, err := s.teamRepo.FindByIDs(ctx, project.Teams)
	if err != nil {
		return nil, fmt.Errorf("failed to load teams of project %s: %w", projectID, err)
	}
	for _, teamID := range missingTeams {
		metrics.IncrementAuditFinding(findingDanglingTeam, "reported")
		report.Issues = append(report.Issues, fmt.Sprintf("team %s does not exist", teamID))
	}

	// Milestone bounds
	for _, m := range project.Milestones {
		if project.WithinBounds(m.DueDate) {
			continue
		}
		metrics.IncrementAuditFinding(findingMilestoneBounds, "reported")
		report.Issues = append(report.Issues, fmt.Sprintf(
			"milestone %s is due %s, outside the project window %s to %s",
			m.ID,
			m.DueDate.Format(dateLayout),
			project.CreatedAt.Format(dateLayout),
			project.Deadline.Format(dateLayout),
		))
	}

	report.IsConsistent = len(report.Issues) == 0

	if _, err := s.metricsService.Recalculate(ctx, actorID, projectID); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, actorID, projectID, activity.ProjectAudited{
		IsConsistent: report.IsConsistent,
		Issues:       report.Issues,
		Fixed:        report.Fixed,
	})

	return report, nil
}

func (s *consistencyService) AuditAll(ctx context.Context, actorID string) (int, error) {
	projects, err := s.projectRepo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list projects: %w", err)
	}

	inconsistent := 0
	for _, p := range projects {
		if ctx.Err() != nil {
			return inconsistent, ctx.Err()
		}
		report, err := s.Audit(ctx, actorID, p.ID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("project audit failed", zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		if !report.IsConsistent || len(report.Fixed) > 0 {
			inconsistent++
		}
	}
	return inconsistent, nil
}

type finding struct {
	kind    string
	message string
}

// reconcileTaskIDs drops references without a matching task (and repeated
// references), then appends tasks of the project that were not referenced.
// Surviving references keep their order.
func reconcileTaskIDs(taskIDs []string, tasks []*repository.Task) ([]string, []finding) {
	existing := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		existing[t.ID] = true
	}

	var fixed []finding
	seen := make(map[string]bool, len(taskIDs))
	out := make([]string, 0, len(tasks))

	for _, id := range taskIDs {
		switch {
		case !existing[id]:
			fixed = append(fixed, finding{findingOrphanTask, fmt.Sprintf("removed orphaned task reference %s", id)})
		case seen[id]:
			fixed = append(fixed, finding{findingDuplicateTask, fmt.Sprintf("removed duplicate task reference %s", id)})
		default:
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, t := range tasks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t.ID)
		fixed = append(fixed, finding{findingMissingTask, fmt.Sprintf("added missing task reference %s", t.ID)})
	}

	return out, fixed
}
