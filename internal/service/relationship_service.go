package service

import (
	"context"
	"fmt"

	"github.com/Marga-Ghale/ora-project-integrity/internal/activity"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
)

// RelationshipService maintains Project.taskIds with set semantics. It does
// not touch Task.projectId; drift between the two sides is healed by the
// consistency audit.
type RelationshipService interface {
	Link(ctx context.Context, actorID, projectID, taskID string) error
	Unlink(ctx context.Context, actorID, projectID, taskID string) error
}

type relationshipService struct {
	projectRepo    repository.ProjectRepository
	metricsService MetricsService
	recorder       *activity.Recorder
}

func NewRelationshipService(
	projectRepo repository.ProjectRepository,
	metricsService MetricsService,
	recorder *activity.Recorder,
) RelationshipService {
	return &relationshipService{
		projectRepo:    projectRepo,
		metricsService: metricsService,
		recorder:       recorder,
	}
}

func (s *relationshipService) Link(ctx context.Context, actorID, projectID, taskID string) error {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	// Already linked: nothing structural changed, so no recompute.
	if !project.AddTaskID(taskID) {
		return nil
	}

	if err := s.projectRepo.UpdateTaskIDs(ctx, projectID, project.TaskIDs); err != nil {
		return fmt.Errorf("failed to link task %s to project %s: %w", taskID, projectID, err)
	}
	s.recorder.Record(ctx, actorID, projectID, activity.TaskLinked{TaskID: taskID})

	_, err = s.metricsService.Recalculate(ctx, actorID, projectID)
	return err
}

func (s *relationshipService) Unlink(ctx context.Context, actorID, projectID, taskID string) error {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !project.RemoveTaskID(taskID) {
		return nil
	}

	if err := s.projectRepo.UpdateTaskIDs(ctx, projectID, project.TaskIDs); err != nil {
		return fmt.Errorf("failed to unlink task %s from project %s: %w", taskID, projectID, err)
	}
	s.recorder.Record(ctx, actorID, projectID, activity.TaskUnlinked{TaskID: taskID})

	_, err = s.metricsService.Recalculate(ctx, actorID, projectID)
	return err
}

func (s *relationshipService) loadProject(ctx context.Context, projectID string) (*repository.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}
