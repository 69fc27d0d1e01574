package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/activity"
	"github.com/Marga-Ghale/ora-project-integrity/internal/metrics"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"go.uber.org/zap"
)

// CascadeService removes a project together with its dependents. Each
// deletion is journaled as pending before the batch runs and marked done
// inside the same batch, so an interrupted cascade can be retried.
type CascadeService interface {
	CascadeDelete(ctx context.Context, actorID, projectID string) error
	// RetryPending re-runs every pending cascade and returns how many converged.
	RetryPending(ctx context.Context) (int, error)
}

type cascadeService struct {
	store       store.Store
	taskRepo    repository.TaskRepository
	teamRepo    repository.TeamRepository
	projectRepo repository.ProjectRepository
	cascadeRepo repository.CascadeRepository
	recorder    *activity.Recorder
	logger      *zap.Logger
	now         func() time.Time
}

func NewCascadeService(
	repos *repository.Repositories,
	recorder *activity.Recorder,
	logger *zap.Logger,
	now func() time.Time,
) CascadeService {
	return &cascadeService{
		store:       repos.Store,
		taskRepo:    repos.TaskRepo,
		teamRepo:    repos.TeamRepo,
		projectRepo: repos.ProjectRepo,
		cascadeRepo: repos.CascadeRepo,
		recorder:    recorder,
		logger:      logger,
		now:         now,
	}
}

func (s *cascadeService) CascadeDelete(ctx context.Context, actorID, projectID string) error {
	record, err := s.cascadeRepo.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to read cascade journal for project %s: %w", projectID, err)
	}
	now := s.now().UTC()
	if record == nil {
		record = &repository.CascadeRecord{
			ID:        projectID,
			ProjectID: projectID,
			CreatedAt: now,
		}
	}
	record.ActorID = actorID
	record.Status = repository.CascadePending
	record.UpdatedAt = now

	if err := s.cascadeRepo.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to journal cascade for project %s: %w", projectID, err)
	}

	return s.run(ctx, record)
}

func (s *cascadeService) RetryPending(ctx context.Context) (int, error) {
	pending, err := s.cascadeRepo.FindPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending cascades: %w", err)
	}

	converged := 0
	for _, record := range pending {
		if ctx.Err() != nil {
			return converged, ctx.Err()
		}
		metrics.IncrementCascade("retried")
		if err := s.run(ctx, record); err != nil {
			s.logger.Warn("cascade retry failed",
				zap.String("project_id", record.ProjectID),
				zap.Int("attempts", record.Attempts),
				zap.Error(err),
			)
			continue
		}
		converged++
	}
	return converged, nil
}

// run deletes the project's tasks, strips the project from every team that
// references it, deletes the project and closes the journal entry, all in
// one atomic batch. Re-running it after success is harmless.
func (s *cascadeService) run(ctx context.Context, record *repository.CascadeRecord) error {
	projectID := record.ProjectID
	record.Attempts++

	tasks, err := s.taskRepo.FindByProjectID(ctx, projectID)
	if err != nil {
		return s.fail(ctx, record, fmt.Errorf("failed to load tasks: %w", err))
	}
	teams, err := s.teamRepo.FindByProjectID(ctx, projectID)
	if err != nil {
		return s.fail(ctx, record, fmt.Errorf("failed to load teams: %w", err))
	}

	ops := make([]store.WriteOp, 0, len(tasks)+len(teams)+2)
	for _, t := range tasks {
		ops = append(ops, s.taskRepo.DeleteOp(t.ID))
	}
	for _, team := range teams {
		team.RemoveProject(projectID)
		ops = append(ops, s.teamRepo.ProjectsOp(team.ID, team.Projects))
	}
	ops = append(ops, s.projectRepo.DeleteOp(projectID))

	done := *record
	done.Status = repository.CascadeDone
	done.LastError = ""
	done.UpdatedAt = s.now().UTC()
	ops = append(ops, s.cascadeRepo.SaveOp(&done))

	if err := s.store.AtomicBatch(ctx, ops); err != nil {
		return s.fail(ctx, record, err)
	}

	*record = done
	metrics.IncrementCascade("success")
	s.logger.Info("project cascade completed",
		zap.String("project_id", projectID),
		zap.Int("tasks_deleted", len(tasks)),
		zap.Int("teams_updated", len(teams)),
		zap.Int("attempt", record.Attempts),
	)
	s.recorder.Record(ctx, record.ActorID, projectID, activity.ProjectDeleted{
		TasksDeleted: len(tasks),
		TeamsUpdated: len(teams),
		Attempt:      record.Attempts,
	})
	return nil
}

// fail keeps the journal entry pending with the last error. Journal write
// failures are logged only; the entry stays pending either way.
func (s *cascadeService) fail(ctx context.Context, record *repository.CascadeRecord, cause error) error {
	metrics.IncrementCascade("failed")
	record.Status = repository.CascadePending
	record.LastError = cause.Error()
	record.UpdatedAt = s.now().UTC()
	if err := s.cascadeRepo.Save(ctx, record); err != nil {
		s.logger.Error("failed to update cascade journal",
			zap.String("project_id", record.ProjectID),
			zap.Error(err),
		)
	}
	return fmt.Errorf("cascade delete of project %s failed: %w", record.ProjectID, cause)
}
