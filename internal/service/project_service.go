package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/activity"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
	"github.com/google/uuid"
)

const defaultActivityLimit = 50

type MilestoneInput struct {
	ID      string
	Title   string
	DueDate time.Time
}

// ProjectService is the gated entry point for every mutation: each call
// resolves the actor's capabilities before touching the engine.
type ProjectService interface {
	Permissions(ctx context.Context, pc PermissionContext, projectID string) (*ProjectPermissions, error)
	TaskPermissions(ctx context.Context, pc PermissionContext, taskID string) (*TaskPermissions, error)

	ChangeStatus(ctx context.Context, pc PermissionContext, projectID, next string) (*repository.Project, error)
	AddMilestone(ctx context.Context, pc PermissionContext, projectID string, input MilestoneInput) (*repository.Project, error)
	AssignTask(ctx context.Context, pc PermissionContext, taskID, assigneeID string) (*repository.Task, error)
	AttachTask(ctx context.Context, pc PermissionContext, projectID, taskID string) error
	DetachTask(ctx context.Context, pc PermissionContext, projectID, taskID string) error

	Audit(ctx context.Context, pc PermissionContext, projectID string) (*AuditReport, error)
	Recalculate(ctx context.Context, pc PermissionContext, projectID string) (*repository.Project, error)
	Delete(ctx context.Context, pc PermissionContext, projectID string) error
	Activity(ctx context.Context, pc PermissionContext, projectID string, limit int) ([]*repository.ActivityEntry, error)
}

type projectService struct {
	projectRepo    repository.ProjectRepository
	taskRepo       repository.TaskRepository
	teamRepo       repository.TeamRepository
	activityRepo   repository.ActivityRepository
	permission     PermissionService
	metricsService MetricsService
	relationship   RelationshipService
	consistency    ConsistencyService
	cascade        CascadeService
	recorder       *activity.Recorder
	now            func() time.Time
}

func NewProjectService(
	repos *repository.Repositories,
	permission PermissionService,
	metricsService MetricsService,
	relationship RelationshipService,
	consistency ConsistencyService,
	cascade CascadeService,
	recorder *activity.Recorder,
	now func() time.Time,
) ProjectService {
	return &projectService{
		projectRepo:    repos.ProjectRepo,
		taskRepo:       repos.TaskRepo,
		teamRepo:       repos.TeamRepo,
		activityRepo:   repos.ActivityRepo,
		permission:     permission,
		metricsService: metricsService,
		relationship:   relationship,
		consistency:    consistency,
		cascade:        cascade,
		recorder:       recorder,
		now:            now,
	}
}

// ============================================
// Loading helpers
// ============================================

// loadProject returns the project with the teams it references. Teams that
// no longer exist are skipped; the audit reports them.
func (s *projectService) loadProject(ctx context.Context, projectID string) (*repository.Project, []*repository.Team, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if project == nil {
		return nil, nil, ErrNotFound
	}
	teams, _, err := s.teamRepo.FindByIDs(ctx, project.Teams)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load teams of project %s: %w", projectID, err)
	}
	return project, teams, nil
}

// loadTask returns the task, its project (nil when the reference is
// dangling) and the teams relevant to both.
func (s *projectService) loadTask(ctx context.Context, taskID string) (*repository.Task, *repository.Project, []*repository.Team, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	if task == nil {
		return nil, nil, nil, ErrNotFound
	}

	project, teams, err := s.loadProject(ctx, task.ProjectID)
	if errors.Is(err, ErrNotFound) {
		project, teams = nil, nil
	} else if err != nil {
		return nil, nil, nil, err
	}

	if task.TeamID != "" && findTeam(teams, task.TeamID) == nil {
		team, err := s.teamRepo.FindByID(ctx, task.TeamID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load team %s: %w", task.TeamID, err)
		}
		if team != nil {
			teams = append(teams, team)
		}
	}
	return task, project, teams, nil
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

func withProject(pc PermissionContext, projectID string) PermissionContext {
	pc.ProjectID = projectID
	return pc
}

// ============================================
// Capabilities
// ============================================

func (s *projectService) Permissions(ctx context.Context, pc PermissionContext, projectID string) (*ProjectPermissions, error) {
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	perms := s.permission.ProjectPermissions(withProject(pc, projectID), project, teams)
	return &perms, nil
}

func (s *projectService) TaskPermissions(ctx context.Context, pc PermissionContext, taskID string) (*TaskPermissions, error) {
	task, project, teams, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	perms := s.permission.TaskPermissions(withProject(pc, task.ProjectID), task, project, teams)
	return &perms, nil
}

// ============================================
// Mutations
// ============================================

func (s *projectService) ChangeStatus(ctx context.Context, pc PermissionContext, projectID, next string) (*repository.Project, error) {
	if !types.IsValidProjectStatus(next) {
		return nil, fmt.Errorf("%w: invalid project status %q", ErrInvalidInput, next)
	}
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	decision := s.permission.CanTransitionStatus(withProject(pc, projectID), project, teams, project.Status, next)
	if !decision.Allowed {
		return nil, forbidden(decision.Reason)
	}
	if project.Status == next {
		return project, nil
	}

	if err := s.projectRepo.UpdateStatus(ctx, projectID, next); err != nil {
		return nil, fmt.Errorf("failed to update status of project %s: %w", projectID, err)
	}
	from := project.Status
	project.Status = next

	s.recorder.Record(ctx, pc.UserID, projectID, activity.ProjectStatusChanged{From: from, To: next})
	return project, nil
}

func (s *projectService) AddMilestone(ctx context.Context, pc PermissionContext, projectID string, input MilestoneInput) (*repository.Project, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || input.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: milestone title and due date are required", ErrInvalidInput)
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	pc = withProject(pc, projectID)

	for attempt := 1; ; attempt++ {
		milestone, err := s.appendMilestone(ctx, pc, projectID, id, title, input.DueDate)
		if errors.Is(err, store.ErrConflict) && attempt < maxRecalculateAttempts {
			continue
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: project %s kept changing, try again", ErrConflict, projectID)
		}
		if err != nil {
			return nil, err
		}

		s.recorder.Record(ctx, pc.UserID, projectID, activity.MilestoneAdded{
			MilestoneID: milestone.ID,
			Title:       milestone.Title,
			DueDate:     milestone.DueDate,
		})
		return s.metricsService.Recalculate(ctx, pc.UserID, projectID)
	}
}

// appendMilestone validates and appends against a fresh read of the
// project. The write fails with store.ErrConflict if the milestone set
// moved since that read.
func (s *projectService) appendMilestone(ctx context.Context, pc PermissionContext, projectID, id, title string, dueDate time.Time) (*repository.Milestone, error) {
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !s.permission.ProjectPermissions(pc, project, teams).CanCreateMilestones {
		return nil, forbidden("insufficient permissions to create milestones")
	}

	milestone := repository.Milestone{
		ID:        id,
		Title:     title,
		DueDate:   dueDate.UTC(),
		Status:    types.MilestoneNotStarted,
		UpdatedAt: s.now().UTC(),
	}
	if v := s.permission.ValidateMilestone(milestone, project, pc, teams); !v.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, v.Reason)
	}
	if err := project.AddMilestone(milestone); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}

	if err := s.projectRepo.UpdateMilestones(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to add milestone to project %s: %w", projectID, err)
	}
	return &milestone, nil
}

func (s *projectService) AssignTask(ctx context.Context, pc PermissionContext, taskID, assigneeID string) (*repository.Task, error) {
	if strings.TrimSpace(assigneeID) == "" {
		return nil, fmt.Errorf("%w: assignee is required", ErrInvalidInput)
	}
	task, project, teams, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %s of task %s", ErrNotFound, task.ProjectID, taskID)
	}

	pc = withProject(pc, project.ID)
	if !s.permission.TaskPermissions(pc, task, project, teams).CanAssign {
		return nil, forbidden("insufficient permissions to assign this task")
	}
	if v := s.permission.ValidateTaskAssignment(task, assigneeID, project, teams); !v.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, v.Reason)
	}
	if task.IsAssigned(assigneeID) {
		return task, nil
	}

	now := s.now().UTC()
	assignees := append(append([]string{}, task.AssignedTo...), assigneeID)
	if err := s.taskRepo.UpdateAssignees(ctx, taskID, assignees, now); err != nil {
		return nil, fmt.Errorf("failed to assign task %s: %w", taskID, err)
	}
	task.AssignedTo = assignees
	task.UpdatedAt = now

	s.recorder.Record(ctx, pc.UserID, project.ID, activity.TaskAssigned{TaskID: taskID, AssigneeID: assigneeID})

	if _, err := s.metricsService.Recalculate(ctx, pc.UserID, project.ID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *projectService) AttachTask(ctx context.Context, pc PermissionContext, projectID, taskID string) error {
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !s.permission.ProjectPermissions(withProject(pc, projectID), project, teams).CanEdit {
		return forbidden("insufficient permissions to edit this project")
	}

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	if task == nil {
		return ErrNotFound
	}
	if task.ProjectID != projectID {
		return fmt.Errorf("%w: task %s belongs to project %s", ErrInvalidInput, taskID, task.ProjectID)
	}

	return s.relationship.Link(ctx, pc.UserID, projectID, taskID)
}

func (s *projectService) DetachTask(ctx context.Context, pc PermissionContext, projectID, taskID string) error {
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !s.permission.ProjectPermissions(withProject(pc, projectID), project, teams).CanEdit {
		return forbidden("insufficient permissions to edit this project")
	}
	return s.relationship.Unlink(ctx, pc.UserID, projectID, taskID)
}

// ============================================
// Maintenance
// ============================================

func (s *projectService) Audit(ctx context.Context, pc PermissionContext, projectID string) (*AuditReport, error) {
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !s.permission.ProjectPermissions(withProject(pc, projectID), project, teams).CanView {
		return nil, forbidden("insufficient permissions to view this project")
	}
	return s.consistency.Audit(ctx, pc.UserID, projectID)
}

func (s *projectService) Recalculate(ctx context.Context, pc PermissionContext, projectID string) (*repository.Project, error) {
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !s.permission.ProjectPermissions(withProject(pc, projectID), project, teams).CanEdit {
		return nil, forbidden("insufficient permissions to edit this project")
	}
	return s.metricsService.Recalculate(ctx, pc.UserID, projectID)
}

func (s *projectService) Delete(ctx context.Context, pc PermissionContext, projectID string) error {
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !s.permission.ProjectPermissions(withProject(pc, projectID), project, teams).CanDelete {
		return forbidden("only admins can delete a project")
	}
	return s.cascade.CascadeDelete(ctx, pc.UserID, projectID)
}

func (s *projectService) Activity(ctx context.Context, pc PermissionContext, projectID string, limit int) ([]*repository.ActivityEntry, error) {
	project, teams, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !s.permission.ProjectPermissions(withProject(pc, projectID), project, teams).CanView {
		return nil, forbidden("insufficient permissions to view this project")
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	entries, err := s.activityRepo.FindByProjectID(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity of project %s: %w", projectID, err)
	}
	return entries, nil
}
