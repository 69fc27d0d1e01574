// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SeedData writes a small demo graph: one project, two teams and a handful
// of tasks across the review lifecycle. It is skipped when the project
// already exists.
func SeedData(ctx context.Context, repos *repository.Repositories, logger *zap.Logger) error {
	existing, err := repos.ProjectRepo.FindByID(ctx, "proj-demo")
	if err != nil {
		return fmt.Errorf("failed to check seed data: %w", err)
	}
	if existing != nil {
		logger.Info("Seed data already exists, skipping")
		return nil
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)

	// ============================================
	// TEAMS
	// ============================================
	teams := []*repository.Team{
		{
			ID:   "team-platform",
			Name: "Platform",
			Lead: &repository.Member{UserID: "user-marga", Role: "lead"},
			Members: []repository.Member{
				{UserID: "user-bipin", Role: "developer"},
				{UserID: "user-sita", Role: "developer"},
			},
			Projects: []string{"proj-demo"},
		},
		{
			ID:       "team-design",
			Name:     "Design",
			Lead:     &repository.Member{UserID: "user-ram", Role: "lead"},
			Members:  []repository.Member{{UserID: "user-gita", Role: "designer"}},
			Projects: []string{"proj-demo"},
		},
	}
	for _, team := range teams {
		if err := repos.TeamRepo.Create(ctx, team); err != nil {
			return fmt.Errorf("failed to seed team %s: %w", team.ID, err)
		}
	}

	// ============================================
	// TASKS
	// ============================================
	tasks := []*repository.Task{
		{ID: "task-schema", TeamID: "team-platform", Title: "Design document schema", Status: types.StatusDone, Deadline: now.AddDate(0, 0, -10), AssignedTo: []string{"user-bipin"}, TaskRate: decimal.NewFromInt(120)},
		{ID: "task-api", TeamID: "team-platform", Title: "Expose integrity API", Status: types.StatusCompleted, Deadline: now.AddDate(0, 0, 5), AssignedTo: []string{"user-bipin", "user-sita"}, TaskRate: decimal.NewFromInt(200)},
		{ID: "task-cache", TeamID: "team-platform", Title: "Add read-through cache", Status: types.StatusInProgress, Deadline: now.AddDate(0, 0, 12), AssignedTo: []string{"user-sita"}},
		{ID: "task-wireframes", TeamID: "team-design", Title: "Dashboard wireframes", Status: types.StatusRevision, Deadline: now.AddDate(0, 0, 3), AssignedTo: []string{"user-gita"}, TaskRate: decimal.NewFromInt(80)},
		{ID: "task-icons", TeamID: "team-design", Title: "Status icon set", Status: types.StatusBacklog},
	}
	taskIDs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		task.ProjectID = "proj-demo"
		task.CreatedBy = "user-marga"
		task.UpdatedAt = now
		if err := repos.TaskRepo.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to seed task %s: %w", task.ID, err)
		}
		taskIDs = append(taskIDs, task.ID)
	}

	// ============================================
	// PROJECT
	// ============================================
	project := &repository.Project{
		ID:             "proj-demo",
		Name:           "Integrity Engine Rollout",
		Status:         types.ProjectInProgress,
		Priority:       types.PriorityHigh,
		CreatedAt:      now.AddDate(0, -1, 0),
		Deadline:       now.AddDate(0, 3, 0),
		CreatedBy:      "user-marga",
		ProjectManager: &repository.Member{UserID: "user-pm", Role: "manager"},
		Teams:          []string{"team-platform", "team-design"},
		TaskIDs:        taskIDs,
		Milestones: []repository.Milestone{
			{ID: "ms-alpha", Title: "Alpha", DueDate: now.AddDate(0, 0, 7), Status: types.MilestoneNotStarted, UpdatedAt: now},
			{ID: "ms-beta", Title: "Beta", DueDate: now.AddDate(0, 1, 0), Status: types.MilestoneNotStarted, UpdatedAt: now},
		},
	}
	if err := repos.ProjectRepo.Create(ctx, project); err != nil {
		return fmt.Errorf("failed to seed project: %w", err)
	}

	logger.Info("Seed data created",
		zap.String("project_id", project.ID),
		zap.Int("teams", len(teams)),
		zap.Int("tasks", len(tasks)),
	)
	return nil
}
