package handlers

import (
	"errors"
	"net/http"

	"github.com/Marga-Ghale/ora-project-integrity/internal/logger"
	"github.com/Marga-Ghale/ora-project-integrity/internal/models"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Project *ProjectHandler
	Task    *TaskHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		Project: NewProjectHandler(services.Project, log),
		Task:    NewTaskHandler(services.Project, services.Review, log),
	}
}

// Register mounts every route on an authenticated group.
func (h *Handlers) Register(protected *gin.RouterGroup) {
	projects := protected.Group("/projects")
	{
		projects.GET("/:id/permissions", h.Project.Permissions)
		projects.GET("/:id/activity", h.Project.Activity)
		projects.POST("/:id/recalculate", h.Project.Recalculate)
		projects.POST("/:id/audit", h.Project.Audit)
		projects.PATCH("/:id/status", h.Project.ChangeStatus)
		projects.POST("/:id/milestones", h.Project.AddMilestone)
		projects.POST("/:id/tasks/:taskId", h.Project.AttachTask)
		projects.DELETE("/:id/tasks/:taskId", h.Project.DetachTask)
		projects.DELETE("/:id", h.Project.Delete)
	}

	tasks := protected.Group("/tasks")
	{
		tasks.GET("/:id/permissions", h.Task.Permissions)
		tasks.POST("/:id/assignees", h.Task.Assign)
		tasks.POST("/:id/review", h.Task.Review)
	}

	protected.GET("/me/earnings", h.Task.MyEarnings)
}

// ============================================
// Error mapping
// ============================================

// handleServiceError writes the status for a service error. Client errors
// carry the service message; everything else is logged and hidden.
func handleServiceError(c *gin.Context, log *zap.Logger, action string, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Resource not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	default:
		logger.FromContext(c.Request.Context(), log).Error("request failed",
			zap.String("action", action),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
}

// ============================================
// Response Mappers
// ============================================

func toProjectResponse(p *repository.Project) models.ProjectResponse {
	if p == nil {
		return models.ProjectResponse{}
	}

	resp := models.ProjectResponse{
		ID:         p.ID,
		Name:       p.Name,
		Status:     p.Status,
		Priority:   p.Priority,
		Deadline:   p.Deadline,
		CreatedAt:  p.CreatedAt,
		CreatedBy:  p.CreatedBy,
		Teams:      safeStringSlice(p.Teams),
		TaskIDs:    safeStringSlice(p.TaskIDs),
		Milestones: make([]models.MilestoneResponse, len(p.Milestones)),
		Metrics: models.ProjectMetricsResponse{
			TotalTasks:     p.Metrics.TotalTasks,
			CompletedTasks: p.Metrics.CompletedTasks,
			CompletionRate: p.Metrics.CompletionRate,
			PendingTasks:   p.Metrics.PendingTasks,
			ActiveMembers:  p.Metrics.ActiveMembers,
		},
	}
	if p.ProjectManager != nil {
		resp.ProjectManagerID = &p.ProjectManager.UserID
	}
	for i, m := range p.Milestones {
		resp.Milestones[i] = models.MilestoneResponse{
			ID:        m.ID,
			Title:     m.Title,
			DueDate:   m.DueDate,
			Status:    m.Status,
			Progress:  m.Progress,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return resp
}

func toTaskResponse(t *repository.Task) models.TaskResponse {
	if t == nil {
		return models.TaskResponse{}
	}

	resp := models.TaskResponse{
		ID:         t.ID,
		ProjectID:  t.ProjectID,
		TeamID:     t.TeamID,
		Title:      t.Title,
		Status:     t.Status,
		AssignedTo: safeStringSlice(t.AssignedTo),
		TaskRate:   t.TaskRate,
		CreatedBy:  t.CreatedBy,
		UpdatedAt:  t.UpdatedAt,
	}
	if !t.Deadline.IsZero() {
		deadline := t.Deadline
		resp.Deadline = &deadline
	}
	return resp
}

func toEarningResponses(earnings []*repository.Earning) []models.EarningResponse {
	resp := make([]models.EarningResponse, len(earnings))
	for i, e := range earnings {
		resp[i] = models.EarningResponse{
			ID:        e.ID,
			TaskID:    e.TaskID,
			ProjectID: e.ProjectID,
			Amount:    e.Amount,
			CreatedAt: e.CreatedAt,
		}
	}
	return resp
}

func toActivityResponses(entries []*repository.ActivityEntry) []models.ActivityResponse {
	resp := make([]models.ActivityResponse, len(entries))
	for i, e := range entries {
		resp[i] = models.ActivityResponse{
			ID:        e.ID,
			Kind:      e.Kind,
			ActorID:   e.ActorID,
			ProjectID: e.ProjectID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		}
	}
	return resp
}

// Helper to ensure nil slices become empty slices
func safeStringSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
