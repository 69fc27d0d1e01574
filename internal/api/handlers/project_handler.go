package handlers

import (
	"net/http"
	"strconv"

	"github.com/Marga-Ghale/ora-project-integrity/internal/api/middleware"
	"github.com/Marga-Ghale/ora-project-integrity/internal/models"
	"github.com/Marga-Ghale/ora-project-integrity/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ============================================
// Project Handler
// ============================================

type ProjectHandler struct {
	projectService service.ProjectService
	log            *zap.Logger
}

func NewProjectHandler(projectService service.ProjectService, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		log:            log,
	}
}

// Permissions - Capabilities of the caller on a project
// GET /projects/:id/permissions
func (h *ProjectHandler) Permissions(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	perms, err := h.projectService.Permissions(c.Request.Context(), pc, c.Param("id"))
	if err != nil {
		handleServiceError(c, h.log, "Project.Permissions", err)
		return
	}

	c.JSON(http.StatusOK, perms)
}

// Recalculate - Recompute metrics and milestones
// POST /projects/:id/recalculate
func (h *ProjectHandler) Recalculate(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	project, err := h.projectService.Recalculate(c.Request.Context(), pc, c.Param("id"))
	if err != nil {
		handleServiceError(c, h.log, "Project.Recalculate", err)
		return
	}

	c.JSON(http.StatusOK, toProjectResponse(project))
}

// Audit - Detect and repair relationship drift
// POST /projects/:id/audit
func (h *ProjectHandler) Audit(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	report, err := h.projectService.Audit(c.Request.Context(), pc, c.Param("id"))
	if err != nil {
		handleServiceError(c, h.log, "Project.Audit", err)
		return
	}

	c.JSON(http.StatusOK, models.AuditResponse{
		IsConsistent: report.IsConsistent,
		Issues:       safeStringSlice(report.Issues),
		Fixed:        safeStringSlice(report.Fixed),
	})
}

// ChangeStatus - Move a project through its lifecycle
// PATCH /projects/:id/status
func (h *ProjectHandler) ChangeStatus(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	var req models.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.projectService.ChangeStatus(c.Request.Context(), pc, c.Param("id"), req.Status)
	if err != nil {
		handleServiceError(c, h.log, "Project.ChangeStatus", err)
		return
	}

	c.JSON(http.StatusOK, toProjectResponse(project))
}

// AddMilestone - Add a milestone to a project
// POST /projects/:id/milestones
func (h *ProjectHandler) AddMilestone(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	var req models.AddMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.projectService.AddMilestone(c.Request.Context(), pc, c.Param("id"), service.MilestoneInput{
		ID:      req.ID,
		Title:   req.Title,
		DueDate: req.DueDate,
	})
	if err != nil {
		handleServiceError(c, h.log, "Project.AddMilestone", err)
		return
	}

	c.JSON(http.StatusCreated, toProjectResponse(project))
}

// AttachTask - Link a task to its project
// POST /projects/:id/tasks/:taskId
func (h *ProjectHandler) AttachTask(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	if err := h.projectService.AttachTask(c.Request.Context(), pc, c.Param("id"), c.Param("taskId")); err != nil {
		handleServiceError(c, h.log, "Project.AttachTask", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DetachTask - Unlink a task from its project
// DELETE /projects/:id/tasks/:taskId
func (h *ProjectHandler) DetachTask(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	if err := h.projectService.DetachTask(c.Request.Context(), pc, c.Param("id"), c.Param("taskId")); err != nil {
		handleServiceError(c, h.log, "Project.DetachTask", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete - Cascade delete a project
// DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), pc, c.Param("id")); err != nil {
		handleServiceError(c, h.log, "Project.Delete", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Activity - Recent activity on a project
// GET /projects/:id/activity?limit=
func (h *ProjectHandler) Activity(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := h.projectService.Activity(c.Request.Context(), pc, c.Param("id"), limit)
	if err != nil {
		handleServiceError(c, h.log, "Project.Activity", err)
		return
	}

	c.JSON(http.StatusOK, toActivityResponses(entries))
}
