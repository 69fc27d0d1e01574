package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/ora-project-integrity/internal/api/middleware"
	"github.com/Marga-Ghale/ora-project-integrity/internal/models"
	"github.com/Marga-Ghale/ora-project-integrity/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TaskHandler struct {
	projectService service.ProjectService
	reviewService  service.ReviewService
	log            *zap.Logger
}

func NewTaskHandler(projectService service.ProjectService, reviewService service.ReviewService, log *zap.Logger) *TaskHandler {
	return &TaskHandler{
		projectService: projectService,
		reviewService:  reviewService,
		log:            log,
	}
}

// ============================================
// TASK PERMISSIONS & ASSIGNMENT
// ============================================

// GET /tasks/:id/permissions
func (h *TaskHandler) Permissions(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	perms, err := h.projectService.TaskPermissions(c.Request.Context(), pc, c.Param("id"))
	if err != nil {
		handleServiceError(c, h.log, "Task.Permissions", err)
		return
	}

	c.JSON(http.StatusOK, perms)
}

// POST /tasks/:id/assignees
func (h *TaskHandler) Assign(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	var req models.AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.projectService.AssignTask(c.Request.Context(), pc, c.Param("id"), req.UserID)
	if err != nil {
		handleServiceError(c, h.log, "Task.Assign", err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// ============================================
// TASK REVIEW
// ============================================

// POST /tasks/:id/review
func (h *TaskHandler) Review(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	var req models.ReviewTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.reviewService.Review(c.Request.Context(), pc, c.Param("id"), req.Action)
	if err != nil {
		handleServiceError(c, h.log, "Task.Review", err)
		return
	}

	c.JSON(http.StatusOK, models.ReviewResponse{
		Task:     toTaskResponse(result.Task),
		Earnings: toEarningResponses(result.Earnings),
	})
}

// GET /me/earnings
func (h *TaskHandler) MyEarnings(c *gin.Context) {
	pc, ok := middleware.RequireActor(c)
	if !ok {
		return
	}

	summary, err := h.reviewService.Earnings(c.Request.Context(), pc.UserID)
	if err != nil {
		handleServiceError(c, h.log, "Task.MyEarnings", err)
		return
	}

	c.JSON(http.StatusOK, models.EarningsSummaryResponse{
		UserID:   summary.UserID,
		Total:    summary.Total,
		Earnings: toEarningResponses(summary.Earnings),
	})
}
