package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================
// TASK REQUEST MODELS
// ============================================

type AssignTaskRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type ReviewTaskRequest struct {
	Action string `json:"action" binding:"required"`
}

// ============================================
// TASK RESPONSE MODELS
// ============================================

type TaskResponse struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"projectId"`
	TeamID     string          `json:"teamId,omitempty"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	Deadline   *time.Time      `json:"deadline,omitempty"`
	AssignedTo []string        `json:"assignedTo"`
	TaskRate   decimal.Decimal `json:"taskRate"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type EarningResponse struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"taskId"`
	ProjectID string          `json:"projectId"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

type ReviewResponse struct {
	Task     TaskResponse      `json:"task"`
	Earnings []EarningResponse `json:"earnings"`
}

type EarningsSummaryResponse struct {
	UserID   string            `json:"userId"`
	Total    decimal.Decimal   `json:"total"`
	Earnings []EarningResponse `json:"earnings"`
}
