package models

import (
	"encoding/json"
	"time"
)

// Request models
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type AddMilestoneRequest struct {
	ID      string    `json:"id"`
	Title   string    `json:"title" binding:"required"`
	DueDate time.Time `json:"dueDate" binding:"required"`
}

// Response models
type MilestoneResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	DueDate   time.Time `json:"dueDate"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ProjectMetricsResponse struct {
	TotalTasks     int     `json:"totalTasks"`
	CompletedTasks int     `json:"completedTasks"`
	CompletionRate float64 `json:"completionRate"`
	PendingTasks   int     `json:"pendingTasks"`
	ActiveMembers  int     `json:"activeMembers"`
}

type ProjectResponse struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Status           string                 `json:"status"`
	Priority         string                 `json:"priority,omitempty"`
	Deadline         time.Time              `json:"deadline"`
	CreatedAt        time.Time              `json:"createdAt"`
	CreatedBy        string                 `json:"createdBy"`
	ProjectManagerID *string                `json:"projectManagerId,omitempty"`
	Teams            []string               `json:"teams"`
	TaskIDs          []string               `json:"taskIds"`
	Milestones       []MilestoneResponse    `json:"milestones"`
	Metrics          ProjectMetricsResponse `json:"metrics"`
}

type AuditResponse struct {
	IsConsistent bool     `json:"isConsistent"`
	Issues       []string `json:"issues"`
	Fixed        []string `json:"fixed"`
}

type ActivityResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	ActorID   string          `json:"actorId"`
	ProjectID string          `json:"projectId"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"createdAt"`
}
