// Package activity records what the integrity engine did, one typed payload
// per action kind, and delivers the records to best-effort sinks.
package activity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
)

// Kinds
const (
	KindMetricsRecalculated  = "metrics_recalculated"
	KindTaskLinked           = "task_linked"
	KindTaskUnlinked         = "task_unlinked"
	KindProjectAudited       = "project_audited"
	KindProjectDeleted       = "project_deleted"
	KindProjectStatusChanged = "project_status_changed"
	KindMilestoneAdded       = "milestone_added"
	KindTaskAssigned         = "task_assigned"
	KindTaskReviewed         = "task_reviewed"
)

// Payload is implemented by every action-specific details type.
type Payload interface {
	Kind() string
}

type MetricsRecalculated struct {
	TotalTasks     int     `json:"totalTasks"`
	CompletedTasks int     `json:"completedTasks"`
	CompletionRate float64 `json:"completionRate"`
	Milestones     int     `json:"milestones"`
}

type TaskLinked struct {
	TaskID string `json:"taskId"`
}

type TaskUnlinked struct {
	TaskID string `json:"taskId"`
}

type ProjectAudited struct {
	IsConsistent bool     `json:"isConsistent"`
	Issues       []string `json:"issues"`
	Fixed        []string `json:"fixed"`
}

type ProjectDeleted struct {
	TasksDeleted int `json:"tasksDeleted"`
	TeamsUpdated int `json:"teamsUpdated"`
	Attempt      int `json:"attempt"`
}

type ProjectStatusChanged struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type MilestoneAdded struct {
	MilestoneID string    `json:"milestoneId"`
	Title       string    `json:"title"`
	DueDate     time.Time `json:"dueDate"`
}

type TaskAssigned struct {
	TaskID     string `json:"taskId"`
	AssigneeID string `json:"assigneeId"`
}

type TaskReviewed struct {
	TaskID   string `json:"taskId"`
	Action   string `json:"action"`
	From     string `json:"from"`
	To       string `json:"to"`
	Earnings int    `json:"earnings"`
}

func (MetricsRecalculated) Kind() string  { return KindMetricsRecalculated }
func (TaskLinked) Kind() string           { return KindTaskLinked }
func (TaskUnlinked) Kind() string         { return KindTaskUnlinked }
func (ProjectAudited) Kind() string       { return KindProjectAudited }
func (ProjectDeleted) Kind() string       { return KindProjectDeleted }
func (ProjectStatusChanged) Kind() string { return KindProjectStatusChanged }
func (MilestoneAdded) Kind() string       { return KindMilestoneAdded }
func (TaskAssigned) Kind() string         { return KindTaskAssigned }
func (TaskReviewed) Kind() string         { return KindTaskReviewed }

// Record is one activity. The actor is always explicit.
type Record struct {
	ID        string
	ActorID   string
	ProjectID string
	At        time.Time
	Payload   Payload
}

func (r Record) Kind() string {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Kind()
}

// Entry converts the record into its stored form.
func (r Record) Entry() (*repository.ActivityEntry, error) {
	if r.Payload == nil {
		return nil, fmt.Errorf("activity %s has no payload", r.ID)
	}
	details, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s details: %w", r.Kind(), err)
	}
	return &repository.ActivityEntry{
		ID:        r.ID,
		Kind:      r.Kind(),
		ActorID:   r.ActorID,
		ProjectID: r.ProjectID,
		Details:   details,
		CreatedAt: r.At,
	}, nil
}

// MarshalJSON emits the {kind, details} envelope used on the wire.
func (r Record) MarshalJSON() ([]byte, error) {
	entry, err := r.Entry()
	if err != nil {
		return nil, err
	}
	return json.Marshal(entry)
}
