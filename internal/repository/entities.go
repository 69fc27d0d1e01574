package repository

import (
	"errors"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
	"github.com/shopspring/decimal"
)

// ============================================
// Documents
// ============================================

// Member is a user holding a role; used for team members, team leads and
// the project manager.
type Member struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// Milestone is owned by its Project and never stored on its own. Progress
// and Status are derived by the metrics recalculation.
type Milestone struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	DueDate   time.Time `json:"dueDate"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ProjectMetrics struct {
	TotalTasks     int     `json:"totalTasks"`
	CompletedTasks int     `json:"completedTasks"`
	CompletionRate float64 `json:"completionRate"`
	PendingTasks   int     `json:"pendingTasks"`
	ActiveMembers  int     `json:"activeMembers"`
}

// Project is the aggregate root for its milestones and metrics.
type Project struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Status         string         `json:"status"`
	Priority       string         `json:"priority,omitempty"`
	Deadline       time.Time      `json:"deadline"`
	CreatedAt      time.Time      `json:"createdAt"`
	CreatedBy      string         `json:"createdBy"`
	ProjectManager *Member        `json:"projectManager,omitempty"`
	Teams          []string       `json:"teams"`
	TaskIDs        []string       `json:"taskIds"`
	Milestones     []Milestone    `json:"milestones"`
	Metrics        ProjectMetrics `json:"metrics"`
	// Revision changes whenever the milestone set changes. Empty until the
	// first milestone write.
	Revision       string         `json:"revision,omitempty"`
}

type Task struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"projectId"`
	TeamID     string          `json:"teamId,omitempty"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	Deadline   time.Time       `json:"deadline"`
	AssignedTo []string        `json:"assignedTo"`
	TaskRate   decimal.Decimal `json:"taskRate"`
	CreatedBy  string          `json:"createdBy"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type Team struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Members  []Member `json:"members"`
	Lead     *Member  `json:"lead,omitempty"`
	Projects []string `json:"projects"`
}

// Earning is credited to an assignee when a paid task is approved.
type Earning struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	TaskID    string          `json:"taskId"`
	ProjectID string          `json:"projectId"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Cascade journal statuses
const (
	CascadePending = "pending"
	CascadeDone    = "done"
)

// CascadeRecord journals a project deletion until its dependents converge.
type CascadeRecord struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	ActorID   string    `json:"actorId"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ============================================
// Project aggregate
// ============================================

var ErrDuplicateMilestone = errors.New("milestone already exists")

func (p *Project) HasTask(taskID string) bool {
	return containsID(p.TaskIDs, taskID)
}

// AddTaskID reports whether the id was added.
func (p *Project) AddTaskID(taskID string) bool {
	if p.HasTask(taskID) {
		return false
	}
	p.TaskIDs = append(p.TaskIDs, taskID)
	return true
}

// RemoveTaskID reports whether the id was present.
func (p *Project) RemoveTaskID(taskID string) bool {
	if !p.HasTask(taskID) {
		return false
	}
	p.TaskIDs = removeID(p.TaskIDs, taskID)
	return true
}

func (p *Project) HasTeam(teamID string) bool {
	return containsID(p.Teams, teamID)
}

func (p *Project) IsManager(userID string) bool {
	return p.ProjectManager != nil && userID != "" && p.ProjectManager.UserID == userID
}

// WithinBounds reports whether t lies in [CreatedAt, Deadline].
func (p *Project) WithinBounds(t time.Time) bool {
	return !t.Before(p.CreatedAt) && !t.After(p.Deadline)
}

// AddMilestone appends a new milestone. Derived fields start from zero.
func (p *Project) AddMilestone(m Milestone) error {
	for _, existing := range p.Milestones {
		if existing.ID == m.ID {
			return ErrDuplicateMilestone
		}
	}
	m.Progress = 0
	if m.Status == "" {
		m.Status = types.MilestoneNotStarted
	}
	p.Milestones = append(p.Milestones, m)
	return nil
}

// ============================================
// Team helpers
// ============================================

// HasMember treats the lead as a member.
func (t *Team) HasMember(userID string) bool {
	if userID == "" {
		return false
	}
	if t.IsLead(userID) {
		return true
	}
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (t *Team) IsLead(userID string) bool {
	return t.Lead != nil && userID != "" && t.Lead.UserID == userID
}

func (t *Team) HasProject(projectID string) bool {
	return containsID(t.Projects, projectID)
}

// RemoveProject reports whether the back-reference was present.
func (t *Team) RemoveProject(projectID string) bool {
	if !t.HasProject(projectID) {
		return false
	}
	t.Projects = removeID(t.Projects, projectID)
	return true
}

func (t *Task) IsAssigned(userID string) bool {
	return containsID(t.AssignedTo, userID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
