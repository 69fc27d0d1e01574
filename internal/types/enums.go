package types

// Project Status values
const (
	ProjectPlanning   = "planning"
	ProjectInProgress = "in-progress"
	ProjectOnHold     = "on-hold"
	ProjectCompleted  = "completed"
)

// Task Status values
const (
	StatusBacklog    = "backlog"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusRevision   = "revision"
	StatusDone       = "done"
	StatusBlocked    = "blocked"
	StatusRejected   = "rejected"
)

// Milestone Status values
const (
	MilestoneNotStarted = "not-started"
	MilestoneInProgress = "in-progress"
	MilestoneCompleted  = "completed"
	MilestoneOverdue    = "overdue"
)

// User Roles
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Task review actions
const (
	ReviewStart           = "start"
	ReviewSubmit          = "submit"
	ReviewApprove         = "approve"
	ReviewRequestRevision = "request_revision"
	ReviewReject          = "reject"
	ReviewBlock           = "block"
	ReviewResume          = "resume"
)

// Project Priority values
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Valid values for validation
var ValidProjectStatuses = []string{
	ProjectPlanning, ProjectInProgress, ProjectOnHold, ProjectCompleted,
}

var ValidTaskStatuses = []string{
	StatusBacklog, StatusInProgress, StatusCompleted, StatusRevision,
	StatusDone, StatusBlocked, StatusRejected,
}

var ValidRoles = []string{RoleAdmin, RoleEmployee}

var ValidReviewActions = []string{
	ReviewStart, ReviewSubmit, ReviewApprove, ReviewRequestRevision,
	ReviewReject, ReviewBlock, ReviewResume,
}

func IsValidProjectStatus(status string) bool {
	return contains(ValidProjectStatuses, status)
}

func IsValidTaskStatus(status string) bool {
	return contains(ValidTaskStatuses, status)
}

func IsValidRole(role string) bool {
	return contains(ValidRoles, role)
}

func IsValidReviewAction(action string) bool {
	return contains(ValidReviewActions, action)
}

// IsFinishedTask reports whether a task status counts as completed work.
func IsFinishedTask(status string) bool {
	return status == StatusCompleted || status == StatusDone
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
