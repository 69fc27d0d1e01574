package service

import (
	"fmt"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
)

// ============================================
// Capability sets
// ============================================

type ProjectPermissions struct {
	CanView                  bool `json:"canView"`
	CanEdit                  bool `json:"canEdit"`
	CanDelete                bool `json:"canDelete"`
	CanManageTeams           bool `json:"canManageTeams"`
	CanCreateTasks           bool `json:"canCreateTasks"`
	CanCreateMilestones      bool `json:"canCreateMilestones"`
	CanAssignTasks           bool `json:"canAssignTasks"`
	CanApproveTaskCompletion bool `json:"canApproveTaskCompletion"`
}

type TaskPermissions struct {
	CanView         bool `json:"canView"`
	CanEdit         bool `json:"canEdit"`
	CanDelete       bool `json:"canDelete"`
	CanAssign       bool `json:"canAssign"`
	CanComplete     bool `json:"canComplete"`
	CanComment      bool `json:"canComment"`
	CanChangeStatus bool `json:"canChangeStatus"`
}

// Decision answers whether an action is allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Validation answers whether a business rule holds.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func allow() Decision                  { return Decision{Allowed: true} }
func deny(reason string) Decision      { return Decision{Reason: reason} }
func valid() Validation                { return Validation{Valid: true} }
func invalid(reason string) Validation { return Validation{Reason: reason} }

// PermissionService computes capabilities and validates business rules.
// It has no state and performs no I/O; every input is passed in. Missing
// inputs produce the most restrictive answer.
type PermissionService interface {
	ProjectPermissions(pc PermissionContext, project *repository.Project, teams []*repository.Team) ProjectPermissions
	TaskPermissions(pc PermissionContext, task *repository.Task, project *repository.Project, teams []*repository.Team) TaskPermissions

	CanTransitionStatus(pc PermissionContext, project *repository.Project, teams []*repository.Team, current, next string) Decision
	ValidateTaskAssignment(task *repository.Task, assigneeID string, project *repository.Project, teams []*repository.Team) Validation
	ValidateMilestone(m repository.Milestone, project *repository.Project, pc PermissionContext, teams []*repository.Team) Validation

	// CanReview checks who may perform a review action on a task.
	CanReview(pc PermissionContext, task *repository.Task, action string) Decision
	// ValidateReviewAction checks the actor and the task's current status and
	// returns the status the action leads to.
	ValidateReviewAction(pc PermissionContext, task *repository.Task, action string) (string, Validation)
}

type permissionService struct{}

func NewPermissionService() PermissionService {
	return &permissionService{}
}

// ============================================
// Role derivation
// ============================================

type projectRoles struct {
	isCreator        bool
	isProjectManager bool
	isTeamMember     bool
	isTeamLeader     bool
}

// deriveProjectRoles only counts teams that are attached to the project.
func deriveProjectRoles(userID string, project *repository.Project, teams []*repository.Team) projectRoles {
	var r projectRoles
	if project == nil || userID == "" {
		return r
	}
	r.isCreator = project.CreatedBy == userID
	r.isProjectManager = project.IsManager(userID)

	for _, team := range teams {
		if team == nil || !project.HasTeam(team.ID) {
			continue
		}
		if team.HasMember(userID) {
			r.isTeamMember = true
		}
		if team.IsLead(userID) {
			r.isTeamLeader = true
		}
	}
	return r
}

func findTeam(teams []*repository.Team, teamID string) *repository.Team {
	if teamID == "" {
		return nil
	}
	for _, team := range teams {
		if team != nil && team.ID == teamID {
			return team
		}
	}
	return nil
}

// ============================================
// Project & task permissions
// ============================================

func (s *permissionService) ProjectPermissions(pc PermissionContext, project *repository.Project, teams []*repository.Team) ProjectPermissions {
	if pc.IsAdmin() {
		return ProjectPermissions{
			CanView:                  true,
			CanEdit:                  true,
			CanDelete:                true,
			CanManageTeams:           true,
			CanCreateTasks:           true,
			CanCreateMilestones:      true,
			CanAssignTasks:           true,
			CanApproveTaskCompletion: true,
		}
	}

	r := deriveProjectRoles(pc.UserID, project, teams)
	canView := r.isTeamMember || r.isCreator || r.isProjectManager
	canLead := r.isProjectManager || r.isTeamLeader

	return ProjectPermissions{
		CanView:                  canView,
		CanEdit:                  r.isCreator || r.isProjectManager || r.isTeamLeader,
		CanDelete:                false,
		CanManageTeams:           r.isCreator || r.isProjectManager,
		CanCreateTasks:           canView,
		CanCreateMilestones:      canLead,
		CanAssignTasks:           canLead,
		CanApproveTaskCompletion: canLead,
	}
}

func (s *permissionService) TaskPermissions(pc PermissionContext, task *repository.Task, project *repository.Project, teams []*repository.Team) TaskPermissions {
	if pc.IsAdmin() {
		return TaskPermissions{
			CanView:         true,
			CanEdit:         true,
			CanDelete:       true,
			CanAssign:       true,
			CanComplete:     true,
			CanComment:      true,
			CanChangeStatus: true,
		}
	}
	if task == nil || pc.UserID == "" {
		return TaskPermissions{}
	}

	projectPerms := s.ProjectPermissions(pc, project, teams)
	isAssigned := task.IsAssigned(pc.UserID)
	isCreator := task.CreatedBy == pc.UserID
	isProjectManager := project != nil && project.IsManager(pc.UserID)
	isTeamLeader := false
	if team := findTeam(teams, task.TeamID); team != nil {
		isTeamLeader = team.IsLead(pc.UserID)
	}

	canWork := isAssigned || isProjectManager || isTeamLeader

	return TaskPermissions{
		CanView:         projectPerms.CanView,
		CanEdit:         canWork || isCreator,
		CanDelete:       isCreator || isProjectManager || isTeamLeader,
		CanAssign:       projectPerms.CanAssignTasks,
		CanComplete:     canWork,
		CanComment:      projectPerms.CanView,
		CanChangeStatus: canWork,
	}
}

// ============================================
// Project status state machine
// ============================================

var projectTransitions = map[string][]string{
	types.ProjectPlanning:   {types.ProjectInProgress, types.ProjectOnHold},
	types.ProjectInProgress: {types.ProjectCompleted, types.ProjectOnHold},
	types.ProjectOnHold:     {types.ProjectInProgress, types.ProjectPlanning},
	types.ProjectCompleted:  {},
}

// CanTransitionStatus lets admins bypass the transition table. Everyone else
// needs edit rights first, then a transition the table allows.
func (s *permissionService) CanTransitionStatus(pc PermissionContext, project *repository.Project, teams []*repository.Team, current, next string) Decision {
	if !types.IsValidProjectStatus(next) {
		return deny(fmt.Sprintf("invalid project status %q", next))
	}
	if pc.IsAdmin() {
		return allow()
	}
	if !s.ProjectPermissions(pc, project, teams).CanEdit {
		return deny("insufficient permissions to change project status")
	}
	for _, allowed := range projectTransitions[current] {
		if allowed == next {
			return allow()
		}
	}
	return deny(fmt.Sprintf("cannot change project status from %s to %s", current, next))
}

// ============================================
// Business rule validators
// ============================================

// ValidateTaskAssignment checks membership, then project status, then the
// deadline bound. The first failure is reported.
func (s *permissionService) ValidateTaskAssignment(task *repository.Task, assigneeID string, project *repository.Project, teams []*repository.Team) Validation {
	if task == nil || project == nil {
		return invalid("task and project are required")
	}

	if !deriveProjectRoles(assigneeID, project, teams).isTeamMember {
		return invalid("assignee is not a member of any team attached to the project")
	}
	if project.Status == types.ProjectCompleted {
		return invalid("cannot assign tasks in a completed project")
	}
	if !task.Deadline.IsZero() && task.Deadline.After(project.Deadline) {
		return invalid("task deadline is after the project deadline")
	}
	return valid()
}

func (s *permissionService) ValidateMilestone(m repository.Milestone, project *repository.Project, pc PermissionContext, teams []*repository.Team) Validation {
	if project == nil {
		return invalid("project is required")
	}

	if !s.ProjectPermissions(pc, project, teams).CanCreateMilestones {
		return invalid("insufficient permissions to create milestones")
	}
	if project.Status == types.ProjectCompleted {
		return invalid("cannot add milestones to a completed project")
	}
	if m.DueDate.After(project.Deadline) {
		return invalid("milestone due date is after the project deadline")
	}
	if m.DueDate.Before(project.CreatedAt) {
		return invalid("milestone due date is before the project start")
	}
	return valid()
}

// ============================================
// Task review protocol
// ============================================

type reviewRule struct {
	from      []string
	to        string
	adminOnly bool
}

var reviewRules = map[string]reviewRule{
	types.ReviewStart:           {from: []string{types.StatusBacklog}, to: types.StatusInProgress},
	types.ReviewSubmit:          {from: []string{types.StatusInProgress}, to: types.StatusCompleted},
	types.ReviewApprove:         {from: []string{types.StatusCompleted}, to: types.StatusDone, adminOnly: true},
	types.ReviewRequestRevision: {from: []string{types.StatusCompleted}, to: types.StatusRevision, adminOnly: true},
	types.ReviewReject:          {from: []string{types.StatusCompleted}, to: types.StatusRejected, adminOnly: true},
	types.ReviewBlock:           {from: []string{types.StatusBacklog, types.StatusInProgress}, to: types.StatusBlocked},
	types.ReviewResume:          {from: []string{types.StatusRevision, types.StatusBlocked, types.StatusRejected}, to: types.StatusInProgress},
}

func (s *permissionService) CanReview(pc PermissionContext, task *repository.Task, action string) Decision {
	rule, ok := reviewRules[action]
	if !ok {
		return deny(fmt.Sprintf("unknown review action %q", action))
	}
	if task == nil {
		return deny("task is required")
	}
	if pc.IsAdmin() {
		return allow()
	}
	if !task.IsAssigned(pc.UserID) {
		return deny("only assignees can act on this task")
	}
	if rule.adminOnly {
		return deny(fmt.Sprintf("only admins can %s a task", action))
	}
	return allow()
}

func (s *permissionService) ValidateReviewAction(pc PermissionContext, task *repository.Task, action string) (string, Validation) {
	if d := s.CanReview(pc, task, action); !d.Allowed {
		return "", invalid(d.Reason)
	}
	rule := reviewRules[action]
	for _, from := range rule.from {
		if task.Status == from {
			return rule.to, valid()
		}
	}
	return "", invalid(fmt.Sprintf("cannot %s a task that is %s", action, task.Status))
}
