package service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
	"github.com/shopspring/decimal"
)

func permissionGraph() (*repository.Project, []*repository.Team) {
	project := &repository.Project{
		ID:             "proj-1",
		Status:         types.ProjectInProgress,
		CreatedAt:      date(2025, 1, 1),
		Deadline:       date(2025, 12, 31),
		CreatedBy:      "owner-1",
		ProjectManager: &repository.Member{UserID: "pm-1"},
		Teams:          []string{"team-1"},
	}
	teams := []*repository.Team{
		{
			ID:       "team-1",
			Members:  []repository.Member{{UserID: "dev-1"}},
			Lead:     &repository.Member{UserID: "lead-1"},
			Projects: []string{"proj-1"},
		},
		{
			// Not attached to the project.
			ID:      "team-2",
			Members: []repository.Member{{UserID: "outsider-1"}},
			Lead:    &repository.Member{UserID: "outsider-lead"},
		},
	}
	return project, teams
}

func TestProjectPermissions_AdminGetsEverything(t *testing.T) {
	svc := NewPermissionService()
	all := ProjectPermissions{true, true, true, true, true, true, true, true}

	project, teams := permissionGraph()
	inputs := []struct {
		project *repository.Project
		teams   []*repository.Team
	}{
		{project, teams},
		{nil, nil},
		{&repository.Project{ID: "x"}, nil},
	}
	for _, in := range inputs {
		if got := svc.ProjectPermissions(admin("root"), in.project, in.teams); got != all {
			t.Errorf("expected all capabilities, got %+v", got)
		}
	}
}

func TestProjectPermissions_ByRole(t *testing.T) {
	svc := NewPermissionService()
	project, teams := permissionGraph()

	tests := []struct {
		user string
		want ProjectPermissions
	}{
		{"owner-1", ProjectPermissions{CanView: true, CanEdit: true, CanManageTeams: true, CanCreateTasks: true}},
		{"pm-1", ProjectPermissions{
			CanView: true, CanEdit: true, CanManageTeams: true, CanCreateTasks: true,
			CanCreateMilestones: true, CanAssignTasks: true, CanApproveTaskCompletion: true,
		}},
		{"lead-1", ProjectPermissions{
			CanView: true, CanEdit: true, CanCreateTasks: true,
			CanCreateMilestones: true, CanAssignTasks: true, CanApproveTaskCompletion: true,
		}},
		{"dev-1", ProjectPermissions{CanView: true, CanCreateTasks: true}},
		{"outsider-1", ProjectPermissions{}},
		{"outsider-lead", ProjectPermissions{}},
		{"", ProjectPermissions{}},
	}

	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			if got := svc.ProjectPermissions(employee(tt.user), project, teams); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestProjectPermissions_NonAdminNeverDeletes(t *testing.T) {
	svc := NewPermissionService()
	project, teams := permissionGraph()
	for _, user := range []string{"owner-1", "pm-1", "lead-1", "dev-1"} {
		if svc.ProjectPermissions(employee(user), project, teams).CanDelete {
			t.Errorf("%s must not be able to delete", user)
		}
	}
}

func TestProjectPermissions_DegradesWithoutInputs(t *testing.T) {
	svc := NewPermissionService()
	project, _ := permissionGraph()

	if got := svc.ProjectPermissions(employee("dev-1"), project, nil); got.CanView {
		t.Error("a member cannot be derived without teams")
	}
	if got := svc.ProjectPermissions(employee("owner-1"), nil, nil); got != (ProjectPermissions{}) {
		t.Errorf("expected nothing without a project, got %+v", got)
	}
}

func TestTaskPermissions(t *testing.T) {
	svc := NewPermissionService()
	project, teams := permissionGraph()
	task := &repository.Task{
		ID:         "t1",
		ProjectID:  "proj-1",
		TeamID:     "team-1",
		CreatedBy:  "dev-1",
		AssignedTo: []string{"assignee-1"},
	}
	teams[0].Members = append(teams[0].Members, repository.Member{UserID: "assignee-1"})

	tests := []struct {
		user string
		want TaskPermissions
	}{
		{"assignee-1", TaskPermissions{CanView: true, CanEdit: true, CanComplete: true, CanComment: true, CanChangeStatus: true}},
		{"dev-1", TaskPermissions{CanView: true, CanEdit: true, CanDelete: true, CanComment: true}},
		{"pm-1", TaskPermissions{
			CanView: true, CanEdit: true, CanDelete: true, CanAssign: true,
			CanComplete: true, CanComment: true, CanChangeStatus: true,
		}},
		{"lead-1", TaskPermissions{
			CanView: true, CanEdit: true, CanDelete: true, CanAssign: true,
			CanComplete: true, CanComment: true, CanChangeStatus: true,
		}},
		{"owner-1", TaskPermissions{CanView: true, CanComment: true}},
		{"outsider-1", TaskPermissions{}},
	}

	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			if got := svc.TaskPermissions(employee(tt.user), task, project, teams); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}

	all := TaskPermissions{true, true, true, true, true, true, true}
	if got := svc.TaskPermissions(admin("root"), nil, nil, nil); got != all {
		t.Errorf("expected admin to get everything, got %+v", got)
	}
	if got := svc.TaskPermissions(employee("dev-1"), nil, project, teams); got != (TaskPermissions{}) {
		t.Errorf("expected nothing without a task, got %+v", got)
	}
}

func TestCanTransitionStatus(t *testing.T) {
	svc := NewPermissionService()
	project, teams := permissionGraph()

	tests := []struct {
		name    string
		pc      PermissionContext
		from    string
		to      string
		allowed bool
	}{
		{"planning to in-progress", employee("pm-1"), types.ProjectPlanning, types.ProjectInProgress, true},
		{"planning to on-hold", employee("pm-1"), types.ProjectPlanning, types.ProjectOnHold, true},
		{"planning to completed", employee("pm-1"), types.ProjectPlanning, types.ProjectCompleted, false},
		{"in-progress to completed", employee("lead-1"), types.ProjectInProgress, types.ProjectCompleted, true},
		{"in-progress to planning", employee("lead-1"), types.ProjectInProgress, types.ProjectPlanning, false},
		{"on-hold to planning", employee("owner-1"), types.ProjectOnHold, types.ProjectPlanning, true},
		{"on-hold to in-progress", employee("owner-1"), types.ProjectOnHold, types.ProjectInProgress, true},
		{"completed is terminal", employee("pm-1"), types.ProjectCompleted, types.ProjectInProgress, false},
		{"member without edit rights", employee("dev-1"), types.ProjectPlanning, types.ProjectInProgress, false},
		{"admin bypasses table", admin("root"), types.ProjectCompleted, types.ProjectPlanning, true},
		{"unknown status", admin("root"), types.ProjectPlanning, "archived", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := svc.CanTransitionStatus(tt.pc, project, teams, tt.from, tt.to)
			if d.Allowed != tt.allowed {
				t.Errorf("expected allowed=%v, got %+v", tt.allowed, d)
			}
			if !d.Allowed && d.Reason == "" {
				t.Error("a denial must carry a reason")
			}
		})
	}
}

func TestCanTransitionStatus_PermissionCheckedFirst(t *testing.T) {
	svc := NewPermissionService()
	project, teams := permissionGraph()

	d := svc.CanTransitionStatus(employee("dev-1"), project, teams, types.ProjectCompleted, types.ProjectInProgress)
	if d.Allowed || !strings.Contains(d.Reason, "permission") {
		t.Errorf("expected a permission denial, got %+v", d)
	}
}

func TestValidateTaskAssignment(t *testing.T) {
	svc := NewPermissionService()
	project, teams := permissionGraph()

	onTime := &repository.Task{ID: "t1", Deadline: date(2025, 6, 1)}
	late := &repository.Task{ID: "t2", Deadline: date(2026, 2, 1)}
	noDeadline := &repository.Task{ID: "t3"}

	completed := *project
	completed.Status = types.ProjectCompleted

	tests := []struct {
		name     string
		task     *repository.Task
		assignee string
		project  *repository.Project
		valid    bool
		reason   string
	}{
		{"member", onTime, "dev-1", project, true, ""},
		{"lead counts as member", onTime, "lead-1", project, true, ""},
		{"no deadline skips bound", noDeadline, "dev-1", project, true, ""},
		{"member of unattached team", onTime, "outsider-1", project, false, "member"},
		{"membership checked before status and deadline", late, "outsider-1", &completed, false, "member"},
		{"completed project", onTime, "dev-1", &completed, false, "completed"},
		{"status checked before deadline", late, "dev-1", &completed, false, "completed"},
		{"deadline after project", late, "dev-1", project, false, "deadline"},
		{"missing project", onTime, "dev-1", nil, false, "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := svc.ValidateTaskAssignment(tt.task, tt.assignee, tt.project, teams)
			if v.Valid != tt.valid {
				t.Fatalf("expected valid=%v, got %+v", tt.valid, v)
			}
			if !strings.Contains(v.Reason, tt.reason) {
				t.Errorf("expected reason containing %q, got %q", tt.reason, v.Reason)
			}
		})
	}
}

func TestValidateMilestone(t *testing.T) {
	svc := NewPermissionService()
	project, teams := permissionGraph()
	completed := *project
	completed.Status = types.ProjectCompleted

	tests := []struct {
		name    string
		pc      PermissionContext
		due     string
		project *repository.Project
		valid   bool
		reason  string
	}{
		{"manager inside bounds", employee("pm-1"), "2025-06-30", project, true, ""},
		{"lead on deadline", employee("lead-1"), "2025-12-31", project, true, ""},
		{"creator lacks capability", employee("owner-1"), "2025-06-30", project, false, "permission"},
		{"permission checked first", employee("dev-1"), "2030-01-01", &completed, false, "permission"},
		{"completed project", employee("pm-1"), "2025-06-30", &completed, false, "completed"},
		{"after deadline", employee("pm-1"), "2026-01-01", project, false, "deadline"},
		{"before start", employee("pm-1"), "2024-12-31", project, false, "start"},
		{"admin still bound by dates", admin("root"), "2026-01-01", project, false, "deadline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, err := time.Parse(dateLayout, tt.due)
			if err != nil {
				t.Fatal(err)
			}
			v := svc.ValidateMilestone(repository.Milestone{ID: "m", DueDate: due}, tt.project, tt.pc, teams)
			if v.Valid != tt.valid {
				t.Fatalf("expected valid=%v, got %+v", tt.valid, v)
			}
			if !strings.Contains(v.Reason, tt.reason) {
				t.Errorf("expected reason containing %q, got %q", tt.reason, v.Reason)
			}
		})
	}
}

func TestValidateReviewAction(t *testing.T) {
	svc := NewPermissionService()

	tests := []struct {
		name   string
		pc     PermissionContext
		status string
		action string
		next   string
	}{
		{"assignee starts", employee("dev-1"), types.StatusBacklog, types.ReviewStart, types.StatusInProgress},
		{"assignee submits", employee("dev-1"), types.StatusInProgress, types.ReviewSubmit, types.StatusCompleted},
		{"admin approves", admin("root"), types.StatusCompleted, types.ReviewApprove, types.StatusDone},
		{"admin requests revision", admin("root"), types.StatusCompleted, types.ReviewRequestRevision, types.StatusRevision},
		{"admin rejects", admin("root"), types.StatusCompleted, types.ReviewReject, types.StatusRejected},
		{"assignee resumes revision", employee("dev-1"), types.StatusRevision, types.ReviewResume, types.StatusInProgress},
		{"assignee resumes blocked", employee("dev-1"), types.StatusBlocked, types.ReviewResume, types.StatusInProgress},
		{"assignee resumes rejected", employee("dev-1"), types.StatusRejected, types.ReviewResume, types.StatusInProgress},
		{"assignee blocks", employee("dev-1"), types.StatusInProgress, types.ReviewBlock, types.StatusBlocked},
		{"employee cannot approve", employee("dev-1"), types.StatusCompleted, types.ReviewApprove, ""},
		{"employee cannot move completed", employee("dev-1"), types.StatusCompleted, types.ReviewResume, ""},
		{"non assignee", employee("other"), types.StatusBacklog, types.ReviewStart, ""},
		{"no direct completion", employee("dev-1"), types.StatusBacklog, types.ReviewSubmit, ""},
		{"done is terminal", admin("root"), types.StatusDone, types.ReviewResume, ""},
		{"unknown action", admin("root"), types.StatusBacklog, "archive", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &repository.Task{ID: "t1", Status: tt.status, AssignedTo: []string{"dev-1"}, TaskRate: decimal.NewFromInt(10)}
			next, v := svc.ValidateReviewAction(tt.pc, task, tt.action)
			if v.Valid != (tt.next != "") {
				t.Fatalf("expected valid=%v, got %+v", tt.next != "", v)
			}
			if next != tt.next {
				t.Errorf("expected next %q, got %q", tt.next, next)
			}
		})
	}
}

func TestPermissionService_ConcurrentUse(t *testing.T) {
	svc := NewPermissionService()
	project, teams := permissionGraph()
	want := svc.ProjectPermissions(employee("lead-1"), project, teams)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := svc.ProjectPermissions(employee("lead-1"), project, teams); got != want {
					t.Errorf("concurrent result differs: %+v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
