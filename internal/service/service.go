package service

import (
	"errors"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/activity"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// SystemActor is the actor id used by scheduled jobs.
const SystemActor = "system"

// PermissionContext identifies who is acting. It is built per request from
// the authenticated claims and passed explicitly to every operation.
type PermissionContext struct {
	UserID    string
	UserRole  string
	ProjectID string
}

func (pc PermissionContext) IsAdmin() bool {
	return pc.UserRole == types.RoleAdmin
}

// ============================================
// Services Container
// ============================================

type Services struct {
	Metrics      MetricsService
	Relationship RelationshipService
	Consistency  ConsistencyService
	Cascade      CascadeService
	Permission   PermissionService
	Review       ReviewService
	Project      ProjectService
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Repos    *repository.Repositories
	Recorder *activity.Recorder
	Logger   *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewServices(deps *ServiceDeps) *Services {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	repos := deps.Repos

	permissionService := NewPermissionService()

	metricsService := NewMetricsService(
		repos.ProjectRepo,
		repos.TaskRepo,
		deps.Recorder,
		now,
	)

	relationshipService := NewRelationshipService(
		repos.ProjectRepo,
		metricsService,
		deps.Recorder,
	)

	consistencyService := NewConsistencyService(
		repos.ProjectRepo,
		repos.TaskRepo,
		repos.TeamRepo,
		metricsService,
		deps.Recorder,
		log,
	)

	cascadeService := NewCascadeService(
		repos,
		deps.Recorder,
		log,
		now,
	)

	reviewService := NewReviewService(
		repos,
		permissionService,
		metricsService,
		deps.Recorder,
		log,
		now,
	)

	return &Services{
		Metrics:      metricsService,
		Relationship: relationshipService,
		Consistency:  consistencyService,
		Cascade:      cascadeService,
		Permission:   permissionService,
		Review:       reviewService,
		Project: NewProjectService(
			repos,
			permissionService,
			metricsService,
			relationshipService,
			consistencyService,
			cascadeService,
			deps.Recorder,
			now,
		),
	}
}
