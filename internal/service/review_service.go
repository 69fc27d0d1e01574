package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/activity"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// earningNamespace seeds deterministic earning ids, one per task and
// assignee, so a retried approval cannot credit twice.
var earningNamespace = uuid.MustParse("6f1c3b52-8d1e-4c5e-9a57-2b7d0c7e9f41")

type ReviewResult struct {
	Task     *repository.Task      `json:"task"`
	Earnings []*repository.Earning `json:"earnings"`
}

type EarningsSummary struct {
	UserID   string                `json:"userId"`
	Total    decimal.Decimal       `json:"total"`
	Earnings []*repository.Earning `json:"earnings"`
}

// ReviewService drives the task review protocol on top of Task.status.
type ReviewService interface {
	Review(ctx context.Context, pc PermissionContext, taskID, action string) (*ReviewResult, error)
	Earnings(ctx context.Context, userID string) (*EarningsSummary, error)
}

type reviewService struct {
	store          store.Store
	taskRepo       repository.TaskRepository
	earningRepo    repository.EarningRepository
	permission     PermissionService
	metricsService MetricsService
	recorder       *activity.Recorder
	logger         *zap.Logger
	now            func() time.Time
}

func NewReviewService(
	repos *repository.Repositories,
	permission PermissionService,
	metricsService MetricsService,
	recorder *activity.Recorder,
	logger *zap.Logger,
	now func() time.Time,
) ReviewService {
	return &reviewService{
		store:          repos.Store,
		taskRepo:       repos.TaskRepo,
		earningRepo:    repos.EarningRepo,
		permission:     permission,
		metricsService: metricsService,
		recorder:       recorder,
		logger:         logger,
		now:            now,
	}
}

// Review applies one action. Approval writes the status change and the
// assignees' earnings in a single batch.
func (s *reviewService) Review(ctx context.Context, pc PermissionContext, taskID, action string) (*ReviewResult, error) {
	if !types.IsValidReviewAction(action) {
		return nil, fmt.Errorf("%w: unknown review action %q", ErrInvalidInput, action)
	}

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	if task == nil {
		return nil, ErrNotFound
	}

	if d := s.permission.CanReview(pc, task, action); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	next, v := s.permission.ValidateReviewAction(pc, task, action)
	if !v.Valid {
		return nil, fmt.Errorf("%w: %s", ErrConflict, v.Reason)
	}

	now := s.now().UTC()
	ops := []store.WriteOp{s.taskRepo.StatusOp(task.ID, next, now)}

	var earnings []*repository.Earning
	if action == types.ReviewApprove && task.TaskRate.IsPositive() {
		for _, userID := range task.AssignedTo {
			earning := &repository.Earning{
				ID:        uuid.NewSHA1(earningNamespace, []byte(task.ID+"/"+userID)).String(),
				UserID:    userID,
				TaskID:    task.ID,
				ProjectID: task.ProjectID,
				Amount:    task.TaskRate,
				CreatedAt: now,
			}
			earnings = append(earnings, earning)
			ops = append(ops, s.earningRepo.CreateOp(earning))
		}
	}

	if err := s.store.AtomicBatch(ctx, ops); err != nil {
		return nil, fmt.Errorf("failed to apply %s to task %s: %w", action, task.ID, err)
	}

	from := task.Status
	task.Status = next
	task.UpdatedAt = now

	s.recorder.Record(ctx, pc.UserID, task.ProjectID, activity.TaskReviewed{
		TaskID:   task.ID,
		Action:   action,
		From:     from,
		To:       next,
		Earnings: len(earnings),
	})

	if task.ProjectID != "" {
		_, err := s.metricsService.Recalculate(ctx, pc.UserID, task.ProjectID)
		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("reviewed task references a missing project",
				zap.String("task_id", task.ID),
				zap.String("project_id", task.ProjectID),
			)
		case err != nil:
			return nil, err
		}
	}

	if earnings == nil {
		earnings = []*repository.Earning{}
	}
	return &ReviewResult{Task: task, Earnings: earnings}, nil
}

func (s *reviewService) Earnings(ctx context.Context, userID string) (*EarningsSummary, error) {
	earnings, err := s.earningRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load earnings of %s: %w", userID, err)
	}

	total := decimal.Zero
	for _, e := range earnings {
		total = total.Add(e.Amount)
	}
	return &EarningsSummary{UserID: userID, Total: total, Earnings: earnings}, nil
}
