package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

// Scheduler handles scheduled maintenance jobs
type Scheduler struct {
	cron        *cron.Cron
	cascade     service.CascadeService
	consistency service.ConsistencyService
	log         *zap.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(services *service.Services, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		cascade:     services.Cascade,
		consistency: services.Consistency,
		log:         log,
	}
}

// Register adds the jobs. An empty schedule disables its job.
func (s *Scheduler) Register(cascadeRetry, auditSweep string) error {
	if cascadeRetry != "" {
		if _, err := s.cron.AddFunc(cascadeRetry, s.retryCascades); err != nil {
			return fmt.Errorf("invalid cascade retry schedule %q: %w", cascadeRetry, err)
		}
	}
	if auditSweep != "" {
		if _, err := s.cron.AddFunc(auditSweep, s.sweepAudits); err != nil {
			return fmt.Errorf("invalid audit sweep schedule %q: %w", auditSweep, err)
		}
	}
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// retryCascades resumes project deletions whose batch failed.
func (s *Scheduler) retryCascades() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.cascade.RetryPending(ctx)
	if err != nil {
		s.log.Error("cascade retry failed", zap.Int("converged", n), zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("cascade retry converged", zap.Int("converged", n))
	}
}

// sweepAudits audits every project as the system actor.
func (s *Scheduler) sweepAudits() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.consistency.AuditAll(ctx, service.SystemActor)
	if err != nil {
		s.log.Error("audit sweep failed", zap.Error(err))
		return
	}
	s.log.Info("audit sweep finished", zap.Int("inconsistent", n))
}
