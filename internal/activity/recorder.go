package activity

import (
	"context"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/logger"
	"github.com/Marga-Ghale/ora-project-integrity/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Second

// Recorder delivers activity records on behalf of business operations.
// Delivery failures are logged and counted, never returned.
type Recorder struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{
		sink:    sink,
		logger:  logger,
		timeout: defaultTimeout,
		now:     time.Now,
	}
}

// Record writes one activity. A nil recorder or sink drops it silently.
// The write outlives cancellation of ctx so that a finished request still
// gets its activity, bounded by the recorder's own timeout.
func (r *Recorder) Record(ctx context.Context, actorID, projectID string, payload Payload) {
	if r == nil || r.sink == nil || payload == nil {
		return
	}

	rec := Record{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		ProjectID: projectID,
		At:        r.now().UTC(),
		Payload:   payload,
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.sink.Write(writeCtx, rec); err != nil {
		metrics.IncrementActivityDrop(rec.Kind())
		logger.FromContext(ctx, r.logger).Warn("failed to record activity",
			zap.String("kind", rec.Kind()),
			zap.String("project_id", projectID),
			zap.Error(err),
		)
	}
}
