package activity

import (
	"context"
	"errors"

	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
)

// Sink receives activity records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// StoreSink persists records in the activities collection.
type StoreSink struct {
	repo repository.ActivityRepository
}

func NewStoreSink(repo repository.ActivityRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Write(ctx context.Context, rec Record) error {
	entry, err := rec.Entry()
	if err != nil {
		return err
	}
	return s.repo.Create(ctx, entry)
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
