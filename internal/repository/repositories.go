package repository

import (
	"encoding/json"
	"fmt"

	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
)

type Repositories struct {
	// Store is exposed for multi-collection atomic batches.
	Store store.Store

	ProjectRepo  ProjectRepository
	TaskRepo     TaskRepository
	TeamRepo     TeamRepository
	EarningRepo  EarningRepository
	CascadeRepo  CascadeRepository
	ActivityRepo ActivityRepository
}

func NewRepositories(s store.Store) *Repositories {
	return &Repositories{
		Store:        s,
		ProjectRepo:  NewProjectRepository(s),
		TaskRepo:     NewTaskRepository(s),
		TeamRepo:     NewTeamRepository(s),
		EarningRepo:  NewEarningRepository(s),
		CascadeRepo:  NewCascadeRepository(s),
		ActivityRepo: NewActivityRepository(s),
	}
}

func decode[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &v, nil
}

func decodeAll[T any](docs []json.RawMessage) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, raw := range docs {
		v, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
