package ports

import (
	"context"

	"gorevsig/domain/core"
	"gorevsig/domain/run"
)

// RunRepository persists ranking runs
type RunRepository interface {
	SaveRun(ctx context.Context, r *run.Run) error
	GetRun(ctx context.Context, id core.RunID) (*run.Run, error)
	ListRuns(ctx context.Context, limit int) ([]run.Manifest, error)
}
