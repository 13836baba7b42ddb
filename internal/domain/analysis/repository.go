package analysis

import (
	"context"

	"github.com/google/uuid"
)

// RunRepository persists completed runs
type RunRepository interface {
	SaveRun(ctx context.Context, run *Run) error
	LoadRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
}
