package store

import (
	"context"
	"errors"

	"github.com/seantiz/forge/internal/model"
)

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStats holds aggregate run statistics.
type RunStats struct {
	Total            int            `json:"total"`
	CountByStatus    map[string]int `json:"count_by_status"`
	CountByObjective map[string]int `json:"count_by_objective"`
	AvgDurationMS    float64        `json:"avg_duration_ms"`
	TotalGenerations int            `json:"total_generations"`
}

// Store defines the persistence operations for runs and their generations.
type Store interface {
	CreateRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error)
	UpdateRunStatus(ctx context.Context, id, status string) error
	UpdateRun(ctx context.Context, r *model.Run) error
	GetRunStats(ctx context.Context) (*RunStats, error)
	InsertGeneration(ctx context.Context, g *model.GenerationRecord) error
	ListGenerations(ctx context.Context, runID string) ([]model.GenerationRecord, error)
	Close() error
}
