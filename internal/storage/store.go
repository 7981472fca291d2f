package storage

import (
	"context"

	"anagenesis/internal/model"
)

// Store defines persistence operations for run history. All backends are safe
// for concurrent use.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveIterations(ctx context.Context, runID string, iterations []model.IterationRecord) error
	GetIterations(ctx context.Context, runID string) ([]model.IterationRecord, bool, error)
	SaveSpeciesHistory(ctx context.Context, runID string, history []model.SpeciesIteration) error
	GetSpeciesHistory(ctx context.Context, runID string) ([]model.SpeciesIteration, bool, error)
	SaveChampion(ctx context.Context, runID string, champion model.ChampionRecord) error
	GetChampion(ctx context.Context, runID string) (model.ChampionRecord, bool, error)
}
