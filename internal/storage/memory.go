package storage

import (
	"context"
	"sort"
	"sync"

	"anagenesis/internal/model"
)

type MemoryStore struct {
	mu         sync.RWMutex
	runs       map[string]model.RunRecord
	history    map[string][]float64
	iterations map[string][]model.IterationRecord
	species    map[string][]model.SpeciesIteration
	champions  map[string]model.ChampionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]float64)
	s.iterations = make(map[string][]model.IterationRecord)
	s.species = make(map[string][]model.SpeciesIteration)
	s.champions = make(map[string]model.ChampionRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.history, id)
	delete(s.iterations, id)
	delete(s.species, id)
	delete(s.champions, id)
	return nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveIterations(_ context.Context, runID string, iterations []model.IterationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.IterationRecord, len(iterations))
	copy(copied, iterations)
	s.iterations[runID] = copied
	return nil
}

func (s *MemoryStore) GetIterations(_ context.Context, runID string) ([]model.IterationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	iterations, ok := s.iterations[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.IterationRecord, len(iterations))
	copy(copied, iterations)
	return copied, true, nil
}

func (s *MemoryStore) SaveSpeciesHistory(_ context.Context, runID string, history []model.SpeciesIteration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.SpeciesIteration, 0, len(history))
	for _, iteration := range history {
		species := make([]model.SpecieMetrics, len(iteration.Species))
		copy(species, iteration.Species)
		iteration.Species = species
		copied = append(copied, iteration)
	}
	s.species[runID] = copied
	return nil
}

func (s *MemoryStore) GetSpeciesHistory(_ context.Context, runID string) ([]model.SpeciesIteration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.species[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.SpeciesIteration, 0, len(history))
	for _, iteration := range history {
		species := make([]model.SpecieMetrics, len(iteration.Species))
		copy(species, iteration.Species)
		iteration.Species = species
		copied = append(copied, iteration)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveChampion(_ context.Context, runID string, champion model.ChampionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.champions[runID] = champion
	return nil
}

func (s *MemoryStore) GetChampion(_ context.Context, runID string) (model.ChampionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	champion, ok := s.champions[runID]
	return champion, ok, nil
}
