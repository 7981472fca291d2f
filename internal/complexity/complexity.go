// Package complexity implements complexity regulation strategies. The
// ceiling strategy alternates search between complexifying and simplifying
// phases; the null strategy pins the search to complexifying.
package complexity

import (
	"fmt"

	"anagenesis/internal/evo"
)

// NullStrategy never leaves complexifying mode.
type NullStrategy struct{}

func (NullStrategy) DetermineMode(evo.StatsSnapshot) evo.ComplexityMode {
	return evo.ModeComplexifying
}

// CeilingStrategy switches to simplifying when mean complexity rises more
// than Ceiling above the level recorded at the last transition, and back to
// complexifying once simplification has both run for MinSimplifyGenerations
// and stalled (complexity moving average no longer falling).
type CeilingStrategy struct {
	ceiling                float64
	minSimplifyGenerations int

	mode          evo.ComplexityMode
	floor         float64
	floorSet      bool
	lastSwitchGen int
}

func NewCeilingStrategy(ceiling float64, minSimplifyGenerations int) (*CeilingStrategy, error) {
	if ceiling <= 0 {
		return nil, fmt.Errorf("complexity ceiling must be > 0, got %v", ceiling)
	}
	if minSimplifyGenerations < 1 {
		return nil, fmt.Errorf("min simplify generations must be >= 1, got %d", minSimplifyGenerations)
	}
	return &CeilingStrategy{
		ceiling:                ceiling,
		minSimplifyGenerations: minSimplifyGenerations,
		mode:                   evo.ModeComplexifying,
	}, nil
}

func (s *CeilingStrategy) DetermineMode(snap evo.StatsSnapshot) evo.ComplexityMode {
	if !s.floorSet {
		s.floor = snap.MeanComplexity
		s.floorSet = true
	}

	switch s.mode {
	case evo.ModeComplexifying:
		if snap.MeanComplexity > s.floor+s.ceiling {
			s.mode = evo.ModeSimplifying
			s.lastSwitchGen = snap.Generation
		}
	case evo.ModeSimplifying:
		elapsed := snap.Generation - s.lastSwitchGen
		stalled := snap.ComplexityMA.Count > 1 && snap.ComplexityMA.Mean >= snap.ComplexityMA.PrevMean
		if elapsed >= s.minSimplifyGenerations && stalled {
			s.mode = evo.ModeComplexifying
			s.lastSwitchGen = snap.Generation
			s.floor = snap.MeanComplexity
		}
	}
	return s.mode
}
