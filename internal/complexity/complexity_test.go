package complexity

import (
	"testing"

	"anagenesis/internal/evo"
)

func snap(generation int, meanComplexity float64, maMean, maPrev float64, maCount int) evo.StatsSnapshot {
	return evo.StatsSnapshot{
		Generation:     generation,
		MeanComplexity: meanComplexity,
		ComplexityMA: evo.MovingAverageSnapshot{
			Mean:     maMean,
			PrevMean: maPrev,
			Count:    maCount,
		},
	}
}

func TestNullStrategyAlwaysComplexifies(t *testing.T) {
	s := NullStrategy{}
	if got := s.DetermineMode(snap(100, 1e9, 0, 0, 0)); got != evo.ModeComplexifying {
		t.Fatalf("mode = %v, want complexifying", got)
	}
}

func TestCeilingStrategySwitchesToSimplifying(t *testing.T) {
	s, err := NewCeilingStrategy(10, 5)
	if err != nil {
		t.Fatal(err)
	}

	// First observation pins the floor at 20.
	if got := s.DetermineMode(snap(1, 20, 20, 0, 1)); got != evo.ModeComplexifying {
		t.Fatalf("generation 1: mode = %v", got)
	}
	// Still inside the ceiling.
	if got := s.DetermineMode(snap(2, 29, 25, 20, 2)); got != evo.ModeComplexifying {
		t.Fatalf("generation 2: mode = %v", got)
	}
	// Past floor + ceiling.
	if got := s.DetermineMode(snap(3, 31, 28, 25, 3)); got != evo.ModeSimplifying {
		t.Fatalf("generation 3: mode = %v, want simplifying", got)
	}
}

func TestCeilingStrategyHoldsSimplifyingUntilStall(t *testing.T) {
	s, err := NewCeilingStrategy(5, 3)
	if err != nil {
		t.Fatal(err)
	}
	s.DetermineMode(snap(1, 10, 10, 0, 1))
	if got := s.DetermineMode(snap(2, 20, 15, 10, 2)); got != evo.ModeSimplifying {
		t.Fatalf("mode = %v, want simplifying", got)
	}

	// Complexity is still falling: stay simplifying even past the minimum
	// duration.
	for gen := 3; gen <= 8; gen++ {
		mean := 20 - float64(gen)
		if got := s.DetermineMode(snap(gen, mean, mean, mean+1, gen)); got != evo.ModeSimplifying {
			t.Fatalf("generation %d: mode = %v, want simplifying while falling", gen, got)
		}
	}

	// Stalled (moving average flat) and past the minimum duration.
	if got := s.DetermineMode(snap(9, 12, 12, 12, 9)); got != evo.ModeComplexifying {
		t.Fatalf("mode = %v, want complexifying after stall", got)
	}
}

func TestCeilingStrategyMinimumSimplifyDuration(t *testing.T) {
	s, err := NewCeilingStrategy(5, 4)
	if err != nil {
		t.Fatal(err)
	}
	s.DetermineMode(snap(1, 10, 10, 0, 1))
	if got := s.DetermineMode(snap(2, 16, 13, 10, 2)); got != evo.ModeSimplifying {
		t.Fatalf("mode = %v, want simplifying", got)
	}
	// Stalled immediately, but the minimum duration has not elapsed.
	if got := s.DetermineMode(snap(3, 16, 16, 16, 3)); got != evo.ModeSimplifying {
		t.Fatalf("mode = %v, want simplifying inside minimum duration", got)
	}
	if got := s.DetermineMode(snap(6, 14, 14, 14, 6)); got != evo.ModeComplexifying {
		t.Fatalf("mode = %v, want complexifying after minimum duration", got)
	}
}

func TestCeilingStrategyResetsFloorAfterSimplifying(t *testing.T) {
	s, err := NewCeilingStrategy(10, 1)
	if err != nil {
		t.Fatal(err)
	}
	s.DetermineMode(snap(1, 10, 10, 0, 1))
	s.DetermineMode(snap(2, 25, 18, 10, 2))  // simplifying
	s.DetermineMode(snap(4, 15, 15, 15, 4))  // back to complexifying, floor 15
	if got := s.DetermineMode(snap(5, 24, 20, 15, 5)); got != evo.ModeComplexifying {
		t.Fatalf("mode = %v, want complexifying under the re-based floor", got)
	}
	if got := s.DetermineMode(snap(6, 26, 23, 20, 6)); got != evo.ModeSimplifying {
		t.Fatalf("mode = %v, want simplifying past the re-based floor", got)
	}
}

func TestNewCeilingStrategyValidation(t *testing.T) {
	if _, err := NewCeilingStrategy(0, 5); err == nil {
		t.Fatal("expected error for non-positive ceiling")
	}
	if _, err := NewCeilingStrategy(10, 0); err == nil {
		t.Fatal("expected error for non-positive minimum duration")
	}
}
