package evo

import (
	"errors"
	"math/rand"
	"testing"
)

func defaultCalc(seed int64) *StatsCalculator {
	params := DefaultParameters()
	return NewStatsCalculator(&params, rand.New(rand.NewSource(seed)))
}

func TestCalcSpecieStatsTargetsSumToPopulation(t *testing.T) {
	species := []*Species{
		newStubSpecies(0, 10, 1.0),
		newStubSpecies(1, 10, 3.0),
		newStubSpecies(2, 10, 0.5),
		newStubSpecies(3, 10, 2.5),
	}

	for seed := int64(0); seed < 200; seed++ {
		calc := defaultCalc(seed)
		stats, _, err := calc.CalcSpecieStats(species, 40, 1)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if got := sumTargetSizes(stats); got != 40 {
			t.Fatalf("seed %d: target sizes sum to %d, want 40", seed, got)
		}
	}
}

func TestCalcSpecieStatsUniformFitnessEqualShares(t *testing.T) {
	// Ten equal species with identical fitness split a population of 100
	// into exactly ten slots each; proportional allocation lands on a whole
	// number, so no rounding noise can creep in.
	species := make([]*Species, 10)
	for i := range species {
		species[i] = newStubSpecies(i, 10, 2.0)
	}

	for seed := int64(0); seed < 100; seed++ {
		calc := defaultCalc(seed)
		stats, _, err := calc.CalcSpecieStats(species, 100, 3)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if got := sumTargetSizes(stats); got != 100 {
			t.Fatalf("seed %d: target sizes sum to %d, want 100", seed, got)
		}
		for i := range stats {
			if stats[i].TargetSize != 10 {
				t.Fatalf("seed %d: specie %d target = %d, want 10", seed, i, stats[i].TargetSize)
			}
		}
	}
}

func TestCalcSpecieStatsAllZeroFitness(t *testing.T) {
	species := []*Species{
		newStubSpecies(0, 5, 0),
		newStubSpecies(1, 5, 0),
		newStubSpecies(2, 5, 0),
	}

	for seed := int64(0); seed < 100; seed++ {
		calc := defaultCalc(seed)
		stats, _, err := calc.CalcSpecieStats(species, 15, 0)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if got := sumTargetSizes(stats); got != 15 {
			t.Fatalf("seed %d: target sizes sum to %d, want 15", seed, got)
		}
		for i := range stats {
			if stats[i].TargetSizeReal != 5 {
				t.Fatalf("seed %d: specie %d real target = %v, want equal share 5", seed, i, stats[i].TargetSizeReal)
			}
		}
	}
}

func TestCalcSpecieStatsBestSpecieFloor(t *testing.T) {
	// The best species has negligible mean fitness so proportional allocation
	// rounds it to zero almost always; the floor must still hold.
	species := []*Species{
		newStubSpecies(0, 10, 1000),
		newStubSpecies(1, 10, 1000),
		newStubSpecies(2, 2, 0.0001),
	}

	for seed := int64(0); seed < 200; seed++ {
		calc := defaultCalc(seed)
		stats, _, err := calc.CalcSpecieStats(species, 30, 2)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if stats[2].TargetSize < 1 {
			t.Fatalf("seed %d: best specie target size = %d, want >= 1", seed, stats[2].TargetSize)
		}
		if stats[2].EliteSize < 1 {
			t.Fatalf("seed %d: best specie elite size = %d, want >= 1", seed, stats[2].EliteSize)
		}
		if got := sumTargetSizes(stats); got != 30 {
			t.Fatalf("seed %d: target sizes sum to %d, want 30", seed, got)
		}
	}
}

func TestCalcSpecieStatsBudgetDecomposition(t *testing.T) {
	species := []*Species{
		newStubSpecies(0, 12, 2.0),
		newStubSpecies(1, 8, 1.0),
	}
	calc := defaultCalc(42)
	stats, totalOffspring, err := calc.CalcSpecieStats(species, 20, 0)
	if err != nil {
		t.Fatal(err)
	}

	gotOffspring := 0
	for i := range stats {
		if stats[i].EliteSize > stats[i].TargetSize {
			t.Fatalf("specie %d: elite %d exceeds target %d", i, stats[i].EliteSize, stats[i].TargetSize)
		}
		if stats[i].OffspringCount != stats[i].TargetSize-stats[i].EliteSize {
			t.Fatalf("specie %d: offspring %d != target %d - elite %d", i, stats[i].OffspringCount, stats[i].TargetSize, stats[i].EliteSize)
		}
		if stats[i].AsexualCount+stats[i].SexualCount != stats[i].OffspringCount {
			t.Fatalf("specie %d: asexual %d + sexual %d != offspring %d", i, stats[i].AsexualCount, stats[i].SexualCount, stats[i].OffspringCount)
		}
		if stats[i].SelectionPoolSize < 1 || stats[i].SelectionPoolSize > len(species[i].Members) {
			t.Fatalf("specie %d: selection pool size %d out of range [1,%d]", i, stats[i].SelectionPoolSize, len(species[i].Members))
		}
		gotOffspring += stats[i].OffspringCount
	}
	if gotOffspring != totalOffspring {
		t.Fatalf("total offspring = %d, want %d", totalOffspring, gotOffspring)
	}
}

func TestCalcSpecieStatsInfeasibleAllocation(t *testing.T) {
	// With no population budget every target rounds to zero and the
	// best-species floor has no donor to take a slot from.
	species := make([]*Species, 4)
	for i := range species {
		species[i] = newStubSpecies(i, 1, 0)
	}

	calc := defaultCalc(1)
	_, _, err := calc.CalcSpecieStats(species, 0, 0)
	if !errors.Is(err, ErrInfeasibleAllocation) {
		t.Fatalf("error = %v, want ErrInfeasibleAllocation", err)
	}
}

func TestCalcSpecieStatsValidatesInput(t *testing.T) {
	calc := defaultCalc(1)
	if _, _, err := calc.CalcSpecieStats(nil, 10, 0); err == nil {
		t.Fatal("expected error for empty species list")
	}
	species := []*Species{newStubSpecies(0, 5, 1)}
	if _, _, err := calc.CalcSpecieStats(species, 10, 3); err == nil {
		t.Fatal("expected error for out-of-range best specie index")
	}
}
