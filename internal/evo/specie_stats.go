package evo

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInfeasibleAllocation reports a parameter combination under which the
// target-size correction cannot find a donor species, which means the
// configured population size cannot cover the species count.
var ErrInfeasibleAllocation = errors.New("infeasible species allocation")

// SpecieStats holds one generation's reproduction budget for one species.
// Instances are created fresh each generation and discarded after use.
type SpecieStats struct {
	MeanFitness       float64
	TargetSizeReal    float64
	TargetSize        int
	EliteSize         int
	OffspringCount    int
	AsexualCount      int
	SexualCount       int
	SelectionPoolSize int
}

// StatsCalculator computes per-species target sizes under fitness sharing,
// reconciling stochastic rounding error against the exact population budget.
type StatsCalculator struct {
	params *Parameters
	rng    *rand.Rand
}

func NewStatsCalculator(params *Parameters, rng *rand.Rand) *StatsCalculator {
	return &StatsCalculator{params: params, rng: rng}
}

// CalcSpecieStats allocates the population budget across species
// proportionally to mean fitness, then derives elite, offspring and
// selection-pool sizes. On return the integer target sizes sum to exactly
// populationSize, the best species has a non-zero target size, and its elite
// size is at least one.
func (c *StatsCalculator) CalcSpecieStats(species []*Species, populationSize, bestSpecieIdx int) ([]SpecieStats, int, error) {
	if len(species) == 0 {
		return nil, 0, fmt.Errorf("species list is empty")
	}
	if bestSpecieIdx < 0 || bestSpecieIdx >= len(species) {
		return nil, 0, fmt.Errorf("best specie index out of range: %d", bestSpecieIdx)
	}

	stats := make([]SpecieStats, len(species))
	totalMeanFitness := 0.0
	for i, sp := range species {
		stats[i].MeanFitness = sp.MeanFitness()
		totalMeanFitness += stats[i].MeanFitness
	}

	// Degenerate all-zero fitness: an equal share per species avoids both a
	// division by zero and a biased allocation.
	if totalMeanFitness == 0 {
		share := float64(populationSize) / float64(len(species))
		for i := range stats {
			stats[i].TargetSizeReal = share
		}
	} else {
		for i := range stats {
			stats[i].TargetSizeReal = stats[i].MeanFitness / totalMeanFitness * float64(populationSize)
		}
	}

	sumTarget := 0
	for i := range stats {
		stats[i].TargetSize = ProbabilisticRound(stats[i].TargetSizeReal, c.rng)
		sumTarget += stats[i].TargetSize
	}

	switch delta := sumTarget - populationSize; {
	case delta == 0:
	case delta == -1:
		// The common off-by-one deficit goes straight to the best species.
		stats[bestSpecieIdx].TargetSize++
	case delta < -1:
		c.distributeDeficit(stats, -delta)
	default:
		c.trimSurplus(stats, delta)
	}

	// The species holding the best genome must survive, even if proportional
	// allocation rounded it away.
	if stats[bestSpecieIdx].TargetSize == 0 {
		stats[bestSpecieIdx].TargetSize++
		if !donateSlot(stats, bestSpecieIdx, c.rng) {
			return nil, 0, fmt.Errorf("no donor species for best-species floor (population size <= species count?): %w", ErrInfeasibleAllocation)
		}
	}

	totalOffspring := 0
	for i, sp := range species {
		elite := ProbabilisticRound(float64(len(sp.Members))*c.params.ElitismProportion, c.rng)
		if elite > stats[i].TargetSize {
			elite = stats[i].TargetSize
		}
		if i == bestSpecieIdx && elite == 0 {
			elite = 1
		}
		stats[i].EliteSize = elite
		stats[i].OffspringCount = stats[i].TargetSize - elite

		asexual := ProbabilisticRound(float64(stats[i].OffspringCount)*c.params.OffspringAsexualProportion, c.rng)
		if asexual > stats[i].OffspringCount {
			asexual = stats[i].OffspringCount
		}
		stats[i].AsexualCount = asexual
		stats[i].SexualCount = stats[i].OffspringCount - asexual

		pool := ProbabilisticRound(float64(len(sp.Members))*c.params.SelectionProportion, c.rng)
		if pool < 1 {
			pool = 1
		}
		if pool > len(sp.Members) {
			pool = len(sp.Members)
		}
		stats[i].SelectionPoolSize = pool

		totalOffspring += stats[i].OffspringCount
	}

	return stats, totalOffspring, nil
}

// distributeDeficit hands out the missing slots, weighting each species by
// how much its integer target undershot its real target.
func (c *StatsCalculator) distributeDeficit(stats []SpecieStats, missing int) {
	weights := make([]float64, len(stats))
	for i := range stats {
		weights[i] = stats[i].TargetSizeReal - float64(stats[i].TargetSize)
		if weights[i] < 0 {
			weights[i] = 0
		}
	}
	wheel := NewDiscreteDistribution(weights)
	for n := 0; n < missing; n++ {
		idx := wheel.SingleThrow(c.rng)
		if idx == -1 {
			idx = c.rng.Intn(len(stats))
		}
		stats[idx].TargetSize++
	}
}

// trimSurplus removes the excess slots, weighting each species by how much
// its integer target overshot its real target. A species already at zero is
// skipped by scanning forward from the drawn index.
func (c *StatsCalculator) trimSurplus(stats []SpecieStats, excess int) {
	weights := make([]float64, len(stats))
	for i := range stats {
		weights[i] = float64(stats[i].TargetSize) - stats[i].TargetSizeReal
		if weights[i] < 0 {
			weights[i] = 0
		}
	}
	wheel := NewDiscreteDistribution(weights)
	for n := 0; n < excess; n++ {
		idx := wheel.SingleThrow(c.rng)
		if idx == -1 {
			idx = c.rng.Intn(len(stats))
		}
		for j := 0; j < len(stats); j++ {
			k := (idx + j) % len(stats)
			if stats[k].TargetSize > 0 {
				stats[k].TargetSize--
				break
			}
		}
	}
}

// donateSlot decrements a randomly chosen non-zero species other than
// keepIdx, scanning forward with wraparound from the initial pick. Returns
// false when no donor exists.
func donateSlot(stats []SpecieStats, keepIdx int, rng *rand.Rand) bool {
	start := rng.Intn(len(stats))
	for j := 0; j < len(stats); j++ {
		k := (start + j) % len(stats)
		if k == keepIdx {
			continue
		}
		if stats[k].TargetSize > 0 {
			stats[k].TargetSize--
			return true
		}
	}
	return false
}
