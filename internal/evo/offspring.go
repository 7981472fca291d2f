package evo

import (
	"math"
	"math/rand"
)

// ReproductionCounts tallies how the offspring of one generation were
// produced. Values are per-call; the driver accumulates them into
// AlgorithmStats.
type ReproductionCounts struct {
	Asexual      int
	Sexual       int
	Interspecies int
}

func (r ReproductionCounts) Total() int { return r.Asexual + r.Sexual + r.Interspecies }

// OffspringProducer performs weighted parent selection and produces offspring
// through asexual cloning, intra-species crossover or inter-species
// crossover. It never mutates a genome's fitness or identity; genome creation
// is delegated to the parents' CreateOffspring operations.
type OffspringProducer struct {
	params *Parameters
	rng    *rand.Rand
}

func NewOffspringProducer(params *Parameters, rng *rand.Rand) *OffspringProducer {
	return &OffspringProducer{params: params, rng: rng}
}

// CreateOffspring produces the offspring batch described by the per-species
// stats. Species member lists must be sorted fittest-first so that the first
// SelectionPoolSize members form each selection pool.
func (p *OffspringProducer) CreateOffspring(species []*Species, stats []SpecieStats, generation int) ([]Genome, ReproductionCounts) {
	var counts ReproductionCounts

	// One wheel per species over its selection pool, weighted by fitness, and
	// one wheel across species weighted by pool size for inter-species
	// parent-2 draws.
	pools := make([]*DiscreteDistribution, len(species))
	poolSizes := make([]float64, len(species))
	nonEmptyPools := 0
	for i, sp := range species {
		n := stats[i].SelectionPoolSize
		if n > len(sp.Members) {
			n = len(sp.Members)
		}
		weights := make([]float64, n)
		for j := 0; j < n; j++ {
			weights[j] = sp.Members[j].Evaluation().Fitness
		}
		pools[i] = NewDiscreteDistribution(weights)
		poolSizes[i] = float64(n)
		if n > 0 {
			nonEmptyPools++
		}
	}
	speciesWheel := NewDiscreteDistribution(poolSizes)

	total := 0
	for i := range stats {
		total += stats[i].OffspringCount
	}
	offspring := make([]Genome, 0, total)

	for i, sp := range species {
		st := stats[i]
		if st.OffspringCount == 0 || len(sp.Members) == 0 {
			continue
		}

		for n := 0; n < st.AsexualCount; n++ {
			parent := p.pickParent(sp, pools[i])
			offspring = append(offspring, parent.CreateOffspringAsexual(generation, p.rng))
			counts.Asexual++
		}

		interCount := int(math.Round(float64(st.SexualCount) * p.params.InterspeciesMatingProportion))
		if nonEmptyPools < 2 {
			// With a single viable pool an inter-species draw would retry
			// forever; all sexual offspring stay intra-species.
			interCount = 0
		}

		for n := 0; n < interCount; n++ {
			parent1 := p.pickParent(sp, pools[i])
			otherWheel := speciesWheel.RemoveOutcome(i)
			j := otherWheel.SingleThrow(p.rng)
			if j == -1 {
				offspring = append(offspring, parent1.CreateOffspringAsexual(generation, p.rng))
				counts.Asexual++
				continue
			}
			parent2 := p.pickParent(species[j], pools[j])
			offspring = append(offspring, parent1.CreateOffspringSexual(parent2, generation, p.rng))
			counts.Interspecies++
		}

		for n := 0; n < st.SexualCount-interCount; n++ {
			if st.SelectionPoolSize < 2 {
				parent := p.pickParent(sp, pools[i])
				offspring = append(offspring, parent.CreateOffspringAsexual(generation, p.rng))
				counts.Asexual++
				continue
			}
			idx1 := pools[i].SingleThrow(p.rng)
			if idx1 == -1 {
				idx1 = 0
			}
			parent1 := sp.Members[idx1]
			remainder := pools[i].RemoveOutcome(idx1)
			if remainder.ProbabilitiesTotal() == 0 {
				// Every other pool member is tied at zero fitness; a weighted
				// draw has no viable outcome, so fall back to cloning.
				offspring = append(offspring, parent1.CreateOffspringAsexual(generation, p.rng))
				counts.Asexual++
				continue
			}
			idx2 := remainder.SingleThrow(p.rng)
			parent2 := sp.Members[idx2]
			offspring = append(offspring, parent1.CreateOffspringSexual(parent2, generation, p.rng))
			counts.Sexual++
		}
	}

	return offspring, counts
}

func (p *OffspringProducer) pickParent(sp *Species, wheel *DiscreteDistribution) Genome {
	idx := wheel.SingleThrow(p.rng)
	if idx == -1 {
		// All pool weights are zero; fall back to a uniform draw over the pool.
		n := wheel.OutcomeCount()
		if n == 0 {
			n = len(sp.Members)
		}
		idx = p.rng.Intn(n)
	}
	return sp.Members[idx]
}
