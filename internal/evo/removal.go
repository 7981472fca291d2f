package evo

import (
	"math/rand"
	"sort"
)

// RemovalPolicy prunes an over-cap steady-state population back to budget by
// selecting genomes for removal. The returned set holds genome IDs; the
// caller removes them from both the population queue and the species.
type RemovalPolicy interface {
	SelectForRemoval(pop []Genome, species []*Species, count, generation int, rng *rand.Rand) map[string]struct{}
}

// OldestGlobalRemoval removes the genomes with the smallest birth generation
// across the whole population, breaking ties by queue position so the result
// respects FIFO order.
type OldestGlobalRemoval struct{}

func (OldestGlobalRemoval) SelectForRemoval(pop []Genome, _ []*Species, count, _ int, _ *rand.Rand) map[string]struct{} {
	if count <= 0 {
		return map[string]struct{}{}
	}
	if count > len(pop) {
		count = len(pop)
	}
	order := make([]int, len(pop))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pop[order[a]].BirthGeneration() < pop[order[b]].BirthGeneration()
	})
	selected := make(map[string]struct{}, count)
	for _, idx := range order[:count] {
		selected[pop[idx].ID()] = struct{}{}
	}
	return selected
}

// SpeciesApportionedRemoval spreads the removal quota across species in
// proportion to their sizes, removing the oldest members within each species.
// When rounding leaves a shortage, or a species cannot absorb its quota, the
// remainder is escalated to other species through an age-weighted roulette.
type SpeciesApportionedRemoval struct{}

func (SpeciesApportionedRemoval) SelectForRemoval(pop []Genome, species []*Species, count, generation int, rng *rand.Rand) map[string]struct{} {
	selected := make(map[string]struct{}, count)
	if count <= 0 || len(species) == 0 {
		return selected
	}
	total := 0
	for _, sp := range species {
		total += len(sp.Members)
	}
	if count > total {
		count = total
	}

	quotas := make([]int, len(species))
	assigned := 0
	for i, sp := range species {
		quotas[i] = count * len(sp.Members) / total
		if quotas[i] > len(sp.Members) {
			quotas[i] = len(sp.Members)
		}
		assigned += quotas[i]
	}

	// Escalate the rounding shortage: draw species by the total age of their
	// still-removable members, so old crowded species absorb the overflow.
	for assigned < count {
		weights := make([]float64, len(species))
		viable := false
		for i, sp := range species {
			if quotas[i] >= len(sp.Members) {
				continue
			}
			age := 0
			for _, g := range sp.Members {
				age += generation - g.BirthGeneration()
			}
			// Weight by age plus one so brand-new species remain selectable.
			weights[i] = float64(age + 1)
			viable = true
		}
		if !viable {
			break
		}
		idx := NewDiscreteDistribution(weights).SingleThrow(rng)
		if idx == -1 {
			break
		}
		quotas[idx]++
		assigned++
	}

	for i, sp := range species {
		if quotas[i] == 0 {
			continue
		}
		order := make([]int, len(sp.Members))
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool {
			return sp.Members[order[a]].BirthGeneration() < sp.Members[order[b]].BirthGeneration()
		})
		for _, j := range order[:quotas[i]] {
			selected[sp.Members[j].ID()] = struct{}{}
		}
	}
	return selected
}
