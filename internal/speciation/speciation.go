// Package speciation provides the default distance-based speciation strategy.
// The engine only depends on the evo.SpeciationStrategy contract; any
// clustering scheme can replace this one.
package speciation

import (
	"fmt"
	"math"
	"math/rand"

	"anagenesis/internal/evo"
)

// DistanceFunc measures dissimilarity between two genomes. The genome domain
// supplies it; this package treats genomes as opaque.
type DistanceFunc func(a, b evo.Genome) (float64, error)

// NearestCentroidStrategy partitions genomes around per-species
// representatives, reassigning representatives over a few refinement rounds
// (k-means over a medoid representative). Incremental assignment places new
// genomes with their nearest representative without disturbing the rest.
type NearestCentroidStrategy struct {
	distance       DistanceFunc
	rng            *rand.Rand
	refineRounds   int
	representative map[int]evo.Genome
}

func NewNearestCentroidStrategy(distance DistanceFunc, seed int64) (*NearestCentroidStrategy, error) {
	if distance == nil {
		return nil, fmt.Errorf("distance function is required")
	}
	return &NearestCentroidStrategy{
		distance:       distance,
		rng:            rand.New(rand.NewSource(seed)),
		refineRounds:   4,
		representative: make(map[int]evo.Genome),
	}, nil
}

func (s *NearestCentroidStrategy) InitializeSpeciation(genomes []evo.Genome, targetCount int) ([]*evo.Species, error) {
	if targetCount <= 0 {
		return nil, fmt.Errorf("target specie count must be > 0, got %d", targetCount)
	}
	if len(genomes) < targetCount {
		return nil, fmt.Errorf("cannot split %d genomes into %d species", len(genomes), targetCount)
	}

	species := make([]*evo.Species, targetCount)
	s.representative = make(map[int]evo.Genome, targetCount)
	perm := s.rng.Perm(len(genomes))
	for i := 0; i < targetCount; i++ {
		species[i] = evo.NewSpecies(i)
		s.representative[i] = genomes[perm[i]]
	}

	if err := s.assignAll(genomes, species); err != nil {
		return nil, err
	}
	for round := 0; round < s.refineRounds; round++ {
		changed, err := s.refineRepresentatives(species)
		if err != nil {
			return nil, err
		}
		if !changed {
			break
		}
		if err := s.assignAll(genomes, species); err != nil {
			return nil, err
		}
	}
	if err := s.fillEmptySpecies(species); err != nil {
		return nil, err
	}
	return species, nil
}

func (s *NearestCentroidStrategy) SpeciateGenomes(genomes []evo.Genome, species []*evo.Species) error {
	if err := s.assignAll(genomes, species); err != nil {
		return err
	}
	if _, err := s.refineRepresentatives(species); err != nil {
		return err
	}
	return s.fillEmptySpecies(species)
}

func (s *NearestCentroidStrategy) SpeciateOffspring(offspring []evo.Genome, species []*evo.Species, respeciate bool) error {
	if respeciate {
		all := make([]evo.Genome, 0, len(offspring))
		for _, sp := range species {
			all = append(all, sp.Members...)
		}
		all = append(all, offspring...)
		return s.SpeciateGenomes(all, species)
	}
	for _, g := range offspring {
		idx, err := s.closestSpecies(g, species)
		if err != nil {
			return err
		}
		species[idx].Members = append(species[idx].Members, g)
	}
	return nil
}

func (s *NearestCentroidStrategy) FindClosestAssignments(genomes []evo.Genome, species []*evo.Species) (map[int]int, error) {
	out := make(map[int]int, len(species))
	for _, g := range genomes {
		idx, err := s.closestSpecies(g, species)
		if err != nil {
			return nil, err
		}
		out[species[idx].Index]++
	}
	return out, nil
}

func (s *NearestCentroidStrategy) assignAll(genomes []evo.Genome, species []*evo.Species) error {
	for _, sp := range species {
		sp.Members = sp.Members[:0]
	}
	for _, g := range genomes {
		idx, err := s.closestSpecies(g, species)
		if err != nil {
			return err
		}
		species[idx].Members = append(species[idx].Members, g)
	}
	return nil
}

func (s *NearestCentroidStrategy) closestSpecies(g evo.Genome, species []*evo.Species) (int, error) {
	bestIdx := -1
	bestDist := math.MaxFloat64
	for i, sp := range species {
		rep, ok := s.representative[sp.Index]
		if !ok {
			continue
		}
		dist, err := s.distance(g, rep)
		if err != nil {
			return 0, fmt.Errorf("distance to specie %d representative: %w", sp.Index, err)
		}
		if dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return 0, fmt.Errorf("no species representative available")
	}
	return bestIdx, nil
}

// refineRepresentatives moves each representative to the member that
// minimises total distance to its species (the medoid). Reports whether any
// representative moved.
func (s *NearestCentroidStrategy) refineRepresentatives(species []*evo.Species) (bool, error) {
	changed := false
	for _, sp := range species {
		if len(sp.Members) == 0 {
			continue
		}
		bestIdx := 0
		bestTotal := math.MaxFloat64
		for i, candidate := range sp.Members {
			total := 0.0
			for _, other := range sp.Members {
				dist, err := s.distance(candidate, other)
				if err != nil {
					return false, err
				}
				total += dist
			}
			if total < bestTotal {
				bestTotal = total
				bestIdx = i
			}
		}
		next := sp.Members[bestIdx]
		if prev, ok := s.representative[sp.Index]; !ok || prev.ID() != next.ID() {
			s.representative[sp.Index] = next
			changed = true
		}
	}
	return changed, nil
}

// fillEmptySpecies donates the farthest member of the largest species to each
// empty one, so an empty species never survives a full (re)speciation.
func (s *NearestCentroidStrategy) fillEmptySpecies(species []*evo.Species) error {
	for _, empty := range species {
		if !empty.Empty() {
			continue
		}
		donor := largestSpecies(species)
		if donor == nil || len(donor.Members) < 2 {
			return fmt.Errorf("cannot repopulate empty specie %d: no donor species", empty.Index)
		}
		rep := s.representative[donor.Index]
		farIdx := 0
		farDist := -1.0
		for i, g := range donor.Members {
			dist, err := s.distance(g, rep)
			if err != nil {
				return err
			}
			if dist > farDist {
				farDist = dist
				farIdx = i
			}
		}
		moved := donor.Members[farIdx]
		donor.Members = append(donor.Members[:farIdx], donor.Members[farIdx+1:]...)
		empty.Members = append(empty.Members, moved)
		s.representative[empty.Index] = moved
	}
	return nil
}

func largestSpecies(species []*evo.Species) *evo.Species {
	var largest *evo.Species
	for _, sp := range species {
		if largest == nil || len(sp.Members) > len(largest.Members) {
			largest = sp
		}
	}
	return largest
}
