package evo

import "sort"

// Species is a named partition of the population. Members are references into
// the population list; the species owns no genomes. Derived figures are
// recomputed on demand rather than cached, so a species is always consistent
// with its current member list.
type Species struct {
	Index   int
	Members []Genome
}

func NewSpecies(index int) *Species {
	return &Species{Index: index}
}

func (s *Species) Empty() bool { return len(s.Members) == 0 }

func (s *Species) MeanFitness() float64 {
	if len(s.Members) == 0 {
		return 0
	}
	total := 0.0
	for _, g := range s.Members {
		total += g.Evaluation().Fitness
	}
	return total / float64(len(s.Members))
}

// MeanAge reports the mean number of generations the members have existed,
// relative to the given current generation.
func (s *Species) MeanAge(generation int) float64 {
	if len(s.Members) == 0 {
		return 0
	}
	total := 0
	for _, g := range s.Members {
		total += generation - g.BirthGeneration()
	}
	return float64(total) / float64(len(s.Members))
}

// SortMembers orders members fittest-first, breaking ties youngest-first so
// that newer genomes win elite slots over equally fit older ones.
func (s *Species) SortMembers() {
	sort.SliceStable(s.Members, func(i, j int) bool {
		fi := s.Members[i].Evaluation().Fitness
		fj := s.Members[j].Evaluation().Fitness
		if fi != fj {
			return fi > fj
		}
		return s.Members[i].BirthGeneration() > s.Members[j].BirthGeneration()
	})
}

// Champion returns the fittest member. Call after SortMembers.
func (s *Species) Champion() Genome {
	if len(s.Members) == 0 {
		return nil
	}
	return s.Members[0]
}

// TrimToElites discards all but the first eliteSize members. The member list
// must already be sorted fittest-first.
func (s *Species) TrimToElites(eliteSize int) {
	if eliteSize > len(s.Members) {
		eliteSize = len(s.Members)
	}
	s.Members = s.Members[:eliteSize]
}

func (s *Species) RemoveMember(id string) bool {
	for i, g := range s.Members {
		if g.ID() == id {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return true
		}
	}
	return false
}

func anyEmptySpecies(species []*Species) bool {
	for _, s := range species {
		if s.Empty() {
			return true
		}
	}
	return false
}
