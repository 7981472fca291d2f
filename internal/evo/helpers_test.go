package evo

import (
	"context"
	"fmt"
	"math/rand"
)

// stubGenome is a minimal genome for engine tests. Offspring inherit a
// perturbed fitness so selection pressure is observable without a real
// evaluator.
type stubGenome struct {
	id         string
	birthGen   int
	complexity float64
	eval       EvaluationInfo
	ids        *int
}

func newStubGenome(id string, birthGen int, fitness float64) *stubGenome {
	n := 0
	return &stubGenome{
		id:       id,
		birthGen: birthGen,
		eval:     EvaluationInfo{Fitness: fitness, IsViable: true},
		ids:      &n,
	}
}

func (g *stubGenome) ID() string                  { return g.id }
func (g *stubGenome) BirthGeneration() int        { return g.birthGen }
func (g *stubGenome) Complexity() float64         { return g.complexity }
func (g *stubGenome) Evaluation() *EvaluationInfo { return &g.eval }

func (g *stubGenome) CreateOffspringAsexual(generation int, rng *rand.Rand) Genome {
	*g.ids++
	return &stubGenome{
		id:         fmt.Sprintf("%s/a%d", g.id, *g.ids),
		birthGen:   generation,
		complexity: g.complexity,
		ids:        g.ids,
	}
}

func (g *stubGenome) CreateOffspringSexual(other Genome, generation int, rng *rand.Rand) Genome {
	*g.ids++
	return &stubGenome{
		id:         fmt.Sprintf("%s/s%d", g.id, *g.ids),
		birthGen:   generation,
		complexity: (g.complexity + other.Complexity()) / 2,
		ids:        g.ids,
	}
}

func newStubSpecies(index, size int, fitness float64) *Species {
	sp := NewSpecies(index)
	for i := 0; i < size; i++ {
		sp.Members = append(sp.Members, newStubGenome(fmt.Sprintf("s%d-g%d", index, i), 0, fitness))
	}
	return sp
}

// stubEvaluator assigns fitness from a function of the genome, counting
// evaluations and cleanups.
type stubEvaluator struct {
	score       func(Genome) float64
	viable      func(Genome) bool
	evaluations int
	cleanups    int
	stop        bool
}

func (e *stubEvaluator) Initialize(ctx context.Context) error { return nil }

func (e *stubEvaluator) Evaluate(ctx context.Context, genomes []Genome, generation int) error {
	for _, g := range genomes {
		ev := g.Evaluation()
		if e.score != nil {
			ev.Fitness = e.score(g)
		}
		ev.IsViable = true
		if e.viable != nil {
			ev.IsViable = e.viable(g)
		}
		ev.EvaluationCount++
		e.evaluations++
	}
	return nil
}

func (e *stubEvaluator) EvaluationCount() int         { return e.evaluations }
func (e *stubEvaluator) StopConditionSatisfied() bool { return e.stop }

func (e *stubEvaluator) Cleanup() error {
	e.cleanups++
	return nil
}

// bridgingStubEvaluator adds the bridging capability to stubEvaluator: the
// alternate reading is the negated primary fitness, recorded as the first
// auxiliary value.
type bridgingStubEvaluator struct {
	stubEvaluator
	bridged int
}

func (e *bridgingStubEvaluator) EvaluateBridged(ctx context.Context, genomes []Genome, generation int) error {
	for _, g := range genomes {
		ev := g.Evaluation()
		if len(ev.AuxFitness) == 0 {
			ev.AuxFitness = append(ev.AuxFitness, -ev.Fitness)
		} else {
			ev.AuxFitness[0] = -ev.Fitness
		}
		e.bridged++
	}
	return nil
}

// modSpeciation assigns genomes to species round-robin by a hash of the
// genome ID, which keeps assignment deterministic without any distance
// metric.
type modSpeciation struct{}

func hashID(id string) int {
	h := 0
	for _, c := range id {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

func (modSpeciation) InitializeSpeciation(genomes []Genome, targetCount int) ([]*Species, error) {
	species := make([]*Species, targetCount)
	for i := range species {
		species[i] = NewSpecies(i)
	}
	// Round-robin rather than hashed so every species is non-empty whenever
	// len(genomes) >= targetCount.
	for i, g := range genomes {
		species[i%targetCount].Members = append(species[i%targetCount].Members, g)
	}
	return species, nil
}

func (modSpeciation) SpeciateGenomes(genomes []Genome, species []*Species) error {
	for _, sp := range species {
		sp.Members = sp.Members[:0]
	}
	for i, g := range genomes {
		species[i%len(species)].Members = append(species[i%len(species)].Members, g)
	}
	return nil
}

func (modSpeciation) SpeciateOffspring(offspring []Genome, species []*Species, respeciate bool) error {
	for _, g := range offspring {
		idx := hashID(g.ID()) % len(species)
		species[idx].Members = append(species[idx].Members, g)
	}
	return nil
}

func (modSpeciation) FindClosestAssignments(genomes []Genome, species []*Species) (map[int]int, error) {
	out := make(map[int]int)
	for _, g := range genomes {
		out[hashID(g.ID())%len(species)]++
	}
	return out, nil
}
