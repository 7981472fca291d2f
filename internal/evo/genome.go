package evo

import "math/rand"

// EvaluationInfo holds the fitness record written by an evaluator. It is the
// only part of a genome the core mutates indirectly (by handing the genome to
// the evaluator); everything else on a genome is read-only to the engine.
type EvaluationInfo struct {
	Fitness         float64
	AuxFitness      []float64
	EvaluationCount int
	IsViable        bool
	NicheID         int
}

// Genome is the contract the engine requires from an evolvable individual.
// Implementations live outside this package; the engine never inspects a
// genome beyond this interface.
//
// CreateOffspringAsexual and CreateOffspringSexual return new genomes owned
// by the caller, stamped with the given birth generation.
type Genome interface {
	ID() string
	BirthGeneration() int
	Complexity() float64
	Evaluation() *EvaluationInfo

	CreateOffspringAsexual(generation int, rng *rand.Rand) Genome
	CreateOffspringSexual(other Genome, generation int, rng *rand.Rand) Genome
}

// GenomeFactory bootstraps an initial population.
type GenomeFactory interface {
	CreateGenomeList(count, birthGeneration int) []Genome
}

func meanComplexity(genomes []Genome) float64 {
	if len(genomes) == 0 {
		return 0
	}
	total := 0.0
	for _, g := range genomes {
		total += g.Complexity()
	}
	return total / float64(len(genomes))
}

func maxComplexity(genomes []Genome) float64 {
	most := 0.0
	for _, g := range genomes {
		if c := g.Complexity(); c > most {
			most = c
		}
	}
	return most
}
