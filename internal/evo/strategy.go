package evo

import "context"

// GenomeListEvaluator assigns fitness and viability to genomes. The engine
// treats evaluation as a black box with a lifecycle; Cleanup must be safe to
// call exactly once after the run ends.
type GenomeListEvaluator interface {
	Initialize(ctx context.Context) error
	Evaluate(ctx context.Context, genomes []Genome, generation int) error
	EvaluationCount() int
	StopConditionSatisfied() bool
	Cleanup() error
}

// BridgingEvaluator is an optional capability: an evaluator that can produce
// an alternate, perturbed fitness reading. The engine records the result as
// auxiliary data and otherwise treats it like a normal evaluation pass.
type BridgingEvaluator interface {
	GenomeListEvaluator
	EvaluateBridged(ctx context.Context, genomes []Genome, generation int) error
}

// SpeciationStrategy partitions genomes into species. The engine consumes the
// partition; the clustering math behind it is the strategy's concern.
// Strategies receive population references but must not retain them past the
// call.
type SpeciationStrategy interface {
	// InitializeSpeciation builds a fresh species list from scratch.
	InitializeSpeciation(genomes []Genome, targetCount int) ([]*Species, error)

	// SpeciateGenomes fully respeciates: existing member lists are discarded
	// and every genome is reassigned.
	SpeciateGenomes(genomes []Genome, species []*Species) error

	// SpeciateOffspring incrementally assigns new genomes to the existing
	// species. When respeciate is true the strategy may rebalance existing
	// assignments as well.
	SpeciateOffspring(offspring []Genome, species []*Species, respeciate bool) error

	// FindClosestAssignments reports, per species index, how many of the
	// given genomes would be assigned to it, without mutating anything.
	FindClosestAssignments(genomes []Genome, species []*Species) (map[int]int, error)
}

// ComplexityMode selects which parameter set is active.
type ComplexityMode int

const (
	ModeComplexifying ComplexityMode = iota
	ModeSimplifying
)

func (m ComplexityMode) String() string {
	switch m {
	case ModeComplexifying:
		return "complexifying"
	case ModeSimplifying:
		return "simplifying"
	default:
		return "unknown"
	}
}

// ComplexityRegulationStrategy decides the complexity mode from aggregated
// run statistics.
type ComplexityRegulationStrategy interface {
	DetermineMode(snap StatsSnapshot) ComplexityMode
}

// Iterator is one discrete unit of evolutionary progress: a generation for
// the generational driver, a batch for the queueing driver. The run
// controller drives an Iterator on its worker goroutine.
type Iterator interface {
	PerformIteration(ctx context.Context) error
	Snapshot() StatsSnapshot
	BestGenome() Genome
}
