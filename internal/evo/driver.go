package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"
)

// ErrInvariant reports an internal invariant breach: empty species after a
// full respeciation, a population-size overrun, or a target-size sum
// mismatch. A correct configuration never triggers it, so it is not part of
// the normal error-return surface.
var ErrInvariant = errors.New("evolution invariant violated")

// DriverConfig configures the generation driver. Speciation, evaluation and
// complexity regulation are supplied as strategies; the driver owns the
// population and species list exclusively.
type DriverConfig struct {
	PopulationSize int
	Params         Parameters
	Speciation     SpeciationStrategy
	Evaluator      GenomeListEvaluator
	Regulation     ComplexityRegulationStrategy
	Seed           int64
	Logger         *slog.Logger
}

func (cfg *DriverConfig) validate() error {
	if cfg.PopulationSize <= 0 {
		return fmt.Errorf("population size must be > 0, got %d", cfg.PopulationSize)
	}
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	if cfg.PopulationSize <= cfg.Params.SpecieCount {
		return fmt.Errorf("population size %d must exceed specie count %d", cfg.PopulationSize, cfg.Params.SpecieCount)
	}
	if cfg.Speciation == nil {
		return fmt.Errorf("speciation strategy is required")
	}
	if cfg.Evaluator == nil {
		return fmt.Errorf("evaluator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Regulation == nil {
		cfg.Regulation = nullRegulation{}
	}
	return nil
}

type nullRegulation struct{}

func (nullRegulation) DetermineMode(StatsSnapshot) ComplexityMode { return ModeComplexifying }

// Driver runs whole-population generations: compute species budgets, produce
// offspring, evaluate, trim to elites, re-speciate, and regulate complexity.
// All state is owned by the single goroutine calling PerformIteration.
type Driver struct {
	cfg    DriverConfig
	rng    *rand.Rand
	logger *slog.Logger

	complexifying Parameters
	simplifying   Parameters
	active        Parameters
	mode          ComplexityMode

	calc     *StatsCalculator
	producer *OffspringProducer

	pop           []Genome
	species       []*Species
	best          Genome
	bestSpecieIdx int
	stats         *AlgorithmStats

	initialized bool
}

func NewDriver(cfg DriverConfig) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		cfg:           cfg,
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		logger:        cfg.Logger,
		complexifying: cfg.Params,
		simplifying:   cfg.Params.SimplifyingVariant(),
		active:        cfg.Params,
		mode:          ModeComplexifying,
		stats:         NewAlgorithmStats(cfg.Params),
	}
	d.calc = NewStatsCalculator(&d.active, d.rng)
	d.producer = NewOffspringProducer(&d.active, d.rng)
	return d, nil
}

// Initialize evaluates and speciates the given initial population. The genome
// slice is copied; the caller keeps no ownership obligations.
func (d *Driver) Initialize(ctx context.Context, genomes []Genome) error {
	if len(genomes) != d.cfg.PopulationSize {
		return fmt.Errorf("initial population mismatch: got=%d want=%d", len(genomes), d.cfg.PopulationSize)
	}
	if err := d.cfg.Evaluator.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize evaluator: %w", err)
	}

	d.pop = make([]Genome, len(genomes))
	copy(d.pop, genomes)

	if err := d.cfg.Evaluator.Evaluate(ctx, d.pop, 0); err != nil {
		return fmt.Errorf("evaluate initial population: %w", err)
	}

	species, err := d.cfg.Speciation.InitializeSpeciation(d.pop, d.active.SpecieCount)
	if err != nil {
		return fmt.Errorf("initialize speciation: %w", err)
	}
	if anyEmptySpecies(species) {
		return fmt.Errorf("empty species after initial speciation: %w", ErrInvariant)
	}
	d.species = species
	for _, sp := range d.species {
		sp.SortMembers()
	}
	d.updateBestGenome()
	d.updatePopulationStats(ReproductionCounts{})
	d.initialized = true
	return nil
}

// InitializeFromFactory bootstraps the initial population from a factory.
func (d *Driver) InitializeFromFactory(ctx context.Context, factory GenomeFactory) error {
	return d.Initialize(ctx, factory.CreateGenomeList(d.cfg.PopulationSize, 0))
}

// PerformIteration satisfies Iterator; one iteration is one generation.
func (d *Driver) PerformIteration(ctx context.Context) error {
	return d.PerformOneGeneration(ctx)
}

// PerformOneGeneration advances the population by one discrete generation.
func (d *Driver) PerformOneGeneration(ctx context.Context) error {
	if !d.initialized {
		return fmt.Errorf("driver is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	generation := d.stats.Generation + 1

	specieStats, _, err := d.calc.CalcSpecieStats(d.species, d.cfg.PopulationSize, d.bestSpecieIdx)
	if err != nil {
		return err
	}
	if sum := sumTargetSizes(specieStats); sum != d.cfg.PopulationSize {
		return fmt.Errorf("target sizes sum to %d, want %d: %w", sum, d.cfg.PopulationSize, ErrInvariant)
	}

	offspring, counts := d.producer.CreateOffspring(d.species, specieStats, generation)

	// Non-elite members are discarded; some species may empty entirely, which
	// forces a full respeciation below.
	emptied := false
	for i, sp := range d.species {
		sp.TrimToElites(specieStats[i].EliteSize)
		if sp.Empty() {
			emptied = true
		}
	}

	d.pop = d.pop[:0]
	for _, sp := range d.species {
		d.pop = append(d.pop, sp.Members...)
	}
	d.pop = append(d.pop, offspring...)

	// The combined list is evaluated so evaluators that re-score elites
	// (non-deterministic tasks) may do so.
	if err := d.cfg.Evaluator.Evaluate(ctx, d.pop, generation); err != nil {
		return fmt.Errorf("evaluate generation %d: %w", generation, err)
	}

	if emptied {
		if err := d.cfg.Speciation.SpeciateGenomes(d.pop, d.species); err != nil {
			return fmt.Errorf("respeciate generation %d: %w", generation, err)
		}
		if anyEmptySpecies(d.species) {
			return fmt.Errorf("empty species after full respeciation: %w", ErrInvariant)
		}
	} else {
		if err := d.cfg.Speciation.SpeciateOffspring(offspring, d.species, false); err != nil {
			return fmt.Errorf("speciate offspring, generation %d: %w", generation, err)
		}
	}

	if len(d.pop) != d.cfg.PopulationSize {
		return fmt.Errorf("population size %d, want %d: %w", len(d.pop), d.cfg.PopulationSize, ErrInvariant)
	}

	for _, sp := range d.species {
		sp.SortMembers()
	}

	d.stats.Generation = generation
	d.updateBestGenome()
	d.updatePopulationStats(counts)
	d.applyRegulation()
	return nil
}

func (d *Driver) updateBestGenome() {
	d.best = nil
	d.bestSpecieIdx = 0
	for i, sp := range d.species {
		champ := sp.Champion()
		if champ == nil {
			continue
		}
		if d.best == nil || champ.Evaluation().Fitness > d.best.Evaluation().Fitness {
			d.best = champ
			d.bestSpecieIdx = i
		}
	}
}

func (d *Driver) updatePopulationStats(counts ReproductionCounts) {
	totalFitness := 0.0
	for _, g := range d.pop {
		totalFitness += g.Evaluation().Fitness
	}
	if len(d.pop) > 0 {
		d.stats.MeanFitness = totalFitness / float64(len(d.pop))
	}
	if d.best != nil {
		d.stats.BestFitness = d.best.Evaluation().Fitness
	}
	d.stats.MeanComplexity = meanComplexity(d.pop)
	d.stats.MaxComplexity = maxComplexity(d.pop)
	d.stats.UpdateSpecieSizes(d.species)
	d.stats.AddReproductionCounts(counts)
	d.stats.SampleEvaluationsPerSec(d.cfg.Evaluator.EvaluationCount(), time.Now())

	champTotal := 0.0
	champs := 0
	for _, sp := range d.species {
		if champ := sp.Champion(); champ != nil {
			champTotal += champ.Evaluation().Fitness
			champs++
		}
	}
	d.stats.BestFitnessMA.Push(d.stats.BestFitness)
	if champs > 0 {
		d.stats.MeanSpecieChampFitnessMA.Push(champTotal / float64(champs))
	}
	d.stats.ComplexityMA.Push(d.stats.MeanComplexity)
}

func (d *Driver) applyRegulation() {
	mode := d.cfg.Regulation.DetermineMode(d.stats.Snapshot())
	if mode == d.mode {
		return
	}
	d.logger.Info("complexity regulation mode change",
		"generation", d.stats.Generation,
		"from", d.mode.String(),
		"to", mode.String(),
	)
	d.mode = mode
	switch mode {
	case ModeSimplifying:
		d.active = d.simplifying
	default:
		d.active = d.complexifying
	}
}

func (d *Driver) Snapshot() StatsSnapshot { return d.stats.Snapshot() }

func (d *Driver) BestGenome() Genome { return d.best }

// Population exposes the current genome list. Values are only defined when
// the driver is idle (between iterations, or while the run is paused).
func (d *Driver) Population() []Genome { return d.pop }

func (d *Driver) SpeciesList() []*Species { return d.species }

func (d *Driver) Mode() ComplexityMode { return d.mode }

func sumTargetSizes(stats []SpecieStats) int {
	sum := 0
	for i := range stats {
		sum += stats[i].TargetSize
	}
	return sum
}
