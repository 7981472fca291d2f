package evo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"time"
)

// BatchMode selects how the queueing driver draws parents from the
// population queue.
type BatchMode int

const (
	// GlobalQueueBatch draws the batchSize oldest-queue-order genomes from
	// the front of the global queue.
	GlobalQueueBatch BatchMode = iota
	// PerSpeciesQueueBatch draws up to min(batchSize, speciesSize) genomes
	// per species, in queue order.
	PerSpeciesQueueBatch
)

// QueueDriverConfig configures the steady-state/queueing driver. The
// population cap is a soft bound enforced by the removal policy after each
// batch.
type QueueDriverConfig struct {
	PopulationCap      int
	BatchSize          int
	BatchMode          BatchMode
	RespeciateInterval int
	Removal            RemovalPolicy
	Params             Parameters
	Speciation         SpeciationStrategy
	Evaluator          GenomeListEvaluator
	Regulation         ComplexityRegulationStrategy
	Seed               int64
	Logger             *slog.Logger
}

func (cfg *QueueDriverConfig) validate() error {
	if cfg.PopulationCap <= 0 {
		return fmt.Errorf("population cap must be > 0, got %d", cfg.PopulationCap)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0, got %d", cfg.BatchSize)
	}
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	if cfg.Speciation == nil {
		return fmt.Errorf("speciation strategy is required")
	}
	if cfg.Evaluator == nil {
		return fmt.Errorf("evaluator is required")
	}
	if cfg.Removal == nil {
		cfg.Removal = SpeciesApportionedRemoval{}
	}
	if cfg.RespeciateInterval <= 0 {
		cfg.RespeciateInterval = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Regulation == nil {
		cfg.Regulation = nullRegulation{}
	}
	return nil
}

// QueueDriver replaces the population in fixed-size batches instead of whole
// generations. The population is a FIFO queue: a genome drawn as a parent
// produces one offspring, moves to the back, and is not drawn again until
// every other member has had an equal-or-greater opportunity.
type QueueDriver struct {
	cfg    QueueDriverConfig
	rng    *rand.Rand
	logger *slog.Logger

	complexifying Parameters
	simplifying   Parameters
	active        Parameters
	mode          ComplexityMode

	pop       []Genome
	species   []*Species
	speciated bool
	best      Genome
	stats     *AlgorithmStats

	batchesSinceRespeciation int
	initialized              bool
}

func NewQueueDriver(cfg QueueDriverConfig) (*QueueDriver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &QueueDriver{
		cfg:           cfg,
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		logger:        cfg.Logger,
		complexifying: cfg.Params,
		simplifying:   cfg.Params.SimplifyingVariant(),
		active:        cfg.Params,
		mode:          ModeComplexifying,
		stats:         NewAlgorithmStats(cfg.Params),
	}, nil
}

// Initialize seeds the queue. The initial population may be smaller than the
// cap; the queue fills as viable offspring accumulate. Speciation is deferred
// until the population outgrows the configured species count.
func (d *QueueDriver) Initialize(ctx context.Context, genomes []Genome) error {
	if len(genomes) == 0 {
		return fmt.Errorf("initial population is empty")
	}
	if len(genomes) > d.cfg.PopulationCap {
		return fmt.Errorf("initial population %d exceeds cap %d", len(genomes), d.cfg.PopulationCap)
	}
	if err := d.cfg.Evaluator.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize evaluator: %w", err)
	}
	d.pop = make([]Genome, len(genomes))
	copy(d.pop, genomes)
	if err := d.cfg.Evaluator.Evaluate(ctx, d.pop, 0); err != nil {
		return fmt.Errorf("evaluate initial population: %w", err)
	}
	if err := d.maybeSpeciate(); err != nil {
		return err
	}
	d.updateBest()
	d.updateStats(ReproductionCounts{})
	d.initialized = true
	return nil
}

// PerformIteration satisfies Iterator; one iteration is one batch.
func (d *QueueDriver) PerformIteration(ctx context.Context) error {
	return d.PerformOneBatch(ctx)
}

// PerformOneBatch draws a batch of parents from the queue front, reproduces
// them asexually, re-queues them, merges viable offspring and prunes the
// queue back under the cap.
func (d *QueueDriver) PerformOneBatch(ctx context.Context) error {
	if !d.initialized {
		return fmt.Errorf("driver is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := d.stats.Generation + 1

	parents := d.selectParents()
	d.removeFromQueue(parents)

	offspring := make([]Genome, 0, len(parents))
	counts := ReproductionCounts{}
	for _, parent := range parents {
		offspring = append(offspring, parent.CreateOffspringAsexual(batch, d.rng))
		counts.Asexual++
	}

	// Parents return to the back of the queue before their offspring, so each
	// family keeps FIFO order.
	d.pop = append(d.pop, parents...)

	if err := d.cfg.Evaluator.Evaluate(ctx, offspring, batch); err != nil {
		return fmt.Errorf("evaluate batch %d: %w", batch, err)
	}
	viable := offspring[:0]
	for _, child := range offspring {
		if child.Evaluation().IsViable {
			viable = append(viable, child)
		}
	}
	d.pop = append(d.pop, viable...)

	if d.speciated && len(viable) > 0 {
		if err := d.cfg.Speciation.SpeciateOffspring(viable, d.species, false); err != nil {
			return fmt.Errorf("speciate offspring, batch %d: %w", batch, err)
		}
	}

	d.capOverfullSpecies()

	if excess := len(d.pop) - d.cfg.PopulationCap; excess > 0 {
		removed := d.cfg.Removal.SelectForRemoval(d.pop, d.species, excess, batch, d.rng)
		d.dropGenomes(removed)
	}
	if len(d.pop) > d.cfg.PopulationCap {
		return fmt.Errorf("population %d exceeds cap %d after removal: %w", len(d.pop), d.cfg.PopulationCap, ErrInvariant)
	}

	if err := d.respeciateOnCadence(); err != nil {
		return err
	}

	d.stats.Generation = batch
	d.updateBest()
	d.updateStats(counts)
	d.applyRegulation()
	return nil
}

func (d *QueueDriver) selectParents() []Genome {
	switch d.cfg.BatchMode {
	case PerSpeciesQueueBatch:
		if d.speciated {
			return d.selectParentsPerSpecies()
		}
		fallthrough
	default:
		n := d.cfg.BatchSize
		if n > len(d.pop) {
			n = len(d.pop)
		}
		parents := make([]Genome, n)
		copy(parents, d.pop[:n])
		return parents
	}
}

// selectParentsPerSpecies walks the queue front-to-back taking up to
// batchSize members per species, preserving queue order within each family.
func (d *QueueDriver) selectParentsPerSpecies() []Genome {
	specieOf := make(map[string]int, len(d.pop))
	for _, sp := range d.species {
		for _, g := range sp.Members {
			specieOf[g.ID()] = sp.Index
		}
	}
	taken := make(map[int]int, len(d.species))
	parents := make([]Genome, 0, d.cfg.BatchSize*len(d.species))
	for _, g := range d.pop {
		idx, ok := specieOf[g.ID()]
		if !ok {
			continue
		}
		if taken[idx] >= d.cfg.BatchSize {
			continue
		}
		taken[idx]++
		parents = append(parents, g)
	}
	return parents
}

func (d *QueueDriver) removeFromQueue(parents []Genome) {
	ids := make(map[string]struct{}, len(parents))
	for _, g := range parents {
		ids[g.ID()] = struct{}{}
	}
	kept := d.pop[:0]
	for _, g := range d.pop {
		if _, drop := ids[g.ID()]; drop {
			continue
		}
		kept = append(kept, g)
	}
	d.pop = kept
}

func (d *QueueDriver) dropGenomes(ids map[string]struct{}) {
	kept := d.pop[:0]
	for _, g := range d.pop {
		if _, drop := ids[g.ID()]; drop {
			continue
		}
		kept = append(kept, g)
	}
	d.pop = kept
	for _, sp := range d.species {
		members := sp.Members[:0]
		for _, g := range sp.Members {
			if _, drop := ids[g.ID()]; drop {
				continue
			}
			members = append(members, g)
		}
		sp.Members = members
	}
}

// capOverfullSpecies sheds the oldest members of any species that grew past
// the configured per-species limit. Runs before the global removal policy so
// crowded species pay for their own overflow first.
func (d *QueueDriver) capOverfullSpecies() {
	limit := d.active.MaxSpecieSize
	if limit <= 0 || !d.speciated {
		return
	}
	removed := make(map[string]struct{})
	for _, sp := range d.species {
		excess := len(sp.Members) - limit
		if excess <= 0 {
			continue
		}
		order := make([]int, len(sp.Members))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return sp.Members[order[a]].BirthGeneration() < sp.Members[order[b]].BirthGeneration()
		})
		for _, j := range order[:excess] {
			removed[sp.Members[j].ID()] = struct{}{}
		}
	}
	if len(removed) > 0 {
		d.dropGenomes(removed)
	}
}

func (d *QueueDriver) maybeSpeciate() error {
	if d.speciated || len(d.pop) <= d.active.SpecieCount {
		return nil
	}
	species, err := d.cfg.Speciation.InitializeSpeciation(d.pop, d.active.SpecieCount)
	if err != nil {
		return fmt.Errorf("initialize speciation: %w", err)
	}
	if anyEmptySpecies(species) {
		return fmt.Errorf("empty species after initial speciation: %w", ErrInvariant)
	}
	d.species = species
	d.speciated = true
	d.batchesSinceRespeciation = 0
	return nil
}

func (d *QueueDriver) respeciateOnCadence() error {
	if !d.speciated {
		return d.maybeSpeciate()
	}
	d.batchesSinceRespeciation++
	if d.batchesSinceRespeciation < d.cfg.RespeciateInterval {
		return nil
	}
	if len(d.pop) <= d.active.SpecieCount {
		// Deferred: too few genomes to fill every species.
		return nil
	}
	// Census check first: when every species would keep its current member
	// count the full pass is skipped until the next cadence.
	assignments, err := d.cfg.Speciation.FindClosestAssignments(d.pop, d.species)
	if err != nil {
		return fmt.Errorf("closest assignments: %w", err)
	}
	if !censusDrifted(d.species, assignments) {
		d.batchesSinceRespeciation = 0
		return nil
	}
	if err := d.cfg.Speciation.SpeciateGenomes(d.pop, d.species); err != nil {
		return fmt.Errorf("periodic respeciation: %w", err)
	}
	if anyEmptySpecies(d.species) {
		return fmt.Errorf("empty species after full respeciation: %w", ErrInvariant)
	}
	d.batchesSinceRespeciation = 0
	return nil
}

// censusDrifted reports whether any species' closest-assignment count
// differs from its current size. Both sides sum to the population, so a
// per-species comparison catches drift in either direction.
func censusDrifted(species []*Species, assignments map[int]int) bool {
	for _, sp := range species {
		if assignments[sp.Index] != len(sp.Members) {
			return true
		}
	}
	return false
}

func (d *QueueDriver) updateBest() {
	d.best = nil
	for _, g := range d.pop {
		if !g.Evaluation().IsViable {
			continue
		}
		if d.best == nil || g.Evaluation().Fitness > d.best.Evaluation().Fitness {
			d.best = g
		}
	}
}

func (d *QueueDriver) updateStats(counts ReproductionCounts) {
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

	d.stats.BestFitnessMA.Push(d.stats.BestFitness)
	champTotal := 0.0
	champs := 0
	for _, sp := range d.species {
		bestInSpecie := 0.0
		found := false
		for _, g := range sp.Members {
			if !found || g.Evaluation().Fitness > bestInSpecie {
				bestInSpecie = g.Evaluation().Fitness
				found = true
			}
		}
		if found {
			champTotal += bestInSpecie
			champs++
		}
	}
	if champs > 0 {
		d.stats.MeanSpecieChampFitnessMA.Push(champTotal / float64(champs))
	}
	d.stats.ComplexityMA.Push(d.stats.MeanComplexity)
}

func (d *QueueDriver) applyRegulation() {
	mode := d.cfg.Regulation.DetermineMode(d.stats.Snapshot())
	if mode == d.mode {
		return
	}
	d.logger.Info("complexity regulation mode change",
		"batch", d.stats.Generation,
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

func (d *QueueDriver) Snapshot() StatsSnapshot { return d.stats.Snapshot() }

func (d *QueueDriver) BestGenome() Genome { return d.best }

func (d *QueueDriver) Population() []Genome { return d.pop }

func (d *QueueDriver) SpeciesList() []*Species { return d.species }

func (d *QueueDriver) Mode() ComplexityMode { return d.mode }
