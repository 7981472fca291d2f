package evo

import (
	"context"
	"fmt"
)

// BaselineHandoff is the only state exchanged between the two populations of
// a coevolution run: after both iterate, the handoff lets each side update
// its evaluation baseline from the other's progress.
type BaselineHandoff func(ctx context.Context, primary, secondary Iterator) error

// PopulationSource is implemented by drivers that expose their live
// population, which the baseline handoff needs to re-score a side in place.
type PopulationSource interface {
	Population() []Genome
}

// NewBridgedBaselineHandoff builds the standard handoff: after both sides
// iterate, each evaluator with the bridging capability re-scores its own
// population, recording the alternate reading as auxiliary fitness. A side
// whose evaluator or iterator lacks the capability is skipped.
func NewBridgedBaselineHandoff(primaryEval, secondaryEval GenomeListEvaluator) BaselineHandoff {
	return func(ctx context.Context, primary, secondary Iterator) error {
		if err := bridgeSide(ctx, primaryEval, primary); err != nil {
			return fmt.Errorf("bridge primary: %w", err)
		}
		if err := bridgeSide(ctx, secondaryEval, secondary); err != nil {
			return fmt.Errorf("bridge secondary: %w", err)
		}
		return nil
	}
}

func bridgeSide(ctx context.Context, evaluator GenomeListEvaluator, it Iterator) error {
	bridged, ok := evaluator.(BridgingEvaluator)
	if !ok {
		return nil
	}
	src, ok := it.(PopulationSource)
	if !ok {
		return nil
	}
	return bridged.EvaluateBridged(ctx, src.Population(), it.Snapshot().Generation)
}

// CoevolutionIterator runs two independent drivers serially within one
// control loop on a single worker. The drivers share no mutable state; the
// handoff is the explicit exchange point between iterations.
type CoevolutionIterator struct {
	primary   Iterator
	secondary Iterator
	handoff   BaselineHandoff
}

func NewCoevolutionIterator(primary, secondary Iterator, handoff BaselineHandoff) (*CoevolutionIterator, error) {
	if primary == nil || secondary == nil {
		return nil, fmt.Errorf("both iterators are required")
	}
	return &CoevolutionIterator{primary: primary, secondary: secondary, handoff: handoff}, nil
}

func (c *CoevolutionIterator) PerformIteration(ctx context.Context) error {
	if err := c.primary.PerformIteration(ctx); err != nil {
		return fmt.Errorf("primary population: %w", err)
	}
	if err := c.secondary.PerformIteration(ctx); err != nil {
		return fmt.Errorf("secondary population: %w", err)
	}
	if c.handoff != nil {
		if err := c.handoff(ctx, c.primary, c.secondary); err != nil {
			return fmt.Errorf("evaluation baseline handoff: %w", err)
		}
	}
	return nil
}

// Snapshot reports the primary population's statistics; use SecondarySnapshot
// for the other side.
func (c *CoevolutionIterator) Snapshot() StatsSnapshot { return c.primary.Snapshot() }

func (c *CoevolutionIterator) SecondarySnapshot() StatsSnapshot { return c.secondary.Snapshot() }

// BestGenome returns the fitter of the two populations' best genomes.
func (c *CoevolutionIterator) BestGenome() Genome {
	a, b := c.primary.BestGenome(), c.secondary.BestGenome()
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Evaluation().Fitness > a.Evaluation().Fitness {
		return b
	}
	return a
}
