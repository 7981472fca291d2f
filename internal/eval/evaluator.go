// Package eval provides genome list evaluators: a serial evaluator and a
// worker-pool parallel evaluator, both driving a user-supplied fitness
// function.
package eval

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"anagenesis/internal/evo"
)

// FitnessFunc scores a single genome. Higher is better. Returning viable
// false marks the genome for removal by the queueing driver.
type FitnessFunc func(ctx context.Context, g evo.Genome) (fitness float64, viable bool, err error)

// Config is shared by both evaluators.
type Config struct {
	Fitness FitnessFunc
	// StopFitness ends the run once any genome reaches it. Zero disables the
	// stop condition.
	StopFitness float64
	// Workers is the pool size for the parallel evaluator. Defaults to 4.
	Workers int
}

func (c *Config) validate() error {
	if c.Fitness == nil {
		return fmt.Errorf("fitness function is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	return nil
}

// SerialEvaluator scores genomes one at a time on the calling goroutine.
type SerialEvaluator struct {
	cfg         Config
	evaluations int
	stopped     bool
	initialized bool
	cleanups    int
}

func NewSerialEvaluator(cfg Config) (*SerialEvaluator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}
	return &SerialEvaluator{cfg: cfg}, nil
}

func (e *SerialEvaluator) Initialize(ctx context.Context) error {
	if e.initialized {
		return fmt.Errorf("evaluator already initialized")
	}
	e.initialized = true
	return nil
}

func (e *SerialEvaluator) Evaluate(ctx context.Context, genomes []evo.Genome, generation int) error {
	for _, g := range genomes {
		if err := ctx.Err(); err != nil {
			return err
		}
		fitness, viable, err := e.cfg.Fitness(ctx, g)
		if err != nil {
			return fmt.Errorf("evaluate genome %s: %w", g.ID(), err)
		}
		ev := g.Evaluation()
		ev.Fitness = fitness
		ev.IsViable = viable
		ev.EvaluationCount++
		e.evaluations++
		if e.cfg.StopFitness > 0 && fitness >= e.cfg.StopFitness {
			e.stopped = true
		}
	}
	return nil
}

func (e *SerialEvaluator) EvaluationCount() int         { return e.evaluations }
func (e *SerialEvaluator) StopConditionSatisfied() bool { return e.stopped }

func (e *SerialEvaluator) Cleanup() error {
	e.cleanups++
	if e.cleanups > 1 {
		return fmt.Errorf("cleanup called %d times", e.cleanups)
	}
	return nil
}

// ParallelEvaluator scores genomes on a fixed worker pool. Fitness functions
// must be safe for concurrent use.
type ParallelEvaluator struct {
	cfg         Config
	evaluations atomic.Int64
	stopped     atomic.Bool
	cleanups    int
}

func NewParallelEvaluator(cfg Config) (*ParallelEvaluator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}
	return &ParallelEvaluator{cfg: cfg}, nil
}

func (e *ParallelEvaluator) Initialize(ctx context.Context) error { return nil }

func (e *ParallelEvaluator) Evaluate(ctx context.Context, genomes []evo.Genome, generation int) error {
	type job struct {
		idx    int
		genome evo.Genome
	}
	type result struct {
		idx int
		err error
	}

	jobs := make(chan job)
	results := make(chan result, len(genomes))

	workerCount := e.cfg.Workers
	if workerCount > len(genomes) {
		workerCount = len(genomes)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				fitness, viable, err := e.cfg.Fitness(ctx, j.genome)
				if err != nil {
					results <- result{idx: j.idx, err: fmt.Errorf("evaluate genome %s: %w", j.genome.ID(), err)}
					continue
				}
				ev := j.genome.Evaluation()
				ev.Fitness = fitness
				ev.IsViable = viable
				ev.EvaluationCount++
				e.evaluations.Add(1)
				if e.cfg.StopFitness > 0 && fitness >= e.cfg.StopFitness {
					e.stopped.Store(true)
				}
				results <- result{idx: j.idx}
			}
		}()
	}

	for i := range genomes {
		jobs <- job{idx: i, genome: genomes[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			return res.err
		}
	}
	return nil
}

func (e *ParallelEvaluator) EvaluationCount() int         { return int(e.evaluations.Load()) }
func (e *ParallelEvaluator) StopConditionSatisfied() bool { return e.stopped.Load() }

func (e *ParallelEvaluator) Cleanup() error {
	e.cleanups++
	if e.cleanups > 1 {
		return fmt.Errorf("cleanup called %d times", e.cleanups)
	}
	return nil
}
