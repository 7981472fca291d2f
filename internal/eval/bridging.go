package eval

import (
	"context"

	"anagenesis/internal/evo"
)

// BridgedEvaluator layers an alternate fitness reading on top of a serial
// evaluator. EvaluateBridged scores genomes with the bridge function and
// records the result as the first auxiliary fitness value, leaving the
// primary fitness untouched.
type BridgedEvaluator struct {
	*SerialEvaluator
	bridge FitnessFunc
}

func NewBridgedEvaluator(cfg Config, bridge FitnessFunc) (*BridgedEvaluator, error) {
	inner, err := NewSerialEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	if bridge == nil {
		bridge = cfg.Fitness
	}
	return &BridgedEvaluator{SerialEvaluator: inner, bridge: bridge}, nil
}

func (e *BridgedEvaluator) EvaluateBridged(ctx context.Context, genomes []evo.Genome, generation int) error {
	for _, g := range genomes {
		if err := ctx.Err(); err != nil {
			return err
		}
		fitness, _, err := e.bridge(ctx, g)
		if err != nil {
			return err
		}
		ev := g.Evaluation()
		if len(ev.AuxFitness) == 0 {
			ev.AuxFitness = append(ev.AuxFitness, fitness)
		} else {
			ev.AuxFitness[0] = fitness
		}
		e.evaluations++
	}
	return nil
}

var _ evo.BridgingEvaluator = (*BridgedEvaluator)(nil)
