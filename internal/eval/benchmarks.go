package eval

import (
	"context"
	"fmt"
	"math"

	"anagenesis/internal/evo"
	"anagenesis/internal/genome"
)

// Sphere scores a vector genome by closeness to the origin. Fitness is
// 1/(1+sum(x^2)), so the optimum at the origin scores 1.
func Sphere(ctx context.Context, g evo.Genome) (float64, bool, error) {
	vg, ok := g.(*genome.VectorGenome)
	if !ok {
		return 0, false, fmt.Errorf("sphere benchmark requires a vector genome, got %T", g)
	}
	sum := 0.0
	for _, v := range vg.Genes() {
		sum += v * v
	}
	return 1 / (1 + sum), true, nil
}

// OneMax counts active genes; it rewards growing complexity and pairs well
// with the ceiling regulation strategy in tests.
func OneMax(ctx context.Context, g evo.Genome) (float64, bool, error) {
	return g.Complexity(), true, nil
}

// Rastrigin is the classic multimodal benchmark, mapped into (0,1] the same
// way as Sphere.
func Rastrigin(ctx context.Context, g evo.Genome) (float64, bool, error) {
	vg, ok := g.(*genome.VectorGenome)
	if !ok {
		return 0, false, fmt.Errorf("rastrigin benchmark requires a vector genome, got %T", g)
	}
	sum := 10 * float64(len(vg.Genes()))
	for _, v := range vg.Genes() {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return 1 / (1 + math.Abs(sum)), true, nil
}

// ViabilityThreshold wraps a fitness function so genomes scoring below min
// are marked non-viable. The queueing driver discards non-viable offspring.
func ViabilityThreshold(fn FitnessFunc, min float64) FitnessFunc {
	return func(ctx context.Context, g evo.Genome) (float64, bool, error) {
		fitness, viable, err := fn(ctx, g)
		if err != nil {
			return 0, false, err
		}
		return fitness, viable && fitness >= min, nil
	}
}
