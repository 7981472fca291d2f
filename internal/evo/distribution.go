package evo

import (
	"math"
	"math/rand"
)

// DiscreteDistribution is a roulette wheel over a fixed set of labelled
// outcomes with non-negative weights. A zero ProbabilitiesTotal signals that
// no viable outcome remains; callers must check it before throwing.
type DiscreteDistribution struct {
	weights []float64
	labels  []int
	total   float64
}

// NewDiscreteDistribution builds a wheel whose labels are the weight indices.
// Negative weights are treated as zero.
func NewDiscreteDistribution(weights []float64) *DiscreteDistribution {
	w := make([]float64, len(weights))
	labels := make([]int, len(weights))
	total := 0.0
	for i, v := range weights {
		if v < 0 {
			v = 0
		}
		w[i] = v
		labels[i] = i
		total += v
	}
	return &DiscreteDistribution{weights: w, labels: labels, total: total}
}

// ProbabilitiesTotal is the sum of the remaining outcome weights.
func (d *DiscreteDistribution) ProbabilitiesTotal() float64 { return d.total }

func (d *DiscreteDistribution) OutcomeCount() int { return len(d.labels) }

// SingleThrow draws a uniform value scaled to the total weight and returns the
// label whose cumulative range contains it. An outcome with zero weight is
// never returned while any outcome has positive weight. Returns -1 when the
// wheel has no viable outcomes.
func (d *DiscreteDistribution) SingleThrow(rng *rand.Rand) int {
	if d.total <= 0 {
		return -1
	}
	r := rng.Float64() * d.total
	acc := 0.0
	last := -1
	for i, w := range d.weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = d.labels[i]
		if r < acc {
			return last
		}
	}
	// Floating-point accumulation can leave r marginally past the final
	// cumulative bound; the last positive outcome absorbs it.
	return last
}

// RemoveOutcome returns a new wheel excluding the given label. The receiver
// is unchanged.
func (d *DiscreteDistribution) RemoveOutcome(label int) *DiscreteDistribution {
	w := make([]float64, 0, len(d.weights))
	labels := make([]int, 0, len(d.labels))
	total := 0.0
	for i, l := range d.labels {
		if l == label {
			continue
		}
		w = append(w, d.weights[i])
		labels = append(labels, l)
		total += d.weights[i]
	}
	return &DiscreteDistribution{weights: w, labels: labels, total: total}
}

// ProbabilisticRound rounds v up with probability equal to its fractional
// part, down otherwise. Across repeated rounds of the same value the sample
// mean converges to v, so discretisation error carries no systematic bias.
func ProbabilisticRound(v float64, rng *rand.Rand) int {
	floor := math.Floor(v)
	if rng.Float64() < v-floor {
		return int(floor) + 1
	}
	return int(floor)
}
