// Package genome provides a real-valued vector genome, the default substrate
// for the engine. Complexity is the number of active (non-zero) genes, so
// mutation can both grow and shrink a genome's effective size.
package genome

import (
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"anagenesis/internal/evo"
)

// VectorGenome is a fixed-length vector of float64 genes. A gene valued
// exactly zero is inactive and does not count toward complexity.
type VectorGenome struct {
	id       string
	birthGen int
	genes    []float64
	eval     evo.EvaluationInfo

	ids    *idSource
	config *Config
}

// Config controls mutation behaviour for a genome lineage. All offspring of a
// factory share the factory's config.
type Config struct {
	// Length is the gene count of every genome in the lineage.
	Length int
	// PerturbStdDev is the sigma of the Gaussian applied to each active gene
	// during asexual reproduction.
	PerturbStdDev float64
	// PerturbRate is the per-gene probability of being perturbed.
	PerturbRate float64
	// ToggleRate is the per-offspring probability of flipping one gene
	// between active and inactive, which moves complexity up or down.
	ToggleRate float64
	// InitActiveProportion is the fraction of genes activated at birth when
	// the factory seeds a population.
	InitActiveProportion float64
}

func DefaultConfig(length int) Config {
	return Config{
		Length:               length,
		PerturbStdDev:        0.1,
		PerturbRate:          0.8,
		ToggleRate:           0.05,
		InitActiveProportion: 0.5,
	}
}

func (c *Config) validate() error {
	if c.Length <= 0 {
		return fmt.Errorf("genome length must be > 0, got %d", c.Length)
	}
	if c.PerturbStdDev <= 0 {
		return fmt.Errorf("perturb std dev must be > 0, got %v", c.PerturbStdDev)
	}
	if c.PerturbRate < 0 || c.PerturbRate > 1 {
		return fmt.Errorf("perturb rate must be in [0,1], got %v", c.PerturbRate)
	}
	if c.ToggleRate < 0 || c.ToggleRate > 1 {
		return fmt.Errorf("toggle rate must be in [0,1], got %v", c.ToggleRate)
	}
	if c.InitActiveProportion <= 0 || c.InitActiveProportion > 1 {
		return fmt.Errorf("initial active proportion must be in (0,1], got %v", c.InitActiveProportion)
	}
	return nil
}

type idSource struct {
	next atomic.Int64
}

func (s *idSource) nextID() string {
	return fmt.Sprintf("g%08d", s.next.Add(1))
}

func (g *VectorGenome) ID() string                      { return g.id }
func (g *VectorGenome) BirthGeneration() int            { return g.birthGen }
func (g *VectorGenome) Evaluation() *evo.EvaluationInfo { return &g.eval }

// Genes returns the underlying gene vector. Callers must not modify it.
func (g *VectorGenome) Genes() []float64 { return g.genes }

func (g *VectorGenome) Complexity() float64 {
	active := 0
	for _, v := range g.genes {
		if v != 0 {
			active++
		}
	}
	return float64(active)
}

func (g *VectorGenome) CreateOffspringAsexual(generation int, rng *rand.Rand) evo.Genome {
	child := g.clone(generation)
	for i := range child.genes {
		if child.genes[i] != 0 && rng.Float64() < g.config.PerturbRate {
			child.genes[i] += rng.NormFloat64() * g.config.PerturbStdDev
			if child.genes[i] == 0 {
				child.genes[i] = math.SmallestNonzeroFloat64
			}
		}
	}
	if rng.Float64() < g.config.ToggleRate {
		i := rng.Intn(len(child.genes))
		if child.genes[i] == 0 {
			child.genes[i] = rng.NormFloat64() * g.config.PerturbStdDev
		} else {
			child.genes[i] = 0
		}
	}
	return child
}

// CreateOffspringSexual performs uniform crossover: each gene is drawn from
// either parent with equal probability.
func (g *VectorGenome) CreateOffspringSexual(other evo.Genome, generation int, rng *rand.Rand) evo.Genome {
	mate, ok := other.(*VectorGenome)
	if !ok || len(mate.genes) != len(g.genes) {
		// Incompatible mate; fall back to cloning this parent.
		return g.CreateOffspringAsexual(generation, rng)
	}
	child := g.clone(generation)
	for i := range child.genes {
		if rng.Intn(2) == 1 {
			child.genes[i] = mate.genes[i]
		}
	}
	return child
}

func (g *VectorGenome) clone(generation int) *VectorGenome {
	genes := make([]float64, len(g.genes))
	copy(genes, g.genes)
	return &VectorGenome{
		id:       g.ids.nextID(),
		birthGen: generation,
		genes:    genes,
		ids:      g.ids,
		config:   g.config,
	}
}

// Factory seeds initial populations of vector genomes and owns the lineage's
// ID sequence.
type Factory struct {
	config Config
	rng    *rand.Rand
	ids    *idSource
}

func NewFactory(config Config, seed int64) (*Factory, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid genome config: %w", err)
	}
	return &Factory{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		ids:    &idSource{},
	}, nil
}

func (f *Factory) CreateGenomeList(count, birthGeneration int) []evo.Genome {
	out := make([]evo.Genome, count)
	for i := range out {
		genes := make([]float64, f.config.Length)
		for j := range genes {
			if f.rng.Float64() < f.config.InitActiveProportion {
				genes[j] = f.rng.NormFloat64()
			}
		}
		out[i] = &VectorGenome{
			id:       f.ids.nextID(),
			birthGen: birthGeneration,
			genes:    genes,
			ids:      f.ids,
			config:   &f.config,
		}
	}
	return out
}

// Distance is the Euclidean distance between two vector genomes, used by the
// nearest-centroid speciation strategy.
func Distance(a, b evo.Genome) (float64, error) {
	va, ok := a.(*VectorGenome)
	if !ok {
		return 0, fmt.Errorf("genome %s is not a vector genome", a.ID())
	}
	vb, ok := b.(*VectorGenome)
	if !ok {
		return 0, fmt.Errorf("genome %s is not a vector genome", b.ID())
	}
	if len(va.genes) != len(vb.genes) {
		return 0, fmt.Errorf("gene length mismatch: %d vs %d", len(va.genes), len(vb.genes))
	}
	sum := 0.0
	for i := range va.genes {
		d := va.genes[i] - vb.genes[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
