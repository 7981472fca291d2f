package evo

import "fmt"

// Parameters is an immutable configuration set for reproduction and
// selection. Two sets exist per run, one for the complexifying phase and one
// for the simplifying phase; exactly one is active at a time.
type Parameters struct {
	ElitismProportion            float64
	SelectionProportion          float64
	OffspringAsexualProportion   float64
	OffspringSexualProportion    float64
	InterspeciesMatingProportion float64

	SpecieCount int
	// MaxSpecieSize caps how large a species may grow in the queueing
	// driver; the oldest members are shed past it. Zero disables the cap.
	MaxSpecieSize int

	BestFitnessMovingAverageLength            int
	MeanSpecieChampFitnessMovingAverageLength int
	ComplexityMovingAverageLength             int
}

func DefaultParameters() Parameters {
	return Parameters{
		ElitismProportion:            0.2,
		SelectionProportion:          0.2,
		OffspringAsexualProportion:   0.5,
		OffspringSexualProportion:    0.5,
		InterspeciesMatingProportion: 0.01,

		SpecieCount:   10,
		MaxSpecieSize: 0,

		BestFitnessMovingAverageLength:            100,
		MeanSpecieChampFitnessMovingAverageLength: 100,
		ComplexityMovingAverageLength:             100,
	}
}

// SimplifyingVariant derives the parameter set used while the regulation
// strategy holds the population in simplifying mode: reproduction is entirely
// asexual so complexity can only fall through pruning mutations.
func (p Parameters) SimplifyingVariant() Parameters {
	out := p
	out.OffspringAsexualProportion = 1.0
	out.OffspringSexualProportion = 0.0
	return out
}

func (p Parameters) Validate() error {
	proportions := []struct {
		name  string
		value float64
	}{
		{"elitism proportion", p.ElitismProportion},
		{"selection proportion", p.SelectionProportion},
		{"offspring asexual proportion", p.OffspringAsexualProportion},
		{"offspring sexual proportion", p.OffspringSexualProportion},
		{"interspecies mating proportion", p.InterspeciesMatingProportion},
	}
	for _, item := range proportions {
		if item.value < 0 || item.value > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", item.name, item.value)
		}
	}
	if sum := p.OffspringAsexualProportion + p.OffspringSexualProportion; sum <= 0 || sum > 1.0000001 {
		return fmt.Errorf("asexual+sexual offspring proportions must sum to (0,1], got %v", sum)
	}
	if p.SelectionProportion == 0 {
		return fmt.Errorf("selection proportion must be > 0")
	}
	if p.SpecieCount <= 0 {
		return fmt.Errorf("specie count must be > 0, got %d", p.SpecieCount)
	}
	if p.MaxSpecieSize < 0 {
		return fmt.Errorf("max specie size must be >= 0, got %d", p.MaxSpecieSize)
	}
	if p.BestFitnessMovingAverageLength <= 0 ||
		p.MeanSpecieChampFitnessMovingAverageLength <= 0 ||
		p.ComplexityMovingAverageLength <= 0 {
		return fmt.Errorf("moving average lengths must be > 0")
	}
	return nil
}
