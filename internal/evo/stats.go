package evo

import "time"

// MovingAverage is a fixed-window ring buffer that retains the previous mean
// alongside the current one, which is what stall detection compares.
type MovingAverage struct {
	window   []float64
	next     int
	count    int
	sum      float64
	mean     float64
	prevMean float64
}

func NewMovingAverage(length int) *MovingAverage {
	if length < 1 {
		length = 1
	}
	return &MovingAverage{window: make([]float64, length)}
}

func (m *MovingAverage) Push(v float64) {
	if m.count == len(m.window) {
		m.sum -= m.window[m.next]
	} else {
		m.count++
	}
	m.window[m.next] = v
	m.sum += v
	m.next = (m.next + 1) % len(m.window)
	m.prevMean = m.mean
	m.mean = m.sum / float64(m.count)
}

func (m *MovingAverage) Mean() float64     { return m.mean }
func (m *MovingAverage) PrevMean() float64 { return m.prevMean }
func (m *MovingAverage) Count() int        { return m.count }

func (m *MovingAverage) snapshot() MovingAverageSnapshot {
	return MovingAverageSnapshot{Mean: m.mean, PrevMean: m.prevMean, Count: m.count}
}

type MovingAverageSnapshot struct {
	Mean     float64 `json:"mean"`
	PrevMean float64 `json:"prev_mean"`
	Count    int     `json:"count"`
}

// AlgorithmStats aggregates run statistics. It is owned and written by the
// driver on the worker goroutine; external observers receive value copies via
// Snapshot. Reads of the struct itself mid-iteration are undefined, a
// deliberate tradeoff that keeps the hot loop lock-free.
type AlgorithmStats struct {
	Generation           int
	TotalEvaluationCount int
	EvaluationsPerSec    float64

	BestFitness    float64
	MeanFitness    float64
	MaxComplexity  float64
	MeanComplexity float64

	// Cumulative reproduction-mode counters; monotonically non-decreasing.
	TotalOffspringCount        int
	AsexualOffspringCount      int
	SexualOffspringCount       int
	InterspeciesOffspringCount int

	MinSpecieSize int
	MaxSpecieSize int

	BestFitnessMA            *MovingAverage
	MeanSpecieChampFitnessMA *MovingAverage
	ComplexityMA             *MovingAverage

	evalsPerSecSampleTime  time.Time
	evalsPerSecSampleCount int
}

func NewAlgorithmStats(p Parameters) *AlgorithmStats {
	return &AlgorithmStats{
		BestFitnessMA:            NewMovingAverage(p.BestFitnessMovingAverageLength),
		MeanSpecieChampFitnessMA: NewMovingAverage(p.MeanSpecieChampFitnessMovingAverageLength),
		ComplexityMA:             NewMovingAverage(p.ComplexityMovingAverageLength),
	}
}

// AddReproductionCounts folds one iteration's offspring tallies into the
// cumulative counters.
func (s *AlgorithmStats) AddReproductionCounts(c ReproductionCounts) {
	s.AsexualOffspringCount += c.Asexual
	s.SexualOffspringCount += c.Sexual
	s.InterspeciesOffspringCount += c.Interspecies
	s.TotalOffspringCount += c.Total()
}

// SampleEvaluationsPerSec updates the evaluations/sec reading, no more than
// once per second of wall-clock time.
func (s *AlgorithmStats) SampleEvaluationsPerSec(totalEvaluations int, now time.Time) {
	s.TotalEvaluationCount = totalEvaluations
	if s.evalsPerSecSampleTime.IsZero() {
		s.evalsPerSecSampleTime = now
		s.evalsPerSecSampleCount = totalEvaluations
		return
	}
	elapsed := now.Sub(s.evalsPerSecSampleTime)
	if elapsed < time.Second {
		return
	}
	s.EvaluationsPerSec = float64(totalEvaluations-s.evalsPerSecSampleCount) / elapsed.Seconds()
	s.evalsPerSecSampleTime = now
	s.evalsPerSecSampleCount = totalEvaluations
}

// UpdateSpecieSizes records the species-size extrema for this iteration.
func (s *AlgorithmStats) UpdateSpecieSizes(species []*Species) {
	if len(species) == 0 {
		s.MinSpecieSize, s.MaxSpecieSize = 0, 0
		return
	}
	minSize := len(species[0].Members)
	maxSize := minSize
	for _, sp := range species[1:] {
		n := len(sp.Members)
		if n < minSize {
			minSize = n
		}
		if n > maxSize {
			maxSize = n
		}
	}
	s.MinSpecieSize, s.MaxSpecieSize = minSize, maxSize
}

// Snapshot returns a read-only value copy for observers.
func (s *AlgorithmStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Generation:                 s.Generation,
		TotalEvaluationCount:       s.TotalEvaluationCount,
		EvaluationsPerSec:          s.EvaluationsPerSec,
		BestFitness:                s.BestFitness,
		MeanFitness:                s.MeanFitness,
		MaxComplexity:              s.MaxComplexity,
		MeanComplexity:             s.MeanComplexity,
		TotalOffspringCount:        s.TotalOffspringCount,
		AsexualOffspringCount:      s.AsexualOffspringCount,
		SexualOffspringCount:       s.SexualOffspringCount,
		InterspeciesOffspringCount: s.InterspeciesOffspringCount,
		MinSpecieSize:              s.MinSpecieSize,
		MaxSpecieSize:              s.MaxSpecieSize,
		BestFitnessMA:              s.BestFitnessMA.snapshot(),
		MeanSpecieChampFitnessMA:   s.MeanSpecieChampFitnessMA.snapshot(),
		ComplexityMA:               s.ComplexityMA.snapshot(),
	}
}

// StatsSnapshot is the immutable view of AlgorithmStats handed to observers,
// the complexity-regulation strategy and the persistence layer.
type StatsSnapshot struct {
	Generation           int     `json:"generation"`
	TotalEvaluationCount int     `json:"total_evaluation_count"`
	EvaluationsPerSec    float64 `json:"evaluations_per_sec"`

	BestFitness    float64 `json:"best_fitness"`
	MeanFitness    float64 `json:"mean_fitness"`
	MaxComplexity  float64 `json:"max_complexity"`
	MeanComplexity float64 `json:"mean_complexity"`

	TotalOffspringCount        int `json:"total_offspring_count"`
	AsexualOffspringCount      int `json:"asexual_offspring_count"`
	SexualOffspringCount       int `json:"sexual_offspring_count"`
	InterspeciesOffspringCount int `json:"interspecies_offspring_count"`

	MinSpecieSize int `json:"min_specie_size"`
	MaxSpecieSize int `json:"max_specie_size"`

	BestFitnessMA            MovingAverageSnapshot `json:"best_fitness_ma"`
	MeanSpecieChampFitnessMA MovingAverageSnapshot `json:"mean_specie_champ_fitness_ma"`
	ComplexityMA             MovingAverageSnapshot `json:"complexity_ma"`
}
