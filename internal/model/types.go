package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunStatus is the persisted lifecycle state of an evolution run.
type RunStatus string

const (
	RunStatusReady      RunStatus = "ready"
	RunStatusRunning    RunStatus = "running"
	RunStatusPaused     RunStatus = "paused"
	RunStatusTerminated RunStatus = "terminated"
)

// RunMode names the driver behind a run.
type RunMode string

const (
	RunModeGenerational RunMode = "generational"
	RunModeQueueing     RunMode = "queueing"
)

// RunRecord is the durable header of one evolution run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Mode           RunMode   `json:"mode"`
	Status         RunStatus `json:"status"`
	PopulationSize int       `json:"population_size"`
	SpecieCount    int       `json:"specie_count"`
	Generations    int       `json:"generations"`
	BestFitness    float64   `json:"best_fitness"`
	BestGenomeID   string    `json:"best_genome_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IterationRecord is one persisted iteration of run statistics.
type IterationRecord struct {
	VersionedRecord
	Generation                 int     `json:"generation"`
	BestFitness                float64 `json:"best_fitness"`
	MeanFitness                float64 `json:"mean_fitness"`
	MaxComplexity              float64 `json:"max_complexity"`
	MeanComplexity             float64 `json:"mean_complexity"`
	TotalEvaluationCount       int     `json:"total_evaluation_count"`
	EvaluationsPerSec          float64 `json:"evaluations_per_sec"`
	TotalOffspringCount        int     `json:"total_offspring_count"`
	AsexualOffspringCount      int     `json:"asexual_offspring_count"`
	SexualOffspringCount       int     `json:"sexual_offspring_count"`
	InterspeciesOffspringCount int     `json:"interspecies_offspring_count"`
	MinSpecieSize              int     `json:"min_specie_size"`
	MaxSpecieSize              int     `json:"max_specie_size"`
	ComplexityMode             string  `json:"complexity_mode"`
}

// SpecieMetrics is the per-species slice of one iteration.
type SpecieMetrics struct {
	Index           int     `json:"index"`
	Size            int     `json:"size"`
	MeanFitness     float64 `json:"mean_fitness"`
	ChampionID      string  `json:"champion_id"`
	ChampionFitness float64 `json:"champion_fitness"`
}

// SpeciesIteration records the species composition at one iteration.
type SpeciesIteration struct {
	VersionedRecord
	Generation int             `json:"generation"`
	Species    []SpecieMetrics `json:"species"`
}

// ChampionRecord preserves the best genome of a run in serialized form.
type ChampionRecord struct {
	VersionedRecord
	GenomeID   string  `json:"genome_id"`
	Fitness    float64 `json:"fitness"`
	Complexity float64 `json:"complexity"`
	Generation int     `json:"generation"`
	Genes      []byte  `json:"genes"`
}
