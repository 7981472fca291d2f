// Package anagenesis is the public client for configuring, running and
// inspecting evolution runs. It wires genome factories, evaluators,
// speciation and complexity regulation into a driver, executes the run under
// a controller, and persists the run history through a storage backend.
package anagenesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"anagenesis/internal/complexity"
	"anagenesis/internal/eval"
	"anagenesis/internal/evo"
	"anagenesis/internal/genome"
	"anagenesis/internal/model"
	"anagenesis/internal/platform"
	"anagenesis/internal/speciation"
	"anagenesis/internal/storage"
)

const defaultDBPath = "anagenesis.db"

type Options struct {
	// Backend selects the storage backend: memory (default), sqlite or mongo.
	Backend       string
	DBPath        string
	MongoURI      string
	MongoDatabase string
	Logger        *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger
}

// RunRequest configures one evolution run. Zero values select defaults; the
// zero request runs the sphere benchmark generationally with a population of
// 100 for 50 generations.
type RunRequest struct {
	Name      string
	Mode      string // generational or queueing
	Benchmark string // sphere, rastrigin or onemax

	Population   int
	Iterations   int
	GenomeLength int
	SpecieCount  int
	Seed         int64
	Workers      int

	// StopFitness auto-pauses the run once any genome reaches it. Zero
	// disables the stop condition.
	StopFitness float64
	// MaxEvaluations auto-pauses the run once this many genome evaluations
	// have been spent. Zero means unlimited.
	MaxEvaluations int
	// MinViableFitness filters offspring below it out of the queueing
	// driver's population. Zero admits everything.
	MinViableFitness float64

	// Queueing-mode knobs.
	BatchSize          int
	PerSpeciesBatch    bool
	RemovalPolicy      string // apportioned (default) or oldest
	RespeciateInterval int

	// ComplexityCeiling enables ceiling-based complexity regulation when
	// positive.
	ComplexityCeiling      float64
	MinSimplifyGenerations int

	UpdateInterval int

	// OnIteration, when set, receives a progress callback per update
	// notification. It runs on the controller's worker goroutine and must
	// not block.
	OnIteration func(IterationUpdate)
}

// IterationUpdate is the per-iteration progress view delivered to
// RunRequest.OnIteration.
type IterationUpdate struct {
	Iteration   int
	BestFitness float64
	MeanFitness float64
	Evaluations int
}

type RunSummary struct {
	RunID        string
	Name         string
	Mode         string
	Iterations   int
	Evaluations  int
	BestFitness  float64
	BestGenomeID string
	Duration     time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	Name         string
	Mode         string
	Status       string
	Population   int
	SpecieCount  int
	Generations  int
	BestFitness  float64
	CreatedAtUTC string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type SpeciesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ChampionRequest struct {
	RunID  string
	Latest bool
}

type ChampionItem struct {
	RunID      string
	GenomeID   string
	Fitness    float64
	Complexity float64
	Generation int
	Genes      []float64
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storage.Options{
		Backend:       opts.Backend,
		SQLitePath:    dbPath,
		MongoURI:      opts.MongoURI,
		MongoDatabase: opts.MongoDatabase,
	})
	if err != nil {
		return nil, err
	}

	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Reset deletes every persisted run and its history.
func (c *Client) Reset(ctx context.Context) error {
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := c.store.DeleteRun(ctx, r.ID); err != nil {
			return fmt.Errorf("delete run %s: %w", r.ID, err)
		}
	}
	return nil
}

// iterationSource is the view of a driver the run recorder needs beyond the
// controller's iteration interface.
type iterationSource interface {
	evo.Iterator
	SpeciesList() []*evo.Species
	Mode() evo.ComplexityMode
}

// Run executes a complete evolution run synchronously and persists its
// history. The run ends when the iteration limit is reached, the stop fitness
// is satisfied, an iteration fails, or ctx is cancelled.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := applyRunDefaults(&req); err != nil {
		return RunSummary{}, err
	}

	fitness, err := fitnessFromName(req.Benchmark)
	if err != nil {
		return RunSummary{}, err
	}
	if req.MinViableFitness > 0 {
		fitness = eval.ViabilityThreshold(fitness, req.MinViableFitness)
	}

	evaluator, err := newEvaluator(fitness, req)
	if err != nil {
		return RunSummary{}, err
	}

	speciator, err := speciation.NewNearestCentroidStrategy(genome.Distance, req.Seed+1)
	if err != nil {
		return RunSummary{}, err
	}

	var regulation evo.ComplexityRegulationStrategy
	if req.ComplexityCeiling > 0 {
		regulation, err = complexity.NewCeilingStrategy(req.ComplexityCeiling, req.MinSimplifyGenerations)
		if err != nil {
			return RunSummary{}, err
		}
	} else {
		regulation = complexity.NullStrategy{}
	}

	params := evo.DefaultParameters()
	params.SpecieCount = req.SpecieCount

	factory, err := genome.NewFactory(genome.DefaultConfig(req.GenomeLength), req.Seed)
	if err != nil {
		return RunSummary{}, err
	}

	driver, err := newRunDriver(ctx, req, params, speciator, evaluator, regulation, factory)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s", req.Benchmark, req.Mode)
	}
	now := time.Now().UTC()
	record := model.RunRecord{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		Name:            name,
		Mode:            model.RunMode(req.Mode),
		Status:          model.RunStatusRunning,
		PopulationSize:  req.Population,
		SpecieCount:     req.SpecieCount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run record: %w", err)
	}

	rec := &runRecorder{source: driver}
	paused := make(chan struct{}, 1)

	controller, err := platform.NewController(platform.ControllerConfig{
		Iterator:        driver,
		Evaluator:       evaluator,
		IterationLimit:  req.Iterations,
		EvaluationLimit: req.MaxEvaluations,
		UpdateInterval:  req.UpdateInterval,
		Logger:          c.logger,
	})
	if err != nil {
		return RunSummary{}, err
	}
	controller.AddUpdateListener(rec.record)
	if req.OnIteration != nil {
		controller.AddUpdateListener(func(snap evo.StatsSnapshot) {
			if snap.Generation == 0 {
				return
			}
			req.OnIteration(IterationUpdate{
				Iteration:   snap.Generation,
				BestFitness: snap.BestFitness,
				MeanFitness: snap.MeanFitness,
				Evaluations: snap.TotalEvaluationCount,
			})
		})
	}
	controller.AddPauseListener(func(evo.StatsSnapshot) {
		select {
		case paused <- struct{}{}:
		default:
		}
	})

	start := time.Now()
	if err := controller.StartContinue(); err != nil {
		return RunSummary{}, err
	}

	select {
	case <-paused:
	case <-ctx.Done():
		controller.RequestPause()
		<-paused
	}
	duration := time.Since(start)

	runErr := controller.LastError()
	iterations := controller.Iterations()
	snap := controller.Snapshot()
	best := controller.BestGenome()

	if err := controller.Reset(context.Background()); err != nil && runErr == nil {
		runErr = err
	}

	if err := c.persistHistory(ctx, runID, rec, best, snap); err != nil && runErr == nil {
		runErr = err
	}

	record.Status = model.RunStatusTerminated
	record.Generations = iterations
	record.BestFitness = snap.BestFitness
	if best != nil {
		record.BestGenomeID = best.ID()
	}
	record.UpdatedAt = time.Now().UTC()
	if err := c.store.SaveRun(ctx, record); err != nil && runErr == nil {
		runErr = fmt.Errorf("save run record: %w", err)
	}
	if runErr != nil {
		return RunSummary{}, runErr
	}
	if err := ctx.Err(); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		Name:         name,
		Mode:         req.Mode,
		Iterations:   iterations,
		Evaluations:  snap.TotalEvaluationCount,
		BestFitness:  snap.BestFitness,
		BestGenomeID: record.BestGenomeID,
		Duration:     duration,
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	// ListRuns is oldest-first; report newest-first.
	out := make([]RunItem, 0, len(records))
	for i := len(records) - 1; i >= 0 && len(out) < req.Limit; i-- {
		r := records[i]
		out = append(out, RunItem{
			RunID:        r.ID,
			Name:         r.Name,
			Mode:         string(r.Mode),
			Status:       string(r.Status),
			Population:   r.PopulationSize,
			SpecieCount:  r.SpecieCount,
			Generations:  r.Generations,
			BestFitness:  r.BestFitness,
			CreatedAtUTC: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no fitness history for run %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[len(history)-req.Limit:]
	}
	return history, nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.IterationRecord, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	iterations, ok, err := c.store.GetIterations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no diagnostics for run %s", runID)
	}
	if req.Limit > 0 && len(iterations) > req.Limit {
		iterations = iterations[len(iterations)-req.Limit:]
	}
	return iterations, nil
}

func (c *Client) Species(ctx context.Context, req SpeciesRequest) ([]model.SpeciesIteration, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetSpeciesHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no species history for run %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[len(history)-req.Limit:]
	}
	return history, nil
}

func (c *Client) Champion(ctx context.Context, req ChampionRequest) (ChampionItem, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ChampionItem{}, err
	}
	champion, ok, err := c.store.GetChampion(ctx, runID)
	if err != nil {
		return ChampionItem{}, err
	}
	if !ok {
		return ChampionItem{}, fmt.Errorf("no champion for run %s", runID)
	}
	item := ChampionItem{
		RunID:      runID,
		GenomeID:   champion.GenomeID,
		Fitness:    champion.Fitness,
		Complexity: champion.Complexity,
		Generation: champion.Generation,
	}
	if len(champion.Genes) > 0 {
		if err := json.Unmarshal(champion.Genes, &item.Genes); err != nil {
			return ChampionItem{}, fmt.Errorf("decode champion genes: %w", err)
		}
	}
	return item, nil
}

func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("delete requires a run id")
	}
	return c.store.DeleteRun(ctx, runID)
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", errors.New("no runs available")
	}
	return records[len(records)-1].ID, nil
}

func (c *Client) persistHistory(ctx context.Context, runID string, rec *runRecorder, best evo.Genome, snap evo.StatsSnapshot) error {
	fitness, iterations, species := rec.history()
	if err := c.store.SaveFitnessHistory(ctx, runID, fitness); err != nil {
		return fmt.Errorf("save fitness history: %w", err)
	}
	if err := c.store.SaveIterations(ctx, runID, iterations); err != nil {
		return fmt.Errorf("save iterations: %w", err)
	}
	if err := c.store.SaveSpeciesHistory(ctx, runID, species); err != nil {
		return fmt.Errorf("save species history: %w", err)
	}
	if best == nil {
		return nil
	}
	champion := model.ChampionRecord{
		VersionedRecord: storage.Stamp(),
		GenomeID:        best.ID(),
		Fitness:         best.Evaluation().Fitness,
		Complexity:      best.Complexity(),
		Generation:      snap.Generation,
	}
	if vg, ok := best.(*genome.VectorGenome); ok {
		genes, err := json.Marshal(vg.Genes())
		if err != nil {
			return fmt.Errorf("encode champion genes: %w", err)
		}
		champion.Genes = genes
	}
	if err := c.store.SaveChampion(ctx, runID, champion); err != nil {
		return fmt.Errorf("save champion: %w", err)
	}
	return nil
}

// runRecorder accumulates per-iteration history from update notifications.
// Notifications arrive on the controller's worker goroutine; history() is
// called only after the run has paused.
type runRecorder struct {
	source iterationSource

	mu         sync.Mutex
	fitness    []float64
	iterations []model.IterationRecord
	species    []model.SpeciesIteration
}

func (r *runRecorder) record(snap evo.StatsSnapshot) {
	// The controller also notifies on start and resume; history rows are one
	// per completed iteration.
	if snap.Generation == 0 {
		return
	}
	iteration := model.IterationRecord{
		VersionedRecord:            storage.Stamp(),
		Generation:                 snap.Generation,
		BestFitness:                snap.BestFitness,
		MeanFitness:                snap.MeanFitness,
		MaxComplexity:              snap.MaxComplexity,
		MeanComplexity:             snap.MeanComplexity,
		TotalEvaluationCount:       snap.TotalEvaluationCount,
		EvaluationsPerSec:          snap.EvaluationsPerSec,
		TotalOffspringCount:        snap.TotalOffspringCount,
		AsexualOffspringCount:      snap.AsexualOffspringCount,
		SexualOffspringCount:       snap.SexualOffspringCount,
		InterspeciesOffspringCount: snap.InterspeciesOffspringCount,
		MinSpecieSize:              snap.MinSpecieSize,
		MaxSpecieSize:              snap.MaxSpecieSize,
		ComplexityMode:             r.source.Mode().String(),
	}

	metrics := make([]model.SpecieMetrics, 0, len(r.source.SpeciesList()))
	for _, sp := range r.source.SpeciesList() {
		m := model.SpecieMetrics{
			Index:       sp.Index,
			Size:        len(sp.Members),
			MeanFitness: sp.MeanFitness(),
		}
		for _, g := range sp.Members {
			if f := g.Evaluation().Fitness; m.ChampionID == "" || f > m.ChampionFitness {
				m.ChampionID = g.ID()
				m.ChampionFitness = f
			}
		}
		metrics = append(metrics, m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.iterations); n > 0 && r.iterations[n-1].Generation == snap.Generation {
		return
	}
	r.fitness = append(r.fitness, snap.BestFitness)
	r.iterations = append(r.iterations, iteration)
	r.species = append(r.species, model.SpeciesIteration{
		VersionedRecord: storage.Stamp(),
		Generation:      snap.Generation,
		Species:         metrics,
	})
}

func (r *runRecorder) history() ([]float64, []model.IterationRecord, []model.SpeciesIteration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fitness, r.iterations, r.species
}

func applyRunDefaults(req *RunRequest) error {
	if req.Mode == "" {
		req.Mode = string(model.RunModeGenerational)
	}
	if req.Mode != string(model.RunModeGenerational) && req.Mode != string(model.RunModeQueueing) {
		return fmt.Errorf("unsupported mode: %s", req.Mode)
	}
	if req.Benchmark == "" {
		req.Benchmark = "sphere"
	}
	if req.Population <= 0 {
		req.Population = 100
	}
	if req.Iterations <= 0 {
		req.Iterations = 50
	}
	if req.GenomeLength <= 0 {
		req.GenomeLength = 10
	}
	if req.SpecieCount <= 0 {
		req.SpecieCount = 10
	}
	if req.SpecieCount >= req.Population {
		return fmt.Errorf("specie count %d must be below population %d", req.SpecieCount, req.Population)
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 10
	}
	if req.RemovalPolicy == "" {
		req.RemovalPolicy = "apportioned"
	}
	return nil
}

func fitnessFromName(name string) (eval.FitnessFunc, error) {
	switch name {
	case "sphere":
		return eval.Sphere, nil
	case "rastrigin":
		return eval.Rastrigin, nil
	case "onemax":
		return eval.OneMax, nil
	default:
		return nil, fmt.Errorf("unknown benchmark: %s", name)
	}
}

func newEvaluator(fitness eval.FitnessFunc, req RunRequest) (evo.GenomeListEvaluator, error) {
	cfg := eval.Config{
		Fitness:     fitness,
		StopFitness: req.StopFitness,
		Workers:     req.Workers,
	}
	if req.Workers > 1 {
		return eval.NewParallelEvaluator(cfg)
	}
	return eval.NewSerialEvaluator(cfg)
}

func newRunDriver(
	ctx context.Context,
	req RunRequest,
	params evo.Parameters,
	speciator evo.SpeciationStrategy,
	evaluator evo.GenomeListEvaluator,
	regulation evo.ComplexityRegulationStrategy,
	factory *genome.Factory,
) (iterationSource, error) {
	if req.Mode == string(model.RunModeQueueing) {
		batchMode := evo.GlobalQueueBatch
		if req.PerSpeciesBatch {
			batchMode = evo.PerSpeciesQueueBatch
		}
		removal, err := removalFromName(req.RemovalPolicy)
		if err != nil {
			return nil, err
		}
		driver, err := evo.NewQueueDriver(evo.QueueDriverConfig{
			PopulationCap:      req.Population,
			BatchSize:          req.BatchSize,
			BatchMode:          batchMode,
			RespeciateInterval: req.RespeciateInterval,
			Removal:            removal,
			Params:             params,
			Speciation:         speciator,
			Evaluator:          evaluator,
			Regulation:         regulation,
			Seed:               req.Seed,
		})
		if err != nil {
			return nil, err
		}
		if err := driver.Initialize(ctx, factory.CreateGenomeList(req.Population, 0)); err != nil {
			return nil, err
		}
		return driver, nil
	}

	driver, err := evo.NewDriver(evo.DriverConfig{
		PopulationSize: req.Population,
		Params:         params,
		Speciation:     speciator,
		Evaluator:      evaluator,
		Regulation:     regulation,
		Seed:           req.Seed,
	})
	if err != nil {
		return nil, err
	}
	if err := driver.InitializeFromFactory(ctx, factory); err != nil {
		return nil, err
	}
	return driver, nil
}

func removalFromName(name string) (evo.RemovalPolicy, error) {
	switch name {
	case "apportioned":
		return evo.SpeciesApportionedRemoval{}, nil
	case "oldest":
		return evo.OldestGlobalRemoval{}, nil
	default:
		return nil, fmt.Errorf("unknown removal policy: %s", name)
	}
}
