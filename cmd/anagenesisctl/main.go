package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/stat"

	"anagenesis/pkg/anagenesis"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "species":
		return runSpecies(ctx, args[1:])
	case "champion":
		return runChampion(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: anagenesisctl <init|reset|run|runs|fitness|diagnostics|species|champion|delete> [flags]", msg)
}

type storeFlags struct {
	backend *string
	dbPath  *string
	mongo   *string
	mongoDB *string
}

func registerStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		backend: fs.String("store", "memory", "store backend: memory|sqlite|mongo"),
		dbPath:  fs.String("db-path", "anagenesis.db", "sqlite database path"),
		mongo:   fs.String("mongo-uri", "", "mongodb connection uri"),
		mongoDB: fs.String("mongo-db", "", "mongodb database name"),
	}
}

func (f storeFlags) newClient() (*anagenesis.Client, error) {
	return anagenesis.New(anagenesis.Options{
		Backend:       *f.backend,
		DBPath:        *f.dbPath,
		MongoURI:      *f.mongo,
		MongoDatabase: *f.mongoDB,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *store.backend)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *store.backend)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	configPath := fs.String("config", "", "JSON run configuration file")
	name := fs.String("name", "", "run name")
	mode := fs.String("mode", "", "driver mode: generational|queueing")
	benchmark := fs.String("benchmark", "", "fitness benchmark: sphere|rastrigin|onemax")
	pop := fs.Int("pop", 0, "population size")
	iterations := fs.Int("iterations", 0, "iteration limit")
	genomeLength := fs.Int("genome-length", 0, "genome vector length")
	specieCount := fs.Int("species", 0, "target species count")
	seed := fs.Int64("seed", 0, "random seed")
	workers := fs.Int("workers", 0, "parallel evaluation workers")
	stopFitness := fs.Float64("stop-fitness", 0, "auto-pause fitness threshold")
	minViable := fs.Float64("min-viable", 0, "queueing viability threshold")
	batchSize := fs.Int("batch-size", 0, "queueing batch size")
	perSpecies := fs.Bool("per-species-batch", false, "draw queueing batches per species")
	removal := fs.String("removal", "", "queueing removal policy: apportioned|oldest")
	respeciate := fs.Int("respeciate-interval", 0, "batches between full respeciations")
	ceiling := fs.Float64("complexity-ceiling", 0, "complexity regulation ceiling")
	minSimplify := fs.Int("min-simplify", 0, "minimum simplifying generations")
	maxEvals := fs.Int("max-evals", 0, "evaluation budget (0 = unlimited)")
	noProgress := fs.Bool("no-progress", false, "disable the live progress tracker")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			req.Name = *name
		case "mode":
			req.Mode = *mode
		case "benchmark":
			req.Benchmark = *benchmark
		case "pop":
			req.Population = *pop
		case "iterations":
			req.Iterations = *iterations
		case "genome-length":
			req.GenomeLength = *genomeLength
		case "species":
			req.SpecieCount = *specieCount
		case "seed":
			req.Seed = *seed
		case "workers":
			req.Workers = *workers
		case "stop-fitness":
			req.StopFitness = *stopFitness
		case "min-viable":
			req.MinViableFitness = *minViable
		case "batch-size":
			req.BatchSize = *batchSize
		case "per-species-batch":
			req.PerSpeciesBatch = *perSpecies
		case "removal":
			req.RemovalPolicy = *removal
		case "respeciate-interval":
			req.RespeciateInterval = *respeciate
		case "complexity-ceiling":
			req.ComplexityCeiling = *ceiling
		case "min-simplify":
			req.MinSimplifyGenerations = *minSimplify
		case "max-evals":
			req.MaxEvaluations = *maxEvals
		}
	})

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	var pw progress.Writer
	if !*jsonOut && !*noProgress {
		pw = progress.NewWriter()
		pw.SetOutputWriter(os.Stdout)
		pw.SetUpdateFrequency(50 * time.Millisecond)
		tracker := &progress.Tracker{Message: "evolving", Total: int64(req.Iterations), Units: progress.UnitsDefault}
		pw.AppendTracker(tracker)
		req.OnIteration = func(u anagenesis.IterationUpdate) {
			tracker.SetValue(int64(u.Iteration))
			tracker.UpdateMessage(fmt.Sprintf("evolving (best %.4f)", u.BestFitness))
		}
		go pw.Render()
	}

	summary, err := client.Run(ctx, req)
	if pw != nil {
		pw.Stop()
		for pw.IsRenderInProgress() {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"run_id":         summary.RunID,
			"name":           summary.Name,
			"mode":           summary.Mode,
			"iterations":     summary.Iterations,
			"evaluations":    summary.Evaluations,
			"best_fitness":   summary.BestFitness,
			"best_genome_id": summary.BestGenomeID,
			"duration_ms":    summary.Duration.Milliseconds(),
		})
	}

	fmt.Printf("run %s finished\n", summary.RunID)
	fmt.Printf("  mode        %s\n", summary.Mode)
	fmt.Printf("  iterations  %d\n", summary.Iterations)
	fmt.Printf("  evaluations %s (%s/iter)\n",
		humanize.Comma(int64(summary.Evaluations)),
		humanize.CommafWithDigits(float64(summary.Evaluations)/float64(max(summary.Iterations, 1)), 1))
	fmt.Printf("  best        %.6f (%s)\n", summary.BestFitness, summary.BestGenomeID)
	fmt.Printf("  duration    %s\n", summary.Duration.Round(time.Millisecond))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, anagenesis.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return printJSON(runs)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"RUN ID", "NAME", "MODE", "STATUS", "GENS", "BEST", "CREATED"})
	for _, r := range runs {
		t.AppendRow(table.Row{r.RunID, r.Name, r.Mode, r.Status, r.Generations, fmt.Sprintf("%.6f", r.BestFitness), r.CreatedAtUTC})
	}
	t.Render()
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "max trailing entries (0 = all)")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, anagenesis.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(history)
	}
	if len(history) == 0 {
		fmt.Println("no fitness entries")
		return nil
	}

	lo, hi := history[0], history[0]
	for _, v := range history {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ENTRIES", "FIRST", "LAST", "MIN", "MAX", "MEAN", "STDDEV"})
	t.AppendRow(table.Row{
		len(history),
		fmt.Sprintf("%.6f", history[0]),
		fmt.Sprintf("%.6f", history[len(history)-1]),
		fmt.Sprintf("%.6f", lo),
		fmt.Sprintf("%.6f", hi),
		fmt.Sprintf("%.6f", stat.Mean(history, nil)),
		fmt.Sprintf("%.6f", stat.StdDev(history, nil)),
	})
	t.Render()
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "max trailing entries (0 = all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diags, err := client.Diagnostics(ctx, anagenesis.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(diags)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"GEN", "BEST", "MEAN", "MEAN CX", "EVALS", "EVALS/S", "OFFSPRING", "MODE"})
	for _, d := range diags {
		t.AppendRow(table.Row{
			d.Generation,
			fmt.Sprintf("%.6f", d.BestFitness),
			fmt.Sprintf("%.6f", d.MeanFitness),
			fmt.Sprintf("%.2f", d.MeanComplexity),
			humanize.Comma(int64(d.TotalEvaluationCount)),
			fmt.Sprintf("%.1f", d.EvaluationsPerSec),
			d.TotalOffspringCount,
			d.ComplexityMode,
		})
	}
	t.Render()
	return nil
}

func runSpecies(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("species", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit species history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.Species(ctx, anagenesis.SpeciesRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(history)
	}
	if len(history) == 0 {
		fmt.Println("no species entries")
		return nil
	}

	last := history[len(history)-1]
	fmt.Printf("species at generation %d\n", last.Generation)
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"SPECIES", "SIZE", "MEAN FITNESS", "CHAMPION", "CHAMPION FITNESS"})
	for _, sp := range last.Species {
		t.AppendRow(table.Row{sp.Index, sp.Size, fmt.Sprintf("%.6f", sp.MeanFitness), sp.ChampionID, fmt.Sprintf("%.6f", sp.ChampionFitness)})
	}
	t.Render()
	return nil
}

func runChampion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("champion", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit champion as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	champion, err := client.Champion(ctx, anagenesis.ChampionRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(champion)
	}

	genes := make([]string, 0, len(champion.Genes))
	for _, g := range champion.Genes {
		genes = append(genes, fmt.Sprintf("%.4f", g))
	}
	fmt.Printf("champion of run %s\n", champion.RunID)
	fmt.Printf("  genome      %s\n", champion.GenomeID)
	fmt.Printf("  fitness     %.6f\n", champion.Fitness)
	fmt.Printf("  complexity  %.2f\n", champion.Complexity)
	fmt.Printf("  generation  %d\n", champion.Generation)
	fmt.Printf("  genes       [%s]\n", strings.Join(genes, ", "))
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	store := registerStoreFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("delete requires -run-id")
	}

	client, err := store.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.DeleteRun(ctx, *runID); err != nil {
		return err
	}
	fmt.Printf("deleted run %s\n", *runID)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
