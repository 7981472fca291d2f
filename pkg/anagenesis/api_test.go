package anagenesis

import (
	"context"
	"strings"
	"testing"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return client
}

func TestClientRunGenerational(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.Run(context.Background(), RunRequest{
		Benchmark:    "sphere",
		Population:   30,
		Iterations:   5,
		GenomeLength: 4,
		SpecieCount:  3,
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if summary.Iterations != 5 {
		t.Fatalf("iterations = %d, want 5", summary.Iterations)
	}
	if summary.BestFitness <= 0 {
		t.Fatalf("best fitness = %v, want > 0", summary.BestFitness)
	}
	if summary.BestGenomeID == "" {
		t.Fatal("expected best genome id")
	}

	runs, err := client.Runs(context.Background(), RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("expected run %s in list, got %+v", summary.RunID, runs)
	}
	if runs[0].Status != "terminated" {
		t.Fatalf("status = %s, want terminated", runs[0].Status)
	}

	history, err := client.FitnessHistory(context.Background(), FitnessHistoryRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("fitness history length = %d, want 5", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i] < history[i-1] {
			t.Fatalf("best fitness regressed at %d: %v -> %v", i, history[i-1], history[i])
		}
	}

	diags, err := client.Diagnostics(context.Background(), DiagnosticsRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diags) != 5 {
		t.Fatalf("diagnostics length = %d, want 5", len(diags))
	}
	if diags[len(diags)-1].BestFitness != summary.BestFitness {
		t.Fatalf("final diag best fitness = %v, want %v", diags[len(diags)-1].BestFitness, summary.BestFitness)
	}
	if diags[0].ComplexityMode != "complexifying" {
		t.Fatalf("complexity mode = %s, want complexifying", diags[0].ComplexityMode)
	}

	species, err := client.Species(context.Background(), SpeciesRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("species: %v", err)
	}
	if len(species) != 5 {
		t.Fatalf("species history length = %d, want 5", len(species))
	}
	total := 0
	for _, sp := range species[len(species)-1].Species {
		total += sp.Size
	}
	if total != 30 {
		t.Fatalf("species sizes sum to %d, want population 30", total)
	}

	champion, err := client.Champion(context.Background(), ChampionRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("champion: %v", err)
	}
	if champion.GenomeID != summary.BestGenomeID {
		t.Fatalf("champion id = %s, want %s", champion.GenomeID, summary.BestGenomeID)
	}
	if len(champion.Genes) != 4 {
		t.Fatalf("champion genes length = %d, want 4", len(champion.Genes))
	}
}

func TestClientRunQueueing(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.Run(context.Background(), RunRequest{
		Mode:         "queueing",
		Benchmark:    "onemax",
		Population:   24,
		Iterations:   8,
		GenomeLength: 6,
		SpecieCount:  3,
		BatchSize:    4,
		Seed:         7,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Mode != "queueing" {
		t.Fatalf("mode = %s, want queueing", summary.Mode)
	}
	if summary.Iterations != 8 {
		t.Fatalf("iterations = %d, want 8", summary.Iterations)
	}
	if summary.Evaluations <= 24 {
		t.Fatalf("evaluations = %d, want more than the initial population", summary.Evaluations)
	}
}

func TestClientRunStopFitness(t *testing.T) {
	client := newTestClient(t)

	// Every sphere evaluation lands in (0,1], so a tiny stop fitness pauses
	// the run during initialization before any iteration happens.
	summary, err := client.Run(context.Background(), RunRequest{
		Population:   20,
		Iterations:   100,
		GenomeLength: 3,
		SpecieCount:  2,
		StopFitness:  0.0001,
		Seed:         1,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Iterations >= 100 {
		t.Fatalf("iterations = %d, want early stop", summary.Iterations)
	}
}

func TestClientRunEvaluationBudget(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.Run(context.Background(), RunRequest{
		Population:     20,
		Iterations:     100,
		GenomeLength:   3,
		SpecieCount:    2,
		MaxEvaluations: 30,
		Seed:           4,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Iterations >= 100 {
		t.Fatalf("iterations = %d, want early pause on evaluation budget", summary.Iterations)
	}
	if summary.Evaluations < 30 {
		t.Fatalf("evaluations = %d, want at least the budget", summary.Evaluations)
	}
}

func TestClientRunOnIteration(t *testing.T) {
	client := newTestClient(t)

	var updates []IterationUpdate
	_, err := client.Run(context.Background(), RunRequest{
		Population:   20,
		Iterations:   4,
		GenomeLength: 3,
		SpecieCount:  2,
		Seed:         6,
		OnIteration: func(u IterationUpdate) {
			updates = append(updates, u)
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(updates) != 4 {
		t.Fatalf("updates = %d, want 4", len(updates))
	}
	for i, u := range updates {
		if u.Iteration != i+1 {
			t.Fatalf("update %d reports iteration %d", i, u.Iteration)
		}
		if u.Evaluations == 0 {
			t.Fatalf("update %d has zero evaluations", i)
		}
	}
}

func TestClientLatestResolution(t *testing.T) {
	client := newTestClient(t)

	first, err := client.Run(context.Background(), RunRequest{
		Population: 20, Iterations: 2, GenomeLength: 3, SpecieCount: 2, Seed: 1,
	})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.Run(context.Background(), RunRequest{
		Population: 20, Iterations: 3, GenomeLength: 3, SpecieCount: 2, Seed: 2,
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("expected distinct run ids")
	}

	diags, err := client.Diagnostics(context.Background(), DiagnosticsRequest{Latest: true})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diags) != 3 {
		t.Fatalf("latest run diagnostics length = %d, want 3", len(diags))
	}

	if _, err := client.Diagnostics(context.Background(), DiagnosticsRequest{RunID: first.RunID, Latest: true}); err == nil {
		t.Fatal("expected error for run id combined with latest")
	}
	if _, err := client.Diagnostics(context.Background(), DiagnosticsRequest{}); err == nil {
		t.Fatal("expected error when neither run id nor latest given")
	}
}

func TestClientDeleteRun(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.Run(context.Background(), RunRequest{
		Population: 20, Iterations: 2, GenomeLength: 3, SpecieCount: 2, Seed: 3,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := client.DeleteRun(context.Background(), summary.RunID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty run list after delete, got %+v", runs)
	}
	if _, err := client.FitnessHistory(context.Background(), FitnessHistoryRequest{RunID: summary.RunID}); err == nil {
		t.Fatal("expected error for deleted run history")
	}
}

func TestClientRunValidation(t *testing.T) {
	client := newTestClient(t)

	if _, err := client.Run(context.Background(), RunRequest{Benchmark: "nonesuch", Population: 20, SpecieCount: 2}); err == nil || !strings.Contains(err.Error(), "unknown benchmark") {
		t.Fatalf("expected unknown benchmark error, got %v", err)
	}
	if _, err := client.Run(context.Background(), RunRequest{Mode: "hybrid"}); err == nil || !strings.Contains(err.Error(), "unsupported mode") {
		t.Fatalf("expected unsupported mode error, got %v", err)
	}
	if _, err := client.Run(context.Background(), RunRequest{Population: 5, SpecieCount: 5}); err == nil {
		t.Fatal("expected specie count validation error")
	}
	if _, err := client.Run(context.Background(), RunRequest{Mode: "queueing", RemovalPolicy: "random", Population: 20, SpecieCount: 2}); err == nil || !strings.Contains(err.Error(), "unknown removal policy") {
		t.Fatalf("expected removal policy error, got %v", err)
	}
}
