package storage

import (
	"context"
	"testing"
	"time"

	"anagenesis/internal/model"
)

func testRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: Stamp(),
		ID:              id,
		Name:            "run " + id,
		Mode:            model.RunModeGenerational,
		Status:          model.RunStatusReady,
		PopulationSize:  100,
		SpecieCount:     10,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}

	run := testRun("r1", time.Now())
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.GetRun(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if got.Name != run.Name || got.PopulationSize != 100 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, ok, _ := store.GetRun(ctx, "absent"); ok {
		t.Fatal("found a run that was never saved")
	}
}

func TestMemoryStoreListRunsOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		if err := store.SaveRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("listed %d runs, want 3", len(runs))
	}
	for i, want := range []string{"c", "a", "b"} {
		if runs[i].ID != want {
			t.Fatalf("position %d = %s, want creation order %s", i, runs[i].ID, want)
		}
	}
}

func TestMemoryStoreDeleteRunRemovesAllData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}

	if err := store.SaveRun(ctx, testRun("r1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveFitnessHistory(ctx, "r1", []float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveChampion(ctx, "r1", model.ChampionRecord{VersionedRecord: Stamp(), GenomeID: "g1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteRun(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.GetRun(ctx, "r1"); ok {
		t.Fatal("run survived deletion")
	}
	if _, ok, _ := store.GetFitnessHistory(ctx, "r1"); ok {
		t.Fatal("fitness history survived deletion")
	}
	if _, ok, _ := store.GetChampion(ctx, "r1"); ok {
		t.Fatal("champion survived deletion")
	}
}

func TestMemoryStoreFitnessHistoryIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}

	history := []float64{1, 2}
	if err := store.SaveFitnessHistory(ctx, "r1", history); err != nil {
		t.Fatal(err)
	}
	history[0] = 99

	got, ok, err := store.GetFitnessHistory(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%v err=%v", ok, err)
	}
	if got[0] != 1 {
		t.Fatalf("stored history aliased the caller's slice: %v", got)
	}
	got[1] = 99
	again, _, _ := store.GetFitnessHistory(ctx, "r1")
	if again[1] != 2 {
		t.Fatalf("returned history aliased internal state: %v", again)
	}
}

func TestMemoryStoreIterationsAndSpecies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}

	iterations := []model.IterationRecord{
		{VersionedRecord: Stamp(), Generation: 1, BestFitness: 0.5},
		{VersionedRecord: Stamp(), Generation: 2, BestFitness: 0.7},
	}
	if err := store.SaveIterations(ctx, "r1", iterations); err != nil {
		t.Fatal(err)
	}
	gotIter, ok, err := store.GetIterations(ctx, "r1")
	if err != nil || !ok || len(gotIter) != 2 {
		t.Fatalf("iterations: ok=%v err=%v len=%d", ok, err, len(gotIter))
	}

	species := []model.SpeciesIteration{{
		VersionedRecord: Stamp(),
		Generation:      1,
		Species: []model.SpecieMetrics{
			{Index: 0, Size: 10, MeanFitness: 0.4, ChampionID: "g1", ChampionFitness: 0.5},
		},
	}}
	if err := store.SaveSpeciesHistory(ctx, "r1", species); err != nil {
		t.Fatal(err)
	}
	gotSpecies, ok, err := store.GetSpeciesHistory(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("species history: ok=%v err=%v", ok, err)
	}
	if gotSpecies[0].Species[0].ChampionID != "g1" {
		t.Fatalf("species round trip mismatch: %+v", gotSpecies)
	}
}
