package evo

import "testing"

func TestSortMembersFitnessThenYouth(t *testing.T) {
	sp := NewSpecies(0)
	a := newStubGenome("a", 0, 2.0)
	b := newStubGenome("b", 5, 2.0)
	c := newStubGenome("c", 1, 7.0)
	sp.Members = []Genome{a, b, c}

	sp.SortMembers()
	// Fittest first, then the younger of the equally fit pair.
	for i, want := range []string{"c", "b", "a"} {
		if sp.Members[i].ID() != want {
			t.Fatalf("position %d = %s, want %s", i, sp.Members[i].ID(), want)
		}
	}
	if sp.Champion().ID() != "c" {
		t.Fatalf("champion = %s, want c", sp.Champion().ID())
	}
}

func TestTrimToElites(t *testing.T) {
	sp := newStubSpecies(0, 5, 1)
	sp.TrimToElites(2)
	if len(sp.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(sp.Members))
	}
	sp.TrimToElites(10)
	if len(sp.Members) != 2 {
		t.Fatalf("members = %d after oversized trim, want 2", len(sp.Members))
	}
	sp.TrimToElites(0)
	if !sp.Empty() {
		t.Fatal("species not empty after trimming to zero")
	}
	if sp.Champion() != nil {
		t.Fatal("champion on empty species")
	}
}

func TestMeanFitnessAndAge(t *testing.T) {
	sp := NewSpecies(0)
	sp.Members = []Genome{
		newStubGenome("a", 2, 1.0),
		newStubGenome("b", 4, 3.0),
	}
	if got := sp.MeanFitness(); got != 2.0 {
		t.Fatalf("mean fitness = %v, want 2", got)
	}
	if got := sp.MeanAge(6); got != 3.0 {
		t.Fatalf("mean age = %v, want 3", got)
	}
	empty := NewSpecies(1)
	if empty.MeanFitness() != 0 || empty.MeanAge(6) != 0 {
		t.Fatal("empty species means must be zero")
	}
}

func TestRemoveMember(t *testing.T) {
	sp := newStubSpecies(0, 3, 1)
	id := sp.Members[1].ID()
	if !sp.RemoveMember(id) {
		t.Fatalf("member %s not removed", id)
	}
	if len(sp.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(sp.Members))
	}
	if sp.RemoveMember("absent") {
		t.Fatal("removed a member that does not exist")
	}
}
