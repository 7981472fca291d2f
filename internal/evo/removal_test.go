package evo

import (
	"fmt"
	"math/rand"
	"testing"
)

func agedPopulation(births []int) []Genome {
	pop := make([]Genome, len(births))
	for i, b := range births {
		pop[i] = newStubGenome(fmt.Sprintf("g%d", i), b, 1)
	}
	return pop
}

func TestOldestGlobalRemovalPicksOldest(t *testing.T) {
	pop := agedPopulation([]int{5, 0, 3, 0, 9, 1})
	selected := OldestGlobalRemoval{}.SelectForRemoval(pop, nil, 3, 10, nil)

	if len(selected) != 3 {
		t.Fatalf("selected %d genomes, want 3", len(selected))
	}
	// The two birth-generation-0 genomes plus the generation-1 genome.
	for _, id := range []string{"g1", "g3", "g5"} {
		if _, ok := selected[id]; !ok {
			t.Fatalf("oldest genome %s not selected; got %v", id, selected)
		}
	}
}

func TestOldestGlobalRemovalTiesRespectQueueOrder(t *testing.T) {
	pop := agedPopulation([]int{2, 2, 2, 2})
	selected := OldestGlobalRemoval{}.SelectForRemoval(pop, nil, 2, 5, nil)
	for _, id := range []string{"g0", "g1"} {
		if _, ok := selected[id]; !ok {
			t.Fatalf("tie broken against queue order; got %v", selected)
		}
	}
}

func TestOldestGlobalRemovalClampsToPopulation(t *testing.T) {
	pop := agedPopulation([]int{1, 2})
	if got := (OldestGlobalRemoval{}).SelectForRemoval(pop, nil, 10, 5, nil); len(got) != 2 {
		t.Fatalf("selected %d, want whole population", len(got))
	}
	if got := (OldestGlobalRemoval{}).SelectForRemoval(pop, nil, 0, 5, nil); len(got) != 0 {
		t.Fatalf("selected %d, want 0", len(got))
	}
}

func TestSpeciesApportionedRemovalProportionalQuotas(t *testing.T) {
	// Species sizes 20/10/10 and a removal count of 8 give exact quotas
	// 4/2/2; the oldest members within each species must go.
	rng := rand.New(rand.NewSource(1))
	species := make([]*Species, 3)
	var pop []Genome
	for i, size := range []int{20, 10, 10} {
		species[i] = NewSpecies(i)
		for j := 0; j < size; j++ {
			g := newStubGenome(fmt.Sprintf("s%d-%d", i, j), j, 1)
			species[i].Members = append(species[i].Members, g)
			pop = append(pop, g)
		}
	}

	selected := SpeciesApportionedRemoval{}.SelectForRemoval(pop, species, 8, 100, rng)
	if len(selected) != 8 {
		t.Fatalf("selected %d genomes, want 8", len(selected))
	}
	perSpecies := make([]int, 3)
	for id := range selected {
		var si, gi int
		if _, err := fmt.Sscanf(id, "s%d-%d", &si, &gi); err != nil {
			t.Fatal(err)
		}
		perSpecies[si]++
	}
	for i, want := range []int{4, 2, 2} {
		if perSpecies[i] != want {
			t.Fatalf("specie %d lost %d members, want %d", i, perSpecies[i], want)
		}
	}
	// Oldest-first within the largest species: birth generations 0..3.
	for j := 0; j < 4; j++ {
		if _, ok := selected[fmt.Sprintf("s0-%d", j)]; !ok {
			t.Fatalf("specie 0 oldest member s0-%d not selected", j)
		}
	}
}

func TestSpeciesApportionedRemovalEscalatesShortage(t *testing.T) {
	// Quotas round down to zero for every species, so the whole count must
	// be escalated through the age-weighted draw.
	rng := rand.New(rand.NewSource(2))
	species := make([]*Species, 4)
	var pop []Genome
	for i := range species {
		species[i] = NewSpecies(i)
		for j := 0; j < 3; j++ {
			g := newStubGenome(fmt.Sprintf("s%d-%d", i, j), j, 1)
			species[i].Members = append(species[i].Members, g)
			pop = append(pop, g)
		}
	}

	selected := SpeciesApportionedRemoval{}.SelectForRemoval(pop, species, 3, 50, rng)
	if len(selected) != 3 {
		t.Fatalf("selected %d genomes, want 3", len(selected))
	}
}

func TestSpeciesApportionedRemovalClampsToTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	species := []*Species{newStubSpecies(0, 4, 1)}
	pop := append([]Genome{}, species[0].Members...)
	if got := (SpeciesApportionedRemoval{}).SelectForRemoval(pop, species, 10, 5, rng); len(got) != 4 {
		t.Fatalf("selected %d, want all 4 members", len(got))
	}
}
