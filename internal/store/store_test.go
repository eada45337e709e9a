package store

import (
	"math/rand"
	"testing"
)

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()
	}
	return v
}

func TestCreateIndexAndSearchOrdering(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	rng := rand.New(rand.NewSource(42))
	dim := 8
	entries := []Entry{
		{Tool: "grep", Section: "1", Summary: "print lines matching a pattern", Vector: randomVector(rng, dim)},
		{Tool: "sed", Section: "1", Summary: "stream editor", Vector: randomVector(rng, dim)},
		{Tool: "awk", Section: "1", Summary: "pattern scanning language", Vector: randomVector(rng, dim)},
	}
	if err := db.CreateIndex(entries); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	if !db.Exists() {
		t.Fatalf("expected index to exist after CreateIndex")
	}
	count, err := db.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	matches, err := db.Search(entries[1].Vector, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].Tool != "sed" {
		t.Fatalf("nearest match = %q, want sed (exact vector match)", matches[0].Tool)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score < matches[i-1].Score {
			t.Fatalf("results not ascending by distance: %+v", matches)
		}
	}
}

func TestSearchKLargerThanRowCountReturnsAll(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	rng := rand.New(rand.NewSource(7))
	entries := []Entry{
		{Tool: "ls", Section: "1", Summary: "list directory contents", Vector: randomVector(rng, 4)},
		{Tool: "cat", Section: "1", Summary: "concatenate files", Vector: randomVector(rng, 4)},
	}
	if err := db.CreateIndex(entries); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	matches, err := db.Search(randomVector(rng, 4), 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2 (all rows)", len(matches))
	}
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	rng := rand.New(rand.NewSource(1))
	if err := db.CreateIndex([]Entry{
		{Tool: "find", Section: "1", Summary: "search for files", Vector: randomVector(rng, 16)},
	}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	_, err = db.Search(randomVector(rng, 4), 1)
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestSearchOnMissingIndex(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if db.Exists() {
		t.Fatalf("fresh database should report no index")
	}
	if _, err := db.Search([]float32{1, 2, 3}, 1); err == nil {
		t.Fatalf("expected error searching a missing index")
	}
}

func TestCreateIndexIsAtomicReplace(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	rng := rand.New(rand.NewSource(3))
	if err := db.CreateIndex([]Entry{
		{Tool: "old", Section: "1", Summary: "first build", Vector: randomVector(rng, 4)},
	}); err != nil {
		t.Fatalf("first CreateIndex: %v", err)
	}

	if err := db.CreateIndex([]Entry{
		{Tool: "new-a", Section: "1", Summary: "second build a", Vector: randomVector(rng, 4)},
		{Tool: "new-b", Section: "1", Summary: "second build b", Vector: randomVector(rng, 4)},
	}); err != nil {
		t.Fatalf("second CreateIndex: %v", err)
	}

	count, err := db.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count after replace = %d, want 2 (old rows gone)", count)
	}
}
