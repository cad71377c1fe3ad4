package semcache

import "testing"

func TestInsertThenLookupHit(t *testing.T) {
	c := New(10, 0.9)
	c.Insert("gpt-4", "k1", []float32{1, 0, 0}, "cached response")
	entry, ok := c.Lookup("gpt-4", []float32{1, 0, 0})
	if !ok {
		t.Fatal("expected a cache hit for an identical vector")
	}
	if entry.Response != "cached response" {
		t.Fatalf("unexpected response: %q", entry.Response)
	}
	if entry.HitCount != 1 {
		t.Fatalf("expected hit count 1, got %d", entry.HitCount)
	}
}

func TestLookupMissBelowThreshold(t *testing.T) {
	c := New(10, 0.99)
	c.Insert("gpt-4", "k1", []float32{1, 0, 0}, "resp")
	_, ok := c.Lookup("gpt-4", []float32{0, 1, 0})
	if ok {
		t.Fatal("expected a miss for an orthogonal vector")
	}
}

func TestModelsAreIsolated(t *testing.T) {
	c := New(10, 0.9)
	c.Insert("gpt-4", "k1", []float32{1, 0, 0}, "gpt4 resp")
	_, ok := c.Lookup("gpt-3.5", []float32{1, 0, 0})
	if ok {
		t.Fatal("expected no cross-model hit")
	}
}

func TestEvictsLeastRecentlyHitWhenFull(t *testing.T) {
	c := New(2, 0.0)
	c.Insert("gpt-4", "a", []float32{1, 0}, "a")
	c.Insert("gpt-4", "b", []float32{0, 1}, "b")
	// Touch "a" so it is not the least-recently-hit entry.
	c.Lookup("gpt-4", []float32{1, 0})
	c.Insert("gpt-4", "c", []float32{-1, 0}, "c")

	stats := c.StatsAll()
	if len(stats) != 1 || stats[0].Entries != 2 {
		t.Fatalf("expected index capped at 2 entries, got %+v", stats)
	}
	if stats[0].Evictions != 1 {
		t.Fatalf("expected one eviction, got %d", stats[0].Evictions)
	}
	for _, e := range c.indexFor("gpt-4").entries {
		if e.Key == "b" {
			t.Fatal("expected least-recently-hit entry \"b\" to be the one evicted")
		}
	}
}

func TestClearEmptiesAllIndexes(t *testing.T) {
	c := New(10, 0.9)
	c.Insert("gpt-4", "a", []float32{1, 0}, "a")
	c.Clear()
	stats := c.StatsAll()
	if len(stats) != 0 {
		t.Fatalf("expected no indexes after Clear, got %+v", stats)
	}
}
