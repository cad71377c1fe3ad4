package embedding

import "testing"

func TestDimensionPerModel(t *testing.T) {
	c := &Client{model: "text-embedding-3-large"}
	if got := c.Dimension(); got != 3072 {
		t.Fatalf("expected 3072, got %d", got)
	}
	c.model = "text-embedding-3-small"
	if got := c.Dimension(); got != 1536 {
		t.Fatalf("expected 1536, got %d", got)
	}
}

func TestPutEvictsOldestWhenFull(t *testing.T) {
	c := &Client{
		cache:     make(map[string][]float32),
		cacheSize: 2,
	}
	c.put("a", []float32{1})
	c.put("b", []float32{2})
	c.put("c", []float32{3})
	if _, ok := c.cache["a"]; ok {
		t.Fatal("expected oldest entry 'a' to be evicted")
	}
	if _, ok := c.cache["c"]; !ok {
		t.Fatal("expected newest entry 'c' to be present")
	}
	if len(c.order) != 2 {
		t.Fatalf("expected order slice length 2, got %d", len(c.order))
	}
}

func TestPutIgnoresDuplicateKey(t *testing.T) {
	c := &Client{
		cache:     make(map[string][]float32),
		cacheSize: 5,
	}
	c.put("a", []float32{1})
	c.put("a", []float32{2})
	if len(c.order) != 1 {
		t.Fatalf("expected a single order entry for duplicate key, got %d", len(c.order))
	}
}

func TestNewRejectsMissingAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
