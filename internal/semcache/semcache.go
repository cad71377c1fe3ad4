// Package semcache implements the per-model semantic cache: a
// unit-normalized vector index searched by brute-force cosine similarity,
// with LRU eviction by last-hit time once a model's index exceeds its
// configured capacity.
package semcache

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Entry is one cached request/response pair.
type Entry struct {
	Key        string // caller-supplied key (the orchestrator passes the request ID), for diagnostics only
	Vector     []float32
	Response   string
	CreatedAt  time.Time
	LastHitAt  time.Time
	HitCount   int
}

// Stats summarizes one model index for the /v1/cache/stats endpoint.
type Stats struct {
	Model     string
	Entries   int
	Hits      int
	Evictions int
}

// modelIndex is one model's vector index, guarded by its own RWMutex so
// lookups and inserts on different models never contend.
type modelIndex struct {
	mu        sync.RWMutex
	entries   []*Entry
	hits      int
	evictions int
}

// Cache holds one modelIndex per model name.
type Cache struct {
	mu          sync.Mutex // guards the indexes map only, not its contents
	indexes     map[string]*modelIndex
	maxItems    int
	threshold   float64
}

// New builds an empty semantic Cache. maxItems bounds each model's index
// independently; threshold is the minimum cosine similarity for a hit.
func New(maxItems int, threshold float64) *Cache {
	return &Cache{
		indexes:   make(map[string]*modelIndex),
		maxItems:  maxItems,
		threshold: threshold,
	}
}

func (c *Cache) indexFor(model string) *modelIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.indexes[model]
	if !ok {
		idx = &modelIndex{}
		c.indexes[model] = idx
	}
	return idx
}

// normalize returns a copy of v scaled to unit L2 norm. A zero vector is
// returned unchanged to avoid a division by zero.
func normalize(v []float32) []float32 {
	f64 := make([]float64, len(v))
	for i, x := range v {
		f64[i] = float64(x)
	}
	norm := floats.Norm(f64, 2)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range f64 {
		out[i] = float32(x / norm)
	}
	return out
}

// cosine computes the cosine similarity of two unit-normalized vectors,
// which reduces to their dot product.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	af := make([]float64, n)
	bf := make([]float64, n)
	for i := 0; i < n; i++ {
		af[i] = float64(a[i])
		bf[i] = float64(b[i])
	}
	return floats.Dot(af, bf)
}

// Lookup scans model's index for the nearest entry to queryVector and
// returns it when its cosine similarity meets the cache's threshold. A
// hit bumps LastHitAt and the index's hit counter under a write lock;
// the scan itself holds only a read lock.
func (c *Cache) Lookup(model string, queryVector []float32) (*Entry, bool) {
	idx := c.indexFor(model)
	q := normalize(queryVector)

	idx.mu.RLock()
	var best *Entry
	bestScore := -1.0
	for _, e := range idx.entries {
		score := cosine(q, e.Vector)
		if score > bestScore {
			bestScore = score
			best = e
		}
	}
	idx.mu.RUnlock()

	if best == nil || bestScore < c.threshold {
		return nil, false
	}

	idx.mu.Lock()
	best.LastHitAt = time.Now()
	best.HitCount++
	idx.hits++
	idx.mu.Unlock()

	return best, true
}

// Insert adds a new entry to model's index, evicting the least-recently-
// hit entry first if the index is already at capacity.
func (c *Cache) Insert(model, key string, vector []float32, response string) {
	idx := c.indexFor(model)
	now := time.Now()
	entry := &Entry{
		Key:       key,
		Vector:    normalize(vector),
		Response:  response,
		CreatedAt: now,
		LastHitAt: now,
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if c.maxItems > 0 && len(idx.entries) >= c.maxItems {
		evictOldest(idx)
	}
	idx.entries = append(idx.entries, entry)
}

// evictOldest removes the entry with the smallest LastHitAt. Callers must
// hold idx.mu for writing.
func evictOldest(idx *modelIndex) {
	if len(idx.entries) == 0 {
		return
	}
	oldestPos := 0
	for i, e := range idx.entries {
		if e.LastHitAt.Before(idx.entries[oldestPos].LastHitAt) {
			oldestPos = i
		}
	}
	idx.entries = append(idx.entries[:oldestPos], idx.entries[oldestPos+1:]...)
	idx.evictions++
}

// Clear empties every model index (admin POST /v1/cache/clear).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = make(map[string]*modelIndex)
}

// StatsAll returns per-model statistics for GET /v1/cache/stats.
func (c *Cache) StatsAll() []Stats {
	c.mu.Lock()
	models := make([]string, 0, len(c.indexes))
	idxs := make([]*modelIndex, 0, len(c.indexes))
	for m, idx := range c.indexes {
		models = append(models, m)
		idxs = append(idxs, idx)
	}
	c.mu.Unlock()

	out := make([]Stats, 0, len(models))
	for i, m := range models {
		idx := idxs[i]
		idx.mu.RLock()
		out = append(out, Stats{
			Model:     m,
			Entries:   len(idx.entries),
			Hits:      idx.hits,
			Evictions: idx.evictions,
		})
		idx.mu.RUnlock()
	}
	return out
}
