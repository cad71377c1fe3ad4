// Package embedding wraps the upstream embedding provider with a
// per-model fixed dimension and a small dedup cache keyed by text hash.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// Config configures the embedding client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// CacheSize bounds the in-process dedup cache; 0 or less selects 256.
	CacheSize int
}

// Client embeds text into fixed-dimension vectors, deduping identical
// texts within an in-process cache that evicts in insertion order (a hit
// does not refresh an entry) so repeated prompts (common
// under the semantic cache's own lookup path) do not re-hit the upstream
// embedding endpoint.
type Client struct {
	client *openai.Client
	model  string

	mu        sync.Mutex
	cache     map[string][]float32
	order     []string // insertion order, oldest first, for eviction
	cacheSize int
}

// New builds an embedding Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Client{
		client:    openai.NewClientWithConfig(conf),
		model:     model,
		cache:     make(map[string][]float32),
		cacheSize: cacheSize,
	}, nil
}

// Dimension returns the fixed embedding dimension for the configured model.
func (c *Client) Dimension() int {
	switch c.model {
	case "text-embedding-3-small":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the embedding vector for text, serving from the dedup
// cache on a hit and calling the upstream API on a miss. An upstream
// failure is returned as an error and nothing is cached for it.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := hashKey(text)

	c.mu.Lock()
	if v, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: no vector returned")
	}
	vec := resp.Data[0].Embedding

	c.mu.Lock()
	c.put(key, vec)
	c.mu.Unlock()

	return vec, nil
}

// put inserts a vector into the dedup cache, evicting the oldest entry
// once the cache is full. Callers must hold c.mu.
func (c *Client) put(key string, vec []float32) {
	if _, exists := c.cache[key]; exists {
		return
	}
	if len(c.order) >= c.cacheSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}
	c.cache[key] = vec
	c.order = append(c.order, key)
}
