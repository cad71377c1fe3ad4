package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/synthlang/gateway/internal/audit"
	"github.com/synthlang/gateway/internal/auth"
	"github.com/synthlang/gateway/internal/llmclient"
	"github.com/synthlang/gateway/internal/pattern"
	"github.com/synthlang/gateway/internal/ratelimit"
	"github.com/synthlang/gateway/internal/semcache"
	"github.com/synthlang/gateway/internal/tool"
)

func newTestServer(t *testing.T, llmContent string) *httptest.Server {
	t.Helper()
	return newTestServerWithQuota(t, llmContent, 1000)
}

func newTestServerWithQuota(t *testing.T, llmContent string, quotaQPM int) *httptest.Server {
	t.Helper()
	o := newTestOrchestrator(llmContent)
	o.Auth = auth.NewService(auth.Config{
		APIKeys:             []auth.APIKeyConfig{{Key: "test-key", Roles: []string{"basic"}}},
		DefaultRole:         "basic",
		DefaultRateLimitQPM: quotaQPM,
		PremiumRateLimitQPM: quotaQPM * 2,
	})
	srv := NewServer(testConfig(), o.Orchestrator, nil)
	return httptest.NewServer(srv.mux())
}

func TestHTTPChatCompletionsUnary(t *testing.T) {
	ts := newTestServer(t, "hi there")
	defer ts.Close()

	body, _ := json.Marshal(ChatRequest{
		Model:    "gpt-4",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer test-key")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Choices[0].Message.Content != "hi there" {
		t.Fatalf("unexpected content: %q", out.Choices[0].Message.Content)
	}
}

func TestHTTPChatCompletionsRejectsMissingAuth(t *testing.T) {
	ts := newTestServer(t, "unused")
	defer ts.Close()

	body, _ := json.Marshal(ChatRequest{Model: "gpt-4", Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	resp, err := http.Post(ts.URL+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHTTPCacheStatsRequiresAdminRole(t *testing.T) {
	ts := newTestServer(t, "unused")
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin caller, got %d", resp.StatusCode)
	}
}

func TestHTTPRateLimitedSetsRetryAfterHeader(t *testing.T) {
	ts := newTestServerWithQuota(t, "unused", 1)
	defer ts.Close()

	body, _ := json.Marshal(ChatRequest{Model: "gpt-4", Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	doRequest := func() *http.Response {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/chat/completions", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer test-key")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	first := doRequest()
	first.Body.Close()

	second := doRequest()
	defer second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", second.StatusCode)
	}
	retryAfter := second.Header.Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("expected a Retry-After header on RATE_LIMITED response")
	}
	seconds, err := strconv.Atoi(retryAfter)
	if err != nil || seconds < 1 {
		t.Fatalf("expected Retry-After >= 1, got %q", retryAfter)
	}
}

// capturingSink records every audit entry written to it, for assertions
// on which status a request's pipeline concluded with.
type capturingSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *capturingSink) Write(r audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *capturingSink) last() (audit.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return audit.Record{}, false
	}
	return s.records[len(s.records)-1], true
}

// hangingLLMProvider emits one chunk immediately, then blocks until ctx is
// cancelled, simulating an upstream mid-stream when the client disconnects.
type hangingLLMProvider struct{ first string }

func (h *hangingLLMProvider) Name() string                    { return "hanging" }
func (h *hangingLLMProvider) SupportsModel(model string) bool { return true }
func (h *hangingLLMProvider) Stream(ctx context.Context, req llmclient.Request) (<-chan llmclient.Chunk, error) {
	ch := make(chan llmclient.Chunk, 1)
	ch <- llmclient.Chunk{Text: h.first}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestHTTPClientDisconnectWritesAbortedAuditRecord(t *testing.T) {
	sink := &capturingSink{}
	o := &Orchestrator{
		Config:  testConfig(),
		Auth:    auth.NewService(auth.Config{APIKeys: []auth.APIKeyConfig{{Key: "test-key", Roles: []string{"basic"}}}, DefaultRole: "basic", DefaultRateLimitQPM: 1000, PremiumRateLimitQPM: 2000}),
		Limiter: ratelimit.NewLimiter(),
		Matcher: pattern.NewMatcher(pattern.NewRegistry(true)),
		Tools:   tool.NewRegistry(),
		Cache:   semcache.New(10, 0.9),
		LLM:     llmclient.New(&hangingLLMProvider{first: "partial"}),
		Audit:   audit.NewQueue(sink, 10, nil),
	}
	srv := NewServer(testConfig(), o, nil)
	ts := httptest.NewServer(srv.mux())
	defer ts.Close()

	body, _ := json.Marshal(ChatRequest{
		Model:    "gpt-4",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
		Stream:   true,
	})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer test-key")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	reader := bufio.NewReader(resp.Body)
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("expected at least one SSE line before disconnecting: %v", err)
	}
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := sink.last(); ok {
			if rec.Status != audit.StatusAborted {
				t.Fatalf("expected aborted status, got %q", rec.Status)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected an audit record to be written after client disconnect")
}

func TestHTTPHealthzNoAuthRequired(t *testing.T) {
	ts := newTestServer(t, "unused")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
