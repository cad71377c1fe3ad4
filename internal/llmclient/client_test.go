package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/synthlang/gateway/internal/gatewayerr"
)

type fakeProvider struct {
	name      string
	prefix    string
	chunks    []Chunk
	err       error
	callCount int
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) SupportsModel(model string) bool {
	return f.prefix == "" || len(model) >= len(f.prefix) && model[:len(f.prefix)] == f.prefix
}
func (f *fakeProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	f.callCount++
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan Chunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func TestCompleteAssemblesChunks(t *testing.T) {
	p := &fakeProvider{name: "fake", chunks: []Chunk{{Text: "hello "}, {Text: "world"}, {Done: true, CompletionTokens: 2}}}
	c := New(p)
	res, err := c.Complete(context.Background(), Request{Model: "gpt-4"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "hello world" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}

func TestCompleteRetriesOnceOnConnectionError(t *testing.T) {
	p := &fakeProvider{name: "fake", err: errors.New("connection reset by peer")}
	c := New(p)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4"})
	if err == nil {
		t.Fatal("expected error")
	}
	if p.callCount != 2 {
		t.Fatalf("expected exactly one retry (2 calls), got %d", p.callCount)
	}
	var gwErr *gatewayerr.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gatewayerr.UpstreamConnection {
		t.Fatalf("expected UPSTREAM_CONNECTION, got %v", err)
	}
}

func TestCompleteDoesNotRetryOnValidationError(t *testing.T) {
	p := &fakeProvider{name: "fake", err: errors.New("400 invalid request: missing model")}
	c := New(p)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4"})
	if err == nil {
		t.Fatal("expected error")
	}
	if p.callCount != 1 {
		t.Fatalf("expected no retry for a non-retryable error, got %d calls", p.callCount)
	}
}

func TestProviderRoutingByModelPrefix(t *testing.T) {
	anthropicP := &fakeProvider{name: "anthropic", prefix: "claude-", chunks: []Chunk{{Done: true}}}
	openaiP := &fakeProvider{name: "openai", chunks: []Chunk{{Done: true}}}
	c := New(openaiP, anthropicP)

	if _, err := c.Complete(context.Background(), Request{Model: "claude-sonnet-4"}); err != nil {
		t.Fatal(err)
	}
	if anthropicP.callCount != 1 || openaiP.callCount != 0 {
		t.Fatalf("expected claude model routed to anthropic provider, got anthropic=%d openai=%d", anthropicP.callCount, openaiP.callCount)
	}

	if _, err := c.Complete(context.Background(), Request{Model: "gpt-4o"}); err != nil {
		t.Fatal(err)
	}
	if openaiP.callCount != 1 {
		t.Fatalf("expected gpt model routed to openai fallback, got %d", openaiP.callCount)
	}
}
