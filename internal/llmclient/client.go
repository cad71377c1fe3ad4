package llmclient

import (
	"context"
	"fmt"

	"github.com/synthlang/gateway/internal/gatewayerr"
)

// Client routes requests to the Provider whose SupportsModel matches the
// requested model, falling back to a configured default provider.
type Client struct {
	providers []Provider
	fallback  Provider
}

// New builds a Client. fallback handles any model no registered provider
// claims via SupportsModel.
func New(fallback Provider, providers ...Provider) *Client {
	return &Client{providers: providers, fallback: fallback}
}

func (c *Client) providerFor(model string) Provider {
	for _, p := range c.providers {
		if p.SupportsModel(model) {
			return p
		}
	}
	return c.fallback
}

// Stream returns a channel of Chunks for req. Per spec §7, only an
// UPSTREAM_CONNECTION failure is retried, and only when the request is
// non-streaming and idempotent — streaming requests are never retried
// once bytes may already have reached the client, so Stream itself never
// retries; Complete (below) is the one operation that does.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	p := c.providerFor(req.Model)
	if p == nil {
		return nil, gatewayerr.New(gatewayerr.UpstreamInvalid, fmt.Sprintf("no provider for model %q", req.Model), nil)
	}
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return nil, gatewayerr.New(classify(err), fmt.Sprintf("provider %s: stream failed", p.Name()), err)
	}
	return chunks, nil
}

// Complete performs a unary completion by draining the provider's
// stream, retrying once if the first attempt fails with a retryable
// (UPSTREAM_CONNECTION) error.
func (c *Client) Complete(ctx context.Context, req Request) (Completion, error) {
	p := c.providerFor(req.Model)
	if p == nil {
		return Completion{}, gatewayerr.New(gatewayerr.UpstreamInvalid, fmt.Sprintf("no provider for model %q", req.Model), nil)
	}

	completion, err := drain(ctx, p, req)
	if err == nil {
		return completion, nil
	}

	var gwErr *gatewayerr.Error
	if asGatewayErr(err, &gwErr) && gwErr.Kind.Retryable() {
		completion, retryErr := drain(ctx, p, req)
		if retryErr == nil {
			return completion, nil
		}
		return Completion{}, retryErr
	}
	return Completion{}, err
}

func drain(ctx context.Context, p Provider, req Request) (Completion, error) {
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return Completion{}, gatewayerr.New(classify(err), fmt.Sprintf("provider %s: stream failed", p.Name()), err)
	}

	var completion Completion
	seen := false
	for chunk := range chunks {
		seen = true
		if chunk.Error != nil {
			return Completion{}, gatewayerr.New(classify(chunk.Error), fmt.Sprintf("provider %s: stream error", p.Name()), chunk.Error)
		}
		completion.Content += chunk.Text
		if chunk.Done {
			completion.PromptTokens = chunk.PromptTokens
			completion.CompletionTokens = chunk.CompletionTokens
		}
	}
	if !seen {
		return Completion{}, gatewayerr.New(gatewayerr.UpstreamConnection, fmt.Sprintf("provider %s", p.Name()), errNoChunksReceived)
	}
	return completion, nil
}

// asGatewayErr reports whether err is itself a *gatewayerr.Error and, if
// so, stores it in target. It is a direct type assertion: unlike errors.As
// it does not unwrap err.
func asGatewayErr(err error, target **gatewayerr.Error) bool {
	ge, ok := err.(*gatewayerr.Error)
	if !ok {
		return false
	}
	*target = ge
	return true
}
