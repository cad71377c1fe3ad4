package llmclient

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider against the OpenAI chat-completions
// API, adapted from the agent runtime's streaming provider: a single
// stream-creation attempt, then a goroutine relaying deltas onto a Chunk
// channel. Retrying a failed attempt is Client.Complete's job, not the
// provider's, so a stream is established at most once per call here.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds an OpenAIProvider. An empty apiKey yields a
// provider whose Stream always fails, matching the teacher's
// fail-closed-not-nil-pointer idiom.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	if apiKey == "" {
		return &OpenAIProvider{}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// SupportsModel claims every model name that is not an Anthropic claude-*
// model, since OpenAI is the gateway's default/fallback provider.
func (p *OpenAIProvider) SupportsModel(model string) bool {
	return !strings.HasPrefix(model, "claude-")
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if p.client == nil {
		return nil, errors.New("openai: API key not configured")
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Stream:      true,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
	}
	if req.N > 0 {
		chatReq.N = req.N
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	chunks := make(chan Chunk)
	go p.processStream(ctx, stream, chunks)
	return chunks, nil
}

func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- Chunk) {
	defer close(chunks)
	defer stream.Close()

	promptTokens, completionTokens := 0, 0
	for {
		select {
		case <-ctx.Done():
			chunks <- Chunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				chunks <- Chunk{Done: true, PromptTokens: promptTokens, CompletionTokens: completionTokens}
				return
			}
			chunks <- Chunk{Error: err, Done: true}
			return
		}
		if resp.Usage != nil {
			promptTokens = resp.Usage.PromptTokens
			completionTokens = resp.Usage.CompletionTokens
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			chunks <- Chunk{Text: text}
		}
	}
}
