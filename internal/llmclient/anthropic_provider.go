package llmclient

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicProvider implements Provider against Anthropic's Messages API,
// adapted from the agent runtime's streaming Anthropic provider, trimmed
// to plain text completion (no tool-use or extended-thinking blocks,
// which are out of the gateway's scope) and to a single stream-creation
// attempt per call — Client.Complete owns the one spec-mandated retry.
type AnthropicProvider struct {
	client       anthropic.Client
	configured   bool
	defaultModel string
}

// NewAnthropicProvider builds an AnthropicProvider. An empty apiKey
// yields a provider whose Stream always fails.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	if apiKey == "" {
		return &AnthropicProvider{}
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		configured:   true,
		defaultModel: "claude-sonnet-4-20250514",
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// SupportsModel claims only claude-* model names, per the domain-stack
// routing rule (OpenAI handles everything else as fallback).
func (p *AnthropicProvider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

func toAnthropicMessages(msgs []Message) ([]anthropic.MessageParam, string) {
	var system strings.Builder
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default: // user, tool
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out, system.String()
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if !p.configured {
		return nil, errors.New("anthropic: API key not configured")
	}

	messages, system := toAnthropicMessages(req.Messages)
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: 4096,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, err
	}

	chunks := make(chan Chunk)
	go p.processStream(stream, chunks)
	return chunks, nil
}

func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- Chunk) {
	defer close(chunks)

	var inputTokens, outputTokens int
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			if text := delta.Delta.Text; text != "" {
				chunks <- Chunk{Text: text}
			}
		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
		}
	}
	if err := stream.Err(); err != nil {
		chunks <- Chunk{Error: err, Done: true}
		return
	}
	chunks <- Chunk{Done: true, PromptTokens: inputTokens, CompletionTokens: outputTokens}
}
