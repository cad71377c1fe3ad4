package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synthlang/gateway/internal/audit"
	"github.com/synthlang/gateway/internal/auth"
	"github.com/synthlang/gateway/internal/compress"
	"github.com/synthlang/gateway/internal/config"
	"github.com/synthlang/gateway/internal/embedding"
	"github.com/synthlang/gateway/internal/gatewayerr"
	"github.com/synthlang/gateway/internal/llmclient"
	"github.com/synthlang/gateway/internal/pattern"
	"github.com/synthlang/gateway/internal/ratelimit"
	"github.com/synthlang/gateway/internal/redact"
	"github.com/synthlang/gateway/internal/semcache"
	"github.com/synthlang/gateway/internal/tool"
)

// Orchestrator owns the per-request pipeline described in spec §4.12. It
// holds no per-request state itself; every field here is a shared,
// concurrency-safe collaborator.
type Orchestrator struct {
	Config    *config.Config
	Auth      *auth.Service
	Limiter   *ratelimit.Limiter
	Matcher   *pattern.Matcher
	Tools     *tool.Registry
	Embedder  *embedding.Client
	Cache     *semcache.Cache
	LLM       *llmclient.Client
	Audit     *audit.Queue
}

// preparedRequest is the common result of the pipeline steps shared by
// both the unary and streaming handlers, up to the point of either a
// short-circuit (tool-terminal or cache-hit) or a ready-to-send LLM call.
type preparedRequest struct {
	requestID string
	principal *auth.Principal

	terminalResponse *ChatResponse
	toolStream       <-chan string
	cacheHit         bool
	cacheHitContent  string

	llmRequest      llmclient.Request
	redactionMap    redact.Map
	flags           Flags
	cacheModel      string
	cacheVector     []float32
	compressionUsed string
	toolDispatched  string
}

// Prepare validates the request and runs steps 3-8 of the Orchestrator
// flow (authentication is done by the caller beforehand): rate limiting, flag
// resolution, pattern dispatch, compression, PII redaction, and the
// semantic-cache lookup. It returns a *gatewayerr.Error classified per
// spec §7 on any rejection.
func (o *Orchestrator) Prepare(ctx context.Context, principal *auth.Principal, headers http.Header, req *ChatRequest) (*preparedRequest, *gatewayerr.Error) {
	requestID := uuid.NewString()

	if err := req.Validate(); err != nil {
		return nil, asGatewayErr(err).WithRequestID(requestID)
	}

	if !o.Limiter.Admit(principal.UserID, principal.QuotaQPM) {
		wait := o.Limiter.WaitTime(principal.UserID, principal.QuotaQPM)
		return nil, gatewayerr.New(gatewayerr.RateLimited, "rate limit exceeded", nil).
			WithRequestID(requestID).WithRetryAfter(wait)
	}

	flags := ResolveFlags(o.Config, headers, req)

	pr := &preparedRequest{requestID: requestID, principal: principal, flags: flags}

	// Step 5: keyword-pattern dispatch.
	if msg, ok := lastUserMessage(req.Messages); ok {
		patFlags := pattern.Flags{DisableKeywordDetection: flags.DisableKeywordDetection}
		if match, matched := o.Matcher.Match(msg, principal, patFlags); matched {
			params := make(map[string]tool.Param, len(match.Params))
			for k, v := range match.Params {
				params[k] = v
			}
			result, err := o.Tools.Dispatch(match.Tool, params, principal, msg)
			if err != nil {
				// TOOL_FAILURE is recovered locally: return it as a
				// descriptive assistant message, not a failed request.
				pr.terminalResponse = assistantResponse(req.Model, fmt.Sprintf("tool error: %v", err))
				pr.toolDispatched = match.Tool
				return pr, nil
			}
			pr.toolDispatched = match.Tool
			switch result.Kind {
			case tool.Terminal:
				pr.terminalResponse = assistantResponse(req.Model, result.Content)
				return pr, nil
			case tool.Augment:
				req.Messages = convertAugmented(result.AugmentedMessages)
			case tool.StreamResult:
				pr.toolStream = result.Stream
				return pr, nil
			}
		}
	}

	// Steps 6-7: compression then PII redaction, applied per user/system
	// message, preserving role and order. Whether the terminal
	// BinaryEncoder stage runs depends on the text's own post-pipeline
	// size, so each message is measured through the text-only pipeline
	// first and re-encoded through the gzip variant when ShouldGzip says so.
	textPipeline := compress.BuildPipeline(flags.CompressionLevel, false)
	gzipPipeline := compress.BuildPipeline(flags.CompressionLevel, true)
	compressionUsed := ""
	if flags.UseSynthlang {
		compressionUsed = string(flags.CompressionLevel)
	}
	redactionMap := redact.Map{}
	outMessages := make([]ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		content := m.Content
		if flags.UseSynthlang && (m.Role == "user" || m.Role == "system") {
			encoded, metrics := textPipeline.Encode(content)
			if metrics.CompressionDegraded {
				// Recovered locally per spec §7; request proceeds
				// un-compressed for this message.
				encoded = content
			} else if compress.ShouldGzip(flags.UseGzip, metrics.OutChars, o.Config.GzipSizeThreshold) {
				if gzipped, gm := gzipPipeline.Encode(content); !gm.CompressionDegraded {
					encoded = gzipped
				}
			}
			content = encoded
		}
		if flags.MaskPIIBeforeLLM {
			masked, m2 := redact.Redact(content)
			for k, v := range m2 {
				redactionMap[k] = v
			}
			content = masked
		}
		outMessages[i] = ChatMessage{Role: m.Role, Content: content}
	}
	pr.redactionMap = redactionMap
	pr.compressionUsed = compressionUsed

	llmReq := llmclient.Request{Model: req.Model, Stream: req.Stream}
	if req.Temperature != nil {
		llmReq.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		llmReq.TopP = *req.TopP
	}
	if req.N != nil {
		llmReq.N = *req.N
	}
	for _, m := range outMessages {
		llmReq.Messages = append(llmReq.Messages, llmclient.Message{Role: m.Role, Content: m.Content})
	}
	pr.llmRequest = llmReq

	// Step 8: semantic cache lookup, skipped for tool-terminal responses
	// (already returned above) and when cache is disabled.
	if flags.Cache && o.Cache != nil && o.Embedder != nil {
		canon := canonicalize(req.Model, outMessages)
		vector, err := o.Embedder.Embed(ctx, canon)
		if err == nil {
			pr.cacheModel = req.Model
			pr.cacheVector = vector
			if entry, hit := o.Cache.Lookup(req.Model, vector); hit {
				pr.cacheHit = true
				pr.cacheHitContent = entry.Response
			}
		}
		// CACHE_FAILURE: embedding errors are treated as a cache miss;
		// the request proceeds normally (spec §7).
	}

	return pr, nil
}

func assistantResponse(model, content string) *ChatResponse {
	return &ChatResponse{
		Object:  "chat.completion",
		Model:   model,
		Choices: []ChatChoice{{Index: 0, Message: ChatMessage{Role: "assistant", Content: content}, FinishReason: "stop"}},
	}
}

func convertAugmented(msgs []tool.Message) []ChatMessage {
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Complete runs the unary completion path: Prepare, then (unless a
// terminal/cache-hit short-circuit already answered the request) invoke
// the LLM, insert into cache, and write the audit record.
func (o *Orchestrator) Complete(ctx context.Context, principal *auth.Principal, headers http.Header, req *ChatRequest) (*ChatResponse, bool, *gatewayerr.Error) {
	pr, err := o.Prepare(ctx, principal, headers, req)
	if err != nil {
		return nil, false, err
	}
	if pr.terminalResponse != nil {
		o.writeAudit(pr, req, pr.terminalResponse.Choices[0].Message.Content, false, audit.StatusOK)
		return pr.terminalResponse, false, nil
	}
	if pr.cacheHit {
		resp := assistantResponse(req.Model, unmask(pr.cacheHitContent, pr.redactionMap))
		o.writeAudit(pr, req, resp.Choices[0].Message.Content, true, audit.StatusOK)
		return resp, true, nil
	}
	if pr.toolStream != nil {
		var full strings.Builder
		for piece := range pr.toolStream {
			full.WriteString(piece)
		}
		resp := assistantResponse(req.Model, full.String())
		o.writeAudit(pr, req, resp.Choices[0].Message.Content, false, audit.StatusOK)
		return resp, false, nil
	}

	completion, cerr := o.LLM.Complete(ctx, pr.llmRequest)
	if cerr != nil {
		gwErr, _ := cerr.(*gatewayerr.Error)
		if gwErr == nil {
			gwErr = gatewayerr.New(gatewayerr.Internal, "llm completion failed", cerr)
		}
		return nil, false, gwErr.WithRequestID(pr.requestID)
	}

	finalText := unmask(completion.Content, pr.redactionMap)
	resp := assistantResponse(req.Model, finalText)
	resp.Usage = ChatUsage{
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		TotalTokens:      completion.PromptTokens + completion.CompletionTokens,
	}

	if pr.cacheVector != nil && o.Cache != nil {
		o.Cache.Insert(pr.cacheModel, pr.requestID, pr.cacheVector, completion.Content)
	}
	o.writeAudit(pr, req, finalText, false, audit.StatusOK)
	return resp, false, nil
}

func unmask(text string, m redact.Map) string {
	if len(m) == 0 {
		return text
	}
	return redact.Unredact(text, m)
}

func (o *Orchestrator) writeAudit(pr *preparedRequest, req *ChatRequest, responseContent string, cacheHit bool, status audit.Status) {
	if o.Audit == nil {
		return
	}
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	if pr.flags.MaskPIIInLogs {
		masked, _ := redact.Redact(prompt)
		prompt = masked
	}
	o.Audit.Enqueue(audit.Record{
		RequestID:       pr.requestID,
		UserID:          pr.principal.UserID,
		Model:           req.Model,
		PromptMasked:    prompt,
		ResponseMasked:  responseContent,
		CacheHit:        cacheHit,
		CompressionUsed: pr.compressionUsed,
		ToolDispatched:  pr.toolDispatched,
		Status:          status,
		Timestamp:       time.Now(),
	})
}

func asGatewayErr(err error) *gatewayerr.Error {
	if gwErr, ok := err.(*gatewayerr.Error); ok {
		return gwErr
	}
	return gatewayerr.New(gatewayerr.Validation, err.Error(), err)
}
