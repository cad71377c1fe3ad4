// Package gateway implements the Orchestrator: the request pipeline that
// ties authentication, rate limiting, pattern dispatch, compression, PII
// redaction, the semantic cache, and the LLM client together, plus the
// HTTP surface that exposes it.
package gateway

// ChatMessage is one message in an inbound chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the inbound payload for POST /v1/chat/completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	N           *int          `json:"n,omitempty"`
	Stream      bool          `json:"stream,omitempty"`

	UseSynthlang              *bool   `json:"use_synthlang,omitempty"`
	UseGzip                   *bool   `json:"use_gzip,omitempty"`
	SynthlangCompressionLevel *string `json:"synthlang_compression_level,omitempty"`
	Cache                     *bool   `json:"cache,omitempty"`
	DisableKeywordDetection   *bool   `json:"disable_keyword_detection,omitempty"`
}

// Validate checks the invariants spec §3 requires of a ChatRequest.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errValidation("at least one message is required")
	}
	if r.Model == "" {
		return errValidation("model must be non-empty")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return errValidation("temperature must be in [0,2]")
	}
	if r.TopP != nil && (*r.TopP <= 0 || *r.TopP > 1) {
		return errValidation("top_p must be in (0,1]")
	}
	if r.N != nil && *r.N < 1 {
		return errValidation("n must be >= 1")
	}
	return nil
}

// ChatChoice mirrors an OpenAI-compatible choice entry.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage mirrors an OpenAI-compatible usage block.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the OpenAI-compatible chat-completion response.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}
