package gateway

import (
	"net/http"
	"strconv"

	"github.com/synthlang/gateway/internal/compress"
	"github.com/synthlang/gateway/internal/config"
)

// Flags is the effective, per-request feature-toggle set: config
// defaults overridden first by request headers, then by body overrides
// (spec §4.12 step 4: "config ⊕ headers ⊕ body overrides").
type Flags struct {
	UseSynthlang            bool
	UseGzip                 bool
	CompressionLevel        compress.Preset
	Cache                   bool
	MaskPIIBeforeLLM        bool
	MaskPIIInLogs           bool
	DisableKeywordDetection bool
}

// ResolveFlags computes the effective Flags for one request.
func ResolveFlags(cfg *config.Config, headers http.Header, req *ChatRequest) Flags {
	f := Flags{
		UseSynthlang:     cfg.UseSynthlang,
		UseGzip:          cfg.DefaultUseGzip,
		CompressionLevel: compress.Preset(cfg.SynthlangCompressionLevel),
		Cache:            cfg.EnableCache,
		MaskPIIBeforeLLM: cfg.MaskPIIBeforeLLM,
		MaskPIIInLogs:    cfg.MaskPIIInLogs,
	}

	// Header overrides config (spec §9 open question: header wins over
	// env for PII masking).
	if v := headers.Get("X-Mask-PII-Before-LLM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.MaskPIIBeforeLLM = b
		}
	}
	if v := headers.Get("X-Mask-PII-In-Logs"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.MaskPIIInLogs = b
		}
	}

	// Body overrides both config and headers.
	if req.UseSynthlang != nil {
		f.UseSynthlang = *req.UseSynthlang
	}
	if req.UseGzip != nil {
		f.UseGzip = *req.UseGzip
	}
	if req.SynthlangCompressionLevel != nil {
		f.CompressionLevel = compress.Preset(*req.SynthlangCompressionLevel)
	}
	if req.Cache != nil {
		f.Cache = *req.Cache
	}
	if req.DisableKeywordDetection != nil {
		f.DisableKeywordDetection = *req.DisableKeywordDetection
	}

	return f
}
