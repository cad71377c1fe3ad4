// Command gateway runs the SynthLang-compatible chat completion proxy: an
// OpenAI-compatible HTTP surface in front of pattern dispatch, compression,
// PII redaction, semantic caching, and multi-provider LLM routing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/synthlang/gateway/internal/audit"
	"github.com/synthlang/gateway/internal/auth"
	"github.com/synthlang/gateway/internal/config"
	"github.com/synthlang/gateway/internal/embedding"
	"github.com/synthlang/gateway/internal/gateway"
	"github.com/synthlang/gateway/internal/llmclient"
	"github.com/synthlang/gateway/internal/obslog"
	"github.com/synthlang/gateway/internal/pattern"
	"github.com/synthlang/gateway/internal/ratelimit"
	"github.com/synthlang/gateway/internal/semcache"
	"github.com/synthlang/gateway/internal/tool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := obslog.New(obslog.Format(cfg.LogFormat), cfg.LogLevel)

	authService := auth.NewService(auth.Config{
		JWTSecret:           cfg.JWTSecret,
		APIKeys:             toAuthAPIKeys(cfg.APIKeys),
		DefaultRole:         cfg.DefaultRole,
		AdminUsers:          cfg.AdminUsers,
		PremiumUsers:        cfg.PremiumUsers,
		DefaultRateLimitQPM: cfg.DefaultRateLimitQPM,
		PremiumRateLimitQPM: cfg.PremiumRateLimitQPM,
	})

	limiter := ratelimit.NewLimiter()

	registry := pattern.NewRegistry(cfg.EnableKeywordDetection)
	if cfg.KeywordConfigPath != "" {
		loadPatternFile := pattern.LoadTOML
		if ext := strings.ToLower(cfg.KeywordConfigPath); strings.HasSuffix(ext, ".yaml") || strings.HasSuffix(ext, ".yml") {
			loadPatternFile = pattern.LoadYAML
		}
		if err := loadPatternFile(registry, cfg.KeywordConfigPath, true); err != nil {
			logger.Warn("failed to load keyword pattern config", "path", cfg.KeywordConfigPath, "error", err)
		}
	}
	matcher := pattern.NewMatcher(registry)

	// No built-in tools are registered here; operators register their own
	// via Tools.Register before Start, against this dispatcher contract.
	tools := tool.NewRegistry()

	embedder, err := embedding.New(embedding.Config{
		APIKey: cfg.Providers["openai"].APIKey,
		Model:  cfg.CacheEmbeddingModel,
	})
	if err != nil {
		logger.Warn("embedding client disabled, semantic cache will miss every lookup", "error", err)
	}

	cache := semcache.New(cfg.CacheMaxItems, cfg.CacheSimilarityThreshold)

	openaiProvider := llmclient.NewOpenAIProvider(cfg.Providers["openai"].APIKey, cfg.Providers["openai"].BaseURL)
	anthropicProvider := llmclient.NewAnthropicProvider(cfg.Providers["anthropic"].APIKey, cfg.Providers["anthropic"].BaseURL)
	llm := llmclient.New(openaiProvider, anthropicProvider)

	sink, err := buildAuditSink(cfg)
	if err != nil {
		logger.Error("failed to build audit sink, falling back to stdout", "error", err)
		sink = audit.NewStdoutSink(os.Stdout)
	}
	auditQueue := audit.NewQueue(sink, 1000, logger)
	defer auditQueue.Close()

	orchestrator := &gateway.Orchestrator{
		Config:   cfg,
		Auth:     authService,
		Limiter:  limiter,
		Matcher:  matcher,
		Tools:    tools,
		Embedder: embedder,
		Cache:    cache,
		LLM:      llm,
		Audit:    auditQueue,
	}

	server := gateway.NewServer(cfg, orchestrator, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start http server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Stop(shutdownCtx)
}

func toAuthAPIKeys(entries []config.APIKeyEntry) []auth.APIKeyConfig {
	out := make([]auth.APIKeyConfig, len(entries))
	for i, e := range entries {
		out[i] = auth.APIKeyConfig{Key: e.Key, Roles: e.Roles}
	}
	return out
}

func buildAuditSink(cfg *config.Config) (audit.Sink, error) {
	switch cfg.AuditSink {
	case "sqlite":
		return audit.NewSQLiteSink(os.Getenv("AUDIT_SQLITE_PATH"))
	case "postgres":
		return audit.NewPostgresSink(os.Getenv("AUDIT_POSTGRES_DSN"))
	default:
		return audit.NewStdoutSink(os.Stdout), nil
	}
}
