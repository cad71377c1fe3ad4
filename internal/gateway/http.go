package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synthlang/gateway/internal/audit"
	"github.com/synthlang/gateway/internal/auth"
	"github.com/synthlang/gateway/internal/compress"
	"github.com/synthlang/gateway/internal/config"
	"github.com/synthlang/gateway/internal/gatewayerr"
)

// Server exposes the Orchestrator over HTTP: the OpenAI-compatible chat
// completion endpoint, SynthLang debug endpoints, cache admin endpoints,
// liveness, and Prometheus metrics.
type Server struct {
	config       *config.Config
	orchestrator *Orchestrator
	logger       *slog.Logger

	httpServer   *http.Server
	httpListener net.Listener
	startTime    time.Time
}

// NewServer wires an Orchestrator into an HTTP Server.
func NewServer(cfg *config.Config, o *Orchestrator, logger *slog.Logger) *Server {
	return &Server{config: cfg, orchestrator: o, logger: logger, startTime: time.Now()}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealthz)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/synthlang/compress", s.handleCompressDebug)
	mux.HandleFunc("/v1/synthlang/decompress", s.handleDecompressDebug)
	mux.HandleFunc("/v1/cache/stats", s.requireRole("admin", s.handleCacheStats))
	mux.HandleFunc("/v1/cache/clear", s.requireRole("admin", s.handleCacheClear))
	return mux
}

// Start begins serving on the configured host/port, in the background, the
// way the teacher's startHTTPServer/stopHTTPServer pair does.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.httpServer = server
	s.httpListener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error("http server error", "error", err)
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("starting http server", "addr", addr)
	}
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// (including streaming ones) up to ctx's deadline.
func (s *Server) Stop(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	shutdownCtx := ctx
	var cancel context.CancelFunc
	if shutdownCtx == nil {
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Warn("http server shutdown error", "error", err)
	}
	s.httpServer = nil
	s.httpListener = nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) authenticate(r *http.Request) (*auth.Principal, *gatewayerr.Error) {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	p, err := s.orchestrator.Auth.Authenticate(bearer)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.Unauthenticated, err.Error(), err)
	}
	return p, nil
}

func (s *Server) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, gwErr := s.authenticate(r)
		if gwErr != nil {
			writeError(w, gwErr)
			return
		}
		if err := auth.RequireRole(principal, role); err != nil {
			writeError(w, gatewayerr.New(gatewayerr.Forbidden, err.Error(), err))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, gatewayerr.New(gatewayerr.Validation, "method not allowed", nil))
		return
	}

	principal, gwErr := s.authenticate(r)
	if gwErr != nil {
		writeError(w, gwErr)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.New(gatewayerr.Validation, "malformed JSON body", err))
		return
	}

	if req.Stream {
		s.streamChatCompletion(w, r, principal, &req)
		return
	}

	resp, cacheHit, gwErr := s.orchestrator.Complete(r.Context(), principal, r.Header, &req)
	if gwErr != nil {
		writeError(w, gwErr)
		return
	}
	if cacheHit {
		w.Header().Set("X-Cache-Hit", "true")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// streamChatCompletion runs the pipeline through Prepare, then either
// replays a terminal/cache-hit response as a single SSE frame or streams
// the upstream LLM response chunk by chunk. The request is cancelled and
// discarded (never cached) if the client disconnects mid-stream, per
// spec §4.12 step 11.
func (s *Server) streamChatCompletion(w http.ResponseWriter, r *http.Request, principal *auth.Principal, req *ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, gatewayerr.New(gatewayerr.Internal, "streaming unsupported", nil))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pr, gwErr := s.orchestrator.Prepare(ctx, principal, r.Header, req)
	if gwErr != nil {
		writeError(w, gwErr)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if pr.cacheHit {
		w.Header().Set("X-Cache-Hit", "true")
	}
	w.WriteHeader(http.StatusOK)

	if pr.terminalResponse != nil {
		s.orchestrator.writeAudit(pr, req, pr.terminalResponse.Choices[0].Message.Content, false, audit.StatusOK)
		writeSSEChunk(w, flusher, pr.terminalResponse.Choices[0].Message.Content)
		writeSSEDone(w, flusher)
		return
	}
	if pr.cacheHit {
		content := unmask(pr.cacheHitContent, pr.redactionMap)
		s.orchestrator.writeAudit(pr, req, content, true, audit.StatusOK)
		writeSSEChunk(w, flusher, content)
		writeSSEDone(w, flusher)
		return
	}
	if pr.toolStream != nil {
		var full strings.Builder
		for piece := range pr.toolStream {
			full.WriteString(piece)
			writeSSEChunk(w, flusher, piece)
		}
		s.orchestrator.writeAudit(pr, req, full.String(), false, audit.StatusOK)
		writeSSEDone(w, flusher)
		return
	}

	chunks, err := s.orchestrator.LLM.Stream(ctx, pr.llmRequest)
	if err != nil {
		gwe, _ := err.(*gatewayerr.Error)
		if gwe == nil {
			gwe = gatewayerr.New(gatewayerr.Internal, "stream start failed", err)
		}
		writeSSEChunk(w, flusher, fmt.Sprintf("error: %s", gwe.Message))
		writeSSEDone(w, flusher)
		return
	}

	var full strings.Builder
	clientGone := r.Context().Done()
	for {
		select {
		case <-clientGone:
			// Client disconnected mid-stream: the partial response is
			// discarded and never cached (spec §4.12 step 11).
			s.orchestrator.writeAudit(pr, req, unmask(full.String(), pr.redactionMap), false, audit.StatusAborted)
			cancel()
			return
		case chunk, open := <-chunks:
			if !open {
				finalText := unmask(full.String(), pr.redactionMap)
				if pr.cacheVector != nil {
					s.orchestrator.Cache.Insert(pr.cacheModel, pr.requestID, pr.cacheVector, full.String())
				}
				s.orchestrator.writeAudit(pr, req, finalText, false, audit.StatusOK)
				writeSSEDone(w, flusher)
				return
			}
			if chunk.Error != nil {
				writeSSEChunk(w, flusher, fmt.Sprintf("error: %v", chunk.Error))
				continue
			}
			full.WriteString(chunk.Text)
			writeSSEChunk(w, flusher, unmask(chunk.Text, pr.redactionMap))
			if chunk.Done {
				finalText := unmask(full.String(), pr.redactionMap)
				if pr.cacheVector != nil {
					s.orchestrator.Cache.Insert(pr.cacheModel, pr.requestID, pr.cacheVector, full.String())
				}
				s.orchestrator.writeAudit(pr, req, finalText, false, audit.StatusOK)
				writeSSEDone(w, flusher)
				return
			}
		}
	}
}

func writeSSEChunk(w http.ResponseWriter, f http.Flusher, content string) {
	payload, _ := json.Marshal(map[string]string{"content": content})
	fmt.Fprintf(w, "data: %s\n\n", payload)
	f.Flush()
}

func writeSSEDone(w http.ResponseWriter, f http.Flusher) {
	fmt.Fprint(w, "data: [DONE]\n\n")
	f.Flush()
}

// synthlangDebugRequest is the shared body shape for the two debug
// endpoints below.
type synthlangDebugRequest struct {
	Text  string `json:"text"`
	Level string `json:"level,omitempty"`
}

func (s *Server) handleCompressDebug(w http.ResponseWriter, r *http.Request) {
	var req synthlangDebugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.New(gatewayerr.Validation, "malformed JSON body", err))
		return
	}
	level := compress.Preset(req.Level)
	if level == "" {
		level = compress.Preset(s.config.SynthlangCompressionLevel)
	}
	pipeline := compress.BuildPipeline(level, s.config.DefaultUseGzip)
	encoded, metrics := pipeline.Encode(req.Text)
	writeJSON(w, map[string]any{
		"encoded":              encoded,
		"original_bytes":       len(req.Text),
		"encoded_bytes":        len(encoded),
		"compression_degraded": metrics.CompressionDegraded,
	})
}

func (s *Server) handleDecompressDebug(w http.ResponseWriter, r *http.Request) {
	var req synthlangDebugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.New(gatewayerr.Validation, "malformed JSON body", err))
		return
	}
	decoded := compress.BinaryEncoder{}.Decode(req.Text)
	writeJSON(w, map[string]any{"decoded": decoded})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.orchestrator.Cache.StatsAll())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.Cache.Clear()
	writeJSON(w, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *gatewayerr.Error) {
	w.Header().Set("Content-Type", "application/json")
	if err.Kind == gatewayerr.RateLimited {
		seconds := int(err.RetryAfter.Seconds())
		if err.RetryAfter%time.Second != 0 || seconds < 1 {
			seconds++
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	w.WriteHeader(err.Kind.StatusCode())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"kind":       string(err.Kind),
			"message":    err.Message,
			"request_id": err.RequestID,
		},
	})
}
