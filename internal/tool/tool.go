// Package tool implements the in-process tool registry and dispatcher:
// name to handler binding, role gating, and parameter-map invocation.
package tool

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/synthlang/gateway/internal/auth"
	"github.com/synthlang/gateway/internal/gatewayerr"
)

// Param is a single bound tool parameter; string, number, or bool.
type Param = any

// ResultKind distinguishes the three shapes a Handler may return.
type ResultKind int

const (
	// Terminal replaces the LLM call entirely with Content.
	Terminal ResultKind = iota
	// Augment replaces the outbound messages and proceeds to the LLM.
	Augment
	// StreamResult indicates the tool itself produced a stream that
	// should be relayed to the client in place of an LLM stream.
	StreamResult
)

// Message mirrors the minimal chat message shape the gateway passes
// around between the matcher, tools, and the LLM client.
type Message struct {
	Role    string
	Content string
}

// Result is what a Handler returns.
type Result struct {
	Kind              ResultKind
	Content           string
	AugmentedMessages []Message
	Stream            <-chan string
}

// Handler is the function signature every registered tool implements.
// Handlers must not retain principal past the call.
type Handler func(params map[string]Param, principal *auth.Principal, rawMessage string) (Result, error)

var nameFormat = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9_]+)+$`)

var (
	// ErrInvalidName is returned by Register for a name that does not
	// match the dot.namespace.allowed convention.
	ErrInvalidName = errors.New("tool: name must match dot.namespace.allowed")
	// ErrDuplicateName is returned by Register for an already-bound name.
	ErrDuplicateName = errors.New("tool: duplicate name")
	// ErrUnknownTool is returned by Dispatch for an unregistered name.
	ErrUnknownTool = errors.New("tool: unknown tool")
)

type registration struct {
	handler      Handler
	requiredRole string
}

// Registry holds registered tools, guarded by a single RWMutex — tool
// registration happens at startup, not per-request, so a copy-on-write
// snapshot (as used by the pattern registry) would be overkill here.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registration
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registration)}
}

// Register binds name to handler, optionally gated behind requiredRole.
func (r *Registry) Register(name string, handler Handler, requiredRole string) error {
	if !nameFormat.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.tools[name] = registration{handler: handler, requiredRole: requiredRole}
	return nil
}

// Dispatch runs the registered tool's role check then its handler,
// mapping handler panics and errors to TOOL_FAILURE.
func (r *Registry) Dispatch(name string, params map[string]Param, principal *auth.Principal, rawMessage string) (result Result, err error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, gatewayerr.New(gatewayerr.ToolFailure, fmt.Sprintf("unknown tool %q", name), ErrUnknownTool)
	}
	if reg.requiredRole != "" && !principal.HasRole(reg.requiredRole) {
		return Result{}, gatewayerr.New(gatewayerr.ToolFailure, fmt.Sprintf("tool %q requires role %q", name, reg.requiredRole), nil)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = gatewayerr.New(gatewayerr.ToolFailure, fmt.Sprintf("tool %q panicked", name), fmt.Errorf("%v", rec))
		}
	}()

	res, handlerErr := reg.handler(params, principal, rawMessage)
	if handlerErr != nil {
		return Result{}, gatewayerr.New(gatewayerr.ToolFailure, fmt.Sprintf("tool %q failed", name), handlerErr)
	}
	return res, nil
}
