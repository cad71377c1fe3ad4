package tool

import (
	"errors"
	"testing"

	"github.com/synthlang/gateway/internal/auth"
	"github.com/synthlang/gateway/internal/gatewayerr"
)

func principal(roles ...string) *auth.Principal {
	m := map[string]bool{}
	for _, r := range roles {
		m[r] = true
	}
	return &auth.Principal{UserID: "u1", Roles: m}
}

func TestRegisterRejectsBadName(t *testing.T) {
	r := NewRegistry()
	err := r.Register("weather", func(map[string]Param, *auth.Principal, string) (Result, error) {
		return Result{}, nil
	}, "")
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	h := func(map[string]Param, *auth.Principal, string) (Result, error) { return Result{}, nil }
	if err := r.Register("weather.lookup", h, ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("weather.lookup", h, ""); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestDispatchTerminal(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("weather.lookup", func(params map[string]Param, p *auth.Principal, raw string) (Result, error) {
		return Result{Kind: Terminal, Content: "Weather in London: 15C, cloudy."}, nil
	}, "")
	res, err := r.Dispatch("weather.lookup", map[string]Param{"location": "London"}, principal("basic"), "what's the weather in London?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != Terminal || res.Content == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch("nope.tool", nil, principal("basic"), "")
	var gwErr *gatewayerr.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gatewayerr.ToolFailure {
		t.Fatalf("expected TOOL_FAILURE, got %v", err)
	}
}

func TestDispatchRoleGated(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("admin.shutdown", func(map[string]Param, *auth.Principal, string) (Result, error) {
		return Result{Kind: Terminal, Content: "ok"}, nil
	}, "admin")
	_, err := r.Dispatch("admin.shutdown", nil, principal("basic"), "")
	var gwErr *gatewayerr.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gatewayerr.ToolFailure {
		t.Fatalf("expected TOOL_FAILURE for missing role, got %v", err)
	}
	if _, err := r.Dispatch("admin.shutdown", nil, principal("admin"), ""); err != nil {
		t.Fatalf("expected admin to pass role gate, got %v", err)
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("broken.tool", func(map[string]Param, *auth.Principal, string) (Result, error) {
		panic("boom")
	}, "")
	_, err := r.Dispatch("broken.tool", nil, principal("basic"), "")
	var gwErr *gatewayerr.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gatewayerr.ToolFailure {
		t.Fatalf("expected TOOL_FAILURE from recovered panic, got %v", err)
	}
}

func TestDispatchWrapsHandlerError(t *testing.T) {
	r := NewRegistry()
	sentinel := errors.New("upstream boom")
	_ = r.Register("failing.tool", func(map[string]Param, *auth.Principal, string) (Result, error) {
		return Result{}, sentinel
	}, "")
	_, err := r.Dispatch("failing.tool", nil, principal("basic"), "")
	var gwErr *gatewayerr.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gatewayerr.ToolFailure {
		t.Fatalf("expected TOOL_FAILURE, got %v", err)
	}
	if !errors.Is(err, sentinel) {
		t.Fatal("expected wrapped error to unwrap to sentinel")
	}
}
