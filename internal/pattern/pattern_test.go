package pattern

import (
	"regexp"
	"testing"

	"github.com/synthlang/gateway/internal/auth"
)

func newTestPrincipal(roles ...string) *auth.Principal {
	m := map[string]bool{}
	for _, r := range roles {
		m[r] = true
	}
	return &auth.Principal{UserID: "u1", Roles: m}
}

func TestMatchPicksHigherPriorityWhenBothMatch(t *testing.T) {
	r := NewRegistry(true)
	low := Pattern{
		Name: "weather-low", Tool: "weather", Priority: 1, Enabled: true,
		Regex: regexp.MustCompile(`(?i)weather in (?P<location>.+)`),
	}
	high := Pattern{
		Name: "weather-high", Tool: "weather_v2", Priority: 10, Enabled: true,
		Regex: regexp.MustCompile(`(?i)weather in (?P<location>.+)`),
	}
	if err := r.Add(low, true); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(high, true); err != nil {
		t.Fatal(err)
	}
	m := NewMatcher(r)
	res, ok := m.Match("What's the weather in London?", newTestPrincipal("basic"), Flags{})
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Tool != "weather_v2" {
		t.Fatalf("expected higher priority pattern to win, got tool %q", res.Tool)
	}
	if res.Params["location"] == "" {
		t.Fatal("expected location capture group bound")
	}
}

func TestMatchSkipsRoleGatedPattern(t *testing.T) {
	r := NewRegistry(true)
	p := Pattern{
		Name: "admin-only", Tool: "admin_tool", Priority: 5, Enabled: true,
		RequiredRole: "admin",
		Regex:        regexp.MustCompile(`(?P<cmd>shutdown)`),
	}
	if err := r.Add(p, true); err != nil {
		t.Fatal(err)
	}
	m := NewMatcher(r)
	_, ok := m.Match("shutdown", newTestPrincipal("basic"), Flags{})
	if ok {
		t.Fatal("expected role-gated pattern to be skipped for a basic principal")
	}
	_, ok = m.Match("shutdown", newTestPrincipal("admin"), Flags{})
	if !ok {
		t.Fatal("expected admin principal to match")
	}
}

func TestMatchDisabledGlobally(t *testing.T) {
	r := NewRegistry(false)
	p := Pattern{
		Name: "x", Tool: "t", Priority: 1, Enabled: true,
		Regex: regexp.MustCompile(`(?P<v>.+)`),
	}
	_ = r.Add(p, true)
	m := NewMatcher(r)
	_, ok := m.Match("anything", newTestPrincipal("basic"), Flags{})
	if ok {
		t.Fatal("expected no match when keyword detection is globally disabled")
	}
}

func TestMatchDisabledPerRequest(t *testing.T) {
	r := NewRegistry(true)
	p := Pattern{
		Name: "x", Tool: "t", Priority: 1, Enabled: true,
		Regex: regexp.MustCompile(`(?P<v>.+)`),
	}
	_ = r.Add(p, true)
	m := NewMatcher(r)
	_, ok := m.Match("anything", newTestPrincipal("basic"), Flags{DisableKeywordDetection: true})
	if ok {
		t.Fatal("expected no match when request disables keyword detection")
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	r := NewRegistry(true)
	p := Pattern{Name: "dup", Regex: regexp.MustCompile(`(?P<v>.+)`), Enabled: true}
	if err := r.Add(p, true); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(p, true); err != ErrDuplicateName {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestAddRejectsMissingNamedGroupsWhenRequired(t *testing.T) {
	r := NewRegistry(true)
	p := Pattern{Name: "no-groups", Regex: regexp.MustCompile(`hello`), Enabled: true}
	if err := r.Add(p, true); err != ErrNoNamedGroups {
		t.Fatalf("expected ErrNoNamedGroups, got %v", err)
	}
}

func TestDisabledPatternSkipped(t *testing.T) {
	r := NewRegistry(true)
	p := Pattern{Name: "off", Tool: "t", Priority: 1, Enabled: false, Regex: regexp.MustCompile(`(?P<v>.+)`)}
	_ = r.Add(p, true)
	m := NewMatcher(r)
	_, ok := m.Match("anything", newTestPrincipal("basic"), Flags{})
	if ok {
		t.Fatal("expected disabled pattern to be skipped")
	}
}

func TestUpdateAndRemove(t *testing.T) {
	r := NewRegistry(true)
	p := Pattern{Name: "p1", Tool: "t", Priority: 1, Enabled: false, Regex: regexp.MustCompile(`(?P<v>.+)`)}
	_ = r.Add(p, true)
	if err := r.Update("p1", func(pp *Pattern) { pp.Enabled = true }); err != nil {
		t.Fatal(err)
	}
	m := NewMatcher(r)
	if _, ok := m.Match("x", newTestPrincipal("basic"), Flags{}); !ok {
		t.Fatal("expected pattern enabled via Update to now match")
	}
	if err := r.Remove("p1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Remove("p1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}
