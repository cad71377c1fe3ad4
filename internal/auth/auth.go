// Package auth resolves bearer tokens to principals and expands the role
// hierarchy.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrUnknownToken is returned when the token matches neither a static
	// API key nor a valid JWT.
	ErrUnknownToken = errors.New("unknown bearer token")
	// ErrForbidden is returned by RequireRole when the principal lacks it.
	ErrForbidden = errors.New("forbidden: missing required role")
)

// Principal is the authenticated caller identity plus its resolved role
// set. It is created fresh per request and never retained past it.
type Principal struct {
	UserID   string
	Roles    map[string]bool
	QuotaQPM int
}

// HasRole reports whether the principal holds the given role, post role
// hierarchy expansion.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return p.Roles[role]
}

// APIKeyConfig declares a static API key and the direct role it grants.
type APIKeyConfig struct {
	Key   string
	Roles []string
}

// Config configures the auth Service.
type Config struct {
	JWTSecret           string
	APIKeys             []APIKeyConfig
	DefaultRole         string
	AdminUsers          map[string]bool
	PremiumUsers        map[string]bool
	DefaultRateLimitQPM int
	PremiumRateLimitQPM int
}

// Service resolves bearer tokens to Principals. Safe for concurrent use.
type Service struct {
	mu          sync.RWMutex
	jwt         *JWTService
	apiKeys     map[string]*Principal
	defaultRole string

	defaultQPM int
	premiumQPM int
}

// roleHierarchy is the built-in role DAG: admin > premium > basic. Every
// authenticated principal implicitly holds basic.
var roleHierarchy = map[string][]string{
	"admin":   {"premium"},
	"premium": {"basic"},
	"basic":   {},
}

// NewService constructs an auth service from static configuration.
func NewService(cfg Config) *Service {
	s := &Service{
		defaultRole: cfg.DefaultRole,
		defaultQPM:  cfg.DefaultRateLimitQPM,
		premiumQPM:  cfg.PremiumRateLimitQPM,
	}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		s.jwt = NewJWTService(cfg.JWTSecret)
	}
	s.apiKeys = buildAPIKeyMap(cfg.APIKeys, cfg.AdminUsers, cfg.PremiumUsers, cfg.DefaultRole)
	return s
}

// Authenticate resolves a bearer token (the raw header value, without the
// "Bearer " prefix) into a Principal. Static API-key comparison is
// constant-time; if the token parses as a signed JWT it takes precedence
// over the static map.
func (s *Service) Authenticate(bearer string) (*Principal, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, ErrMissingToken
	}

	if s.jwt != nil {
		if p, err := s.jwt.Validate(bearer); err == nil {
			return s.finalize(p), nil
		}
	}

	s.mu.RLock()
	apiKeys := s.apiKeys
	s.mu.RUnlock()

	var matched *Principal
	// Iterate every key with constant-time comparison so a caller cannot
	// learn which prefix of a guessed key is correct from timing.
	for storedKey, p := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(bearer), []byte(storedKey)) == 1 {
			matched = p
		}
	}
	if matched == nil {
		return nil, ErrUnknownToken
	}
	return s.finalize(matched), nil
}

// finalize expands the role closure and assigns the quota for a resolved
// principal template.
func (s *Service) finalize(p *Principal) *Principal {
	out := &Principal{
		UserID:   p.UserID,
		Roles:    expandRoles(p.Roles),
		QuotaQPM: p.QuotaQPM,
	}
	if out.QuotaQPM == 0 {
		if out.HasRole("premium") {
			out.QuotaQPM = s.premiumQPM
		} else {
			out.QuotaQPM = s.defaultQPM
		}
	}
	return out
}

// RequireRole returns ErrForbidden unless the principal holds role.
func RequireRole(p *Principal, role string) error {
	if p == nil || !p.HasRole(role) {
		return ErrForbidden
	}
	return nil
}

// expandRoles computes the transitive closure of direct roles over the
// built-in hierarchy, plus the implicit basic role every authenticated
// caller holds.
func expandRoles(direct map[string]bool) map[string]bool {
	closed := map[string]bool{"basic": true}
	var visit func(string)
	visit = func(role string) {
		if closed[role] {
			return
		}
		closed[role] = true
		for _, granted := range roleHierarchy[role] {
			visit(granted)
		}
	}
	for role := range direct {
		visit(role)
	}
	return closed
}

func buildAPIKeyMap(keys []APIKeyConfig, admins, premiums map[string]bool, defaultRole string) map[string]*Principal {
	out := make(map[string]*Principal)
	for _, entry := range keys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			continue
		}
		userID := deriveUserID(key)
		roles := map[string]bool{}
		for _, r := range entry.Roles {
			roles[r] = true
		}
		if len(roles) == 0 {
			roles[defaultRole] = true
		}
		if admins[userID] {
			roles["admin"] = true
		}
		if premiums[userID] {
			roles["premium"] = true
		}
		out[key] = &Principal{UserID: userID, Roles: roles}
	}
	return out
}

// deriveUserID derives a stable, non-reversible user id from an API key, in
// the teacher's "api_<sha256-prefix>" style.
func deriveUserID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "api_" + hex.EncodeToString(sum[:8])
}
