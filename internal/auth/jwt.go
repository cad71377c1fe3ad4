package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTService validates signed bearer tokens as an alternative to the static
// API-key map. Roles are carried in the "roles" claim.
type JWTService struct {
	secret []byte
}

// NewJWTService builds a JWT helper with the given signing secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// Claims is the JWT claim set the gateway understands.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Validate parses and validates a JWT, returning a role-template Principal
// (quota not yet assigned; Service.finalize fills that in).
func (s *JWTService) Validate(token string) (*Principal, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, ErrUnknownToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrUnknownToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrUnknownToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrUnknownToken
	}

	roles := map[string]bool{}
	for _, r := range claims.Roles {
		roles[r] = true
	}
	return &Principal{UserID: claims.Subject, Roles: roles}, nil
}
