// Package auth provides JWT-based authentication for catalog-engine.
// Tokens are validated against the JWKS endpoints of trusted issuers.
package auth

import (
	"context"
	"slices"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openkpis/catalog-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims accepted by catalog-engine.
// Subject is the user id recorded as created_by / last_modified_by.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the token grants role.
func (c *Claims) HasRole(role string) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

// IsEditor reports whether the caller may publish and edit published entities.
func (c *Claims) IsEditor() bool {
	return c.HasRole(models.RoleEditor)
}

// Provenance converts the claims into the acting-user record services read.
func (c *Claims) Provenance() models.ProvenanceContext {
	if c == nil {
		return models.ProvenanceContext{}
	}
	return models.ProvenanceContext{
		UserID: c.Subject,
		Roles:  slices.Clone(c.Roles),
	}
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// WithClaims stores claims, the raw token and the derived provenance in ctx.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	ctx = context.WithValue(ctx, TokenKey, token)
	return models.WithProvenance(ctx, claims.Provenance())
}
