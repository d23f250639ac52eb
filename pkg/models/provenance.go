// Package models contains domain types for the catalog engine.
package models

import (
	"context"
	"slices"
)

// RoleEditor is the claim role allowed to publish and to edit published entries.
const RoleEditor = "editor"

// ProvenanceContext carries the acting user through service calls.
// UserID is the external auth principal (JWT subject).
type ProvenanceContext struct {
	UserID string
	Roles  []string
}

// IsEditor returns true when the actor holds the editor role.
func (p ProvenanceContext) IsEditor() bool {
	return slices.Contains(p.Roles, RoleEditor)
}

// provenanceKey is the context key for storing provenance information.
type provenanceKey struct{}

// WithProvenance returns a new context with provenance information attached.
func WithProvenance(ctx context.Context, p ProvenanceContext) context.Context {
	return context.WithValue(ctx, provenanceKey{}, p)
}

// GetProvenance retrieves provenance information from the context.
// Returns the provenance context and true if present, otherwise a zero value and false.
func GetProvenance(ctx context.Context) (ProvenanceContext, bool) {
	p, ok := ctx.Value(provenanceKey{}).(ProvenanceContext)
	return p, ok
}
