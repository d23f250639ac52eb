package database

import (
	"context"
)

type contextKey string

const (
	// ScopeKey is the context key for the request's user-scoped connection.
	ScopeKey contextKey = "dbScope"
)

// GetScope retrieves the user-scoped database connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil
}

// SetScope stores the user-scoped database connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}
