package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Session settings read by the catalog_entities row-level security policy.
const (
	settingUserID   = "app.current_user_id"
	settingIsEditor = "app.is_editor"
)

// Scope wraps a connection with the acting user's identity set for RLS.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close resets the user settings and releases the connection to the pool.
// This MUST be called so one request's identity never leaks to the next.
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET "+settingUserID)
	_, _ = s.Conn.Exec(context.Background(), "RESET "+settingIsEditor)
	s.Conn.Release()
}

// WithUser acquires a connection and sets the user context for RLS.
// Drafts are visible to their creator and to editors.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) WithUser(ctx context.Context, userID string, isEditor bool) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	editor := "false"
	if isEditor {
		editor = "true"
	}

	_, err = conn.Exec(ctx,
		"SELECT set_config($1, $2, false), set_config($3, $4, false)",
		settingUserID, userID, settingIsEditor, editor)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to set user context: %w", err)
	}

	return &Scope{Conn: conn}, nil
}

// WithoutUser acquires a connection for an anonymous caller. Only
// published entities are visible through it.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) WithoutUser(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Scope{Conn: conn}, nil
}
