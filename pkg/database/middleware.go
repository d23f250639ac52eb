package database

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/openkpis/catalog-engine/pkg/auth"
	"github.com/openkpis/catalog-engine/pkg/logging"
)

// Acquirer hands out user-scoped connections. *DB implements it.
type Acquirer interface {
	WithUser(ctx context.Context, userID string, isEditor bool) (*Scope, error)
	WithoutUser(ctx context.Context) (*Scope, error)
}

var _ Acquirer = (*DB)(nil)

// WithUserScope creates middleware that sets up a user-scoped DB connection.
// It runs AFTER auth middleware; anonymous requests get a connection that
// only sees published rows. The connection is released after the handler
// returns.
func WithUserScope(db Acquirer, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var (
				scope *Scope
				err   error
			)

			if userID, isEditor := auth.Caller(r.Context()); userID != "" {
				scope, err = db.WithUser(r.Context(), userID, isEditor)
			} else {
				scope, err = db.WithoutUser(r.Context())
			}
			if err != nil {
				logger.Error("Failed to acquire scoped connection",
					zap.String("error", logging.SanitizeError(err)))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetScope(r.Context(), scope)))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
