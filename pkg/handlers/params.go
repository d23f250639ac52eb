package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openkpis/catalog-engine/pkg/models"
	"github.com/openkpis/catalog-engine/pkg/services"
	sqlcheck "github.com/openkpis/catalog-engine/pkg/sql"
)

// ParseEntityID extracts and validates the entity ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: eid
func ParseEntityID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("eid"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_entity_id", "Invalid entity ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// ParseKind extracts the entity kind from the request path. Singular and
// plural forms are accepted ("kpi", "kpis").
// Expects path parameter: kind
func ParseKind(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.EntityKind, bool) {
	kind, err := models.ParseEntityKind(r.PathValue("kind"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "unknown_kind", err.Error()); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return kind, true
}

// ParseListOptions reads catalog list filters from the query string.
// Free-text filters are screened with libinjection before use.
//
// Query parameters: status, category, q, mine, limit, offset
func ParseListOptions(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (services.ListOptions, bool) {
	q := r.URL.Query()
	opts := services.ListOptions{
		Status:   models.EntityStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}

	fail := func(code, message string) (services.ListOptions, bool) {
		if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return services.ListOptions{}, false
	}

	flagged := sqlcheck.CheckFilters(map[string]string{
		"status":   string(opts.Status),
		"category": opts.Category,
		"q":        opts.Query,
	})
	if len(flagged) > 0 {
		logger.Warn("Rejected suspicious catalog filter",
			zap.String("field", flagged[0].Field),
			zap.String("fingerprint", flagged[0].Fingerprint))
		return fail("invalid_filter", fmt.Sprintf("Filter %q contains disallowed content", flagged[0].Field))
	}

	if v := q.Get("mine"); v != "" {
		mine, err := strconv.ParseBool(v)
		if err != nil {
			return fail("invalid_filter", "mine must be true or false")
		}
		opts.Mine = mine
	}

	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		return fail("invalid_filter", "limit must be a non-negative integer")
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		return fail("invalid_filter", "offset must be a non-negative integer")
	}

	return opts, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}
