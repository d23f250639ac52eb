package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openkpis/catalog-engine/pkg/auth"
	"github.com/openkpis/catalog-engine/pkg/depgraph"
	"github.com/openkpis/catalog-engine/pkg/forms"
	"github.com/openkpis/catalog-engine/pkg/models"
	"github.com/openkpis/catalog-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// CatalogListResponse for GET /api/catalog/{kind}
type CatalogListResponse struct {
	Kind  models.EntityKind       `json:"kind"`
	Items []*models.CatalogEntity `json:"items"`
	Total int                     `json:"total"`
}

// DependencyRequest for POST/DELETE /api/entities/{eid}/dependencies
type DependencyRequest struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

// DependencyResponse returns the graph after an edit.
type DependencyResponse struct {
	Graph depgraph.Graph `json:"graph"`
}

// ============================================================================
// Handler
// ============================================================================

// ScopeMiddleware attaches a user-scoped database connection to the request.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// CatalogHandler handles catalog browsing and editing requests.
type CatalogHandler struct {
	catalogService services.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalogService services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers the catalog routes. Reads accept anonymous
// callers, who only see published entries; writes require a token.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	read := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.OptionalAuth(scope(next))
	}
	write := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(scope(next))
	}
	editor := auth.RequireRole(models.RoleEditor)

	mux.HandleFunc("GET /api/catalog/{kind}", read(h.List))
	mux.HandleFunc("POST /api/catalog/{kind}", write(h.CreateDraft))
	mux.HandleFunc("GET /api/catalog/{kind}/{slug}", read(h.GetDisplay))

	mux.HandleFunc("GET /api/entities/{eid}", read(h.GetEntity))
	mux.HandleFunc("DELETE /api/entities/{eid}", write(h.Delete))
	mux.HandleFunc("GET /api/entities/{eid}/form", write(h.GetForm))
	mux.HandleFunc("PUT /api/entities/{eid}/form", write(h.SaveForm))
	mux.HandleFunc("POST /api/entities/{eid}/dependencies", write(h.AddDependency))
	mux.HandleFunc("DELETE /api/entities/{eid}/dependencies", write(h.RemoveDependency))
	mux.HandleFunc("GET /api/entities/{eid}/dependencies/check", read(h.CheckDependencies))
	mux.HandleFunc("POST /api/entities/{eid}/publish",
		authMiddleware.RequireAuth(editor(scope(h.Publish))))
}

// List handles GET /api/catalog/{kind}
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, ok := ParseKind(w, r, h.logger)
	if !ok {
		return
	}
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}

	items, err := h.catalogService.List(r.Context(), kind, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_catalog", err)
		return
	}
	if items == nil {
		items = []*models.CatalogEntity{}
	}

	response := CatalogListResponse{Kind: kind, Items: items, Total: len(items)}
	h.writeData(w, http.StatusOK, response)
}

// CreateDraft handles POST /api/catalog/{kind}
func (h *CatalogHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	kind, ok := ParseKind(w, r, h.logger)
	if !ok {
		return
	}

	var req services.CreateDraftRequest
	if !h.decode(w, r, &req) {
		return
	}

	entity, err := h.catalogService.CreateDraft(r.Context(), kind, req)
	if err != nil {
		writeServiceError(w, h.logger, "create_draft", err)
		return
	}

	w.Header().Set("Location", "/api/entities/"+entity.ID.String())
	h.writeData(w, http.StatusCreated, entity)
}

// GetDisplay handles GET /api/catalog/{kind}/{slug}
func (h *CatalogHandler) GetDisplay(w http.ResponseWriter, r *http.Request) {
	kind, ok := ParseKind(w, r, h.logger)
	if !ok {
		return
	}

	display, err := h.catalogService.GetDisplay(r.Context(), kind, r.PathValue("slug"))
	if err != nil {
		writeServiceError(w, h.logger, "get_display", err)
		return
	}

	h.writeData(w, http.StatusOK, display)
}

// GetEntity handles GET /api/entities/{eid}
func (h *CatalogHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	entity, err := h.catalogService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get_entity", err)
		return
	}

	h.writeData(w, http.StatusOK, entity)
}

// GetForm handles GET /api/entities/{eid}/form
func (h *CatalogHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	form, err := h.catalogService.GetForm(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get_form", err)
		return
	}

	h.writeData(w, http.StatusOK, form)
}

// SaveForm handles PUT /api/entities/{eid}/form
func (h *CatalogHandler) SaveForm(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var form forms.FormData
	if !h.decode(w, r, &form) {
		return
	}

	saved, err := h.catalogService.SaveForm(r.Context(), id, &form)
	if err != nil {
		writeServiceError(w, h.logger, "save_form", err)
		return
	}

	h.writeData(w, http.StatusOK, saved)
}

// AddDependency handles POST /api/entities/{eid}/dependencies
func (h *CatalogHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	h.editDependency(w, r, h.catalogService.AddDependency)
}

// RemoveDependency handles DELETE /api/entities/{eid}/dependencies
func (h *CatalogHandler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	h.editDependency(w, r, h.catalogService.RemoveDependency)
}

func (h *CatalogHandler) editDependency(
	w http.ResponseWriter,
	r *http.Request,
	edit func(context.Context, uuid.UUID, depgraph.Category, string) (depgraph.Graph, error),
) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req DependencyRequest
	if !h.decode(w, r, &req) {
		return
	}

	category, ok := depgraph.ParseCategory(req.Category)
	if !ok {
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error",
			"category must be one of Events, Metrics, Dimensions, KPIs"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	graph, err := edit(r.Context(), id, category, req.Value)
	if err != nil {
		writeServiceError(w, h.logger, "edit_dependency", err)
		return
	}

	h.writeData(w, http.StatusOK, DependencyResponse{Graph: graph})
}

// CheckDependencies handles GET /api/entities/{eid}/dependencies/check
func (h *CatalogHandler) CheckDependencies(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	check, err := h.catalogService.CheckDependencies(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "check_dependencies", err)
		return
	}

	h.writeData(w, http.StatusOK, check)
}

// Publish handles POST /api/entities/{eid}/publish
func (h *CatalogHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	entity, err := h.catalogService.Publish(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "publish", err)
		return
	}

	h.writeData(w, http.StatusOK, entity)
}

// Delete handles DELETE /api/entities/{eid}
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.catalogService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "delete", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

func (h *CatalogHandler) writeData(w http.ResponseWriter, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
