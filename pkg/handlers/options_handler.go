package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openkpis/catalog-engine/pkg/depgraph"
	"github.com/openkpis/catalog-engine/pkg/forms"
	"github.com/openkpis/catalog-engine/pkg/models"
)

// KindSchema describes the edit form of one entity kind.
type KindSchema struct {
	Kind   models.EntityKind   `json:"kind"`
	Plural string              `json:"plural"`
	Fields []forms.FieldConfig `json:"fields"`
}

// OptionsResponse for GET /api/options
type OptionsResponse struct {
	Options              *models.OptionTable `json:"options"`
	Kinds                []KindSchema        `json:"kinds"`
	DependencyCategories []depgraph.Category `json:"dependency_categories"`
}

// OptionsHandler serves the static option table and per-kind form layouts.
type OptionsHandler struct {
	logger *zap.Logger
}

// NewOptionsHandler creates a new options handler.
func NewOptionsHandler(logger *zap.Logger) *OptionsHandler {
	return &OptionsHandler{logger: logger}
}

// RegisterRoutes registers the options handler's routes on the given mux.
func (h *OptionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/options", h.Get)
}

// Get handles GET /api/options
func (h *OptionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	kinds := make([]KindSchema, 0, len(models.AllKinds))
	for _, k := range models.AllKinds {
		kinds = append(kinds, KindSchema{
			Kind:   k,
			Plural: k.Plural(),
			Fields: forms.FieldsForKind(k),
		})
	}

	response := OptionsResponse{
		Options:              models.Options(),
		Kinds:                kinds,
		DependencyCategories: depgraph.Categories(),
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
