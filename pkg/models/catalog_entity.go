package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/openkpis/catalog-engine/pkg/jsonutil"
)

// CatalogEntity is one KPI, metric, dimension, event or dashboard.
// Stored in the catalog_entities table; Kind selects which of the optional
// attributes are meaningful.
//
// RelatedKPIs, RelatedDimensions, DerivedMetrics and DerivedKPIs predate a
// stricter schema and hold either a JSON array of strings or a single
// semicolon-joined JSON string. Dependencies is JSON text, see pkg/depgraph.
type CatalogEntity struct {
	ID          uuid.UUID    `json:"id"`
	Kind        EntityKind   `json:"kind"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Industry    []string     `json:"industry,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Scope       string       `json:"scope,omitempty"`
	Status      EntityStatus `json:"status"`

	// Definition
	Formula           string `json:"formula,omitempty"`
	MeasureType       string `json:"measure_type,omitempty"`
	AggregationWindow string `json:"aggregation_window,omitempty"`
	DataType          string `json:"data_type,omitempty"`
	EventType         string `json:"event_type,omitempty"`
	Parameters        string `json:"parameters,omitempty"`

	// Relationships
	RelatedKPIs       json.RawMessage `json:"related_kpis,omitempty"`
	RelatedDimensions json.RawMessage `json:"related_dimensions,omitempty"`
	DerivedMetrics    json.RawMessage `json:"derived_metrics,omitempty"`
	DerivedKPIs       json.RawMessage `json:"derived_kpis,omitempty"`
	Dependencies      string          `json:"dependencies,omitempty"`

	// Platform mappings and SQL
	DataLayerMapping    string `json:"data_layer_mapping,omitempty"`
	XDMMapping          string `json:"xdm_mapping,omitempty"`
	GA4Implementation   string `json:"ga4_implementation,omitempty"`
	AdobeImplementation string `json:"adobe_implementation,omitempty"`
	SQLQuery            string `json:"sql_query,omitempty"`

	// Governance
	ContainsPII     bool   `json:"contains_pii"`
	DataSensitivity string `json:"data_sensitivity,omitempty"`

	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// IsDraft returns true while the entity has not passed editorial review.
func (e *CatalogEntity) IsDraft() bool {
	return e.Status == "" || e.Status == StatusDraft
}

// EntityPatch is a partial update produced by the form write path.
// nil fields are left untouched by ApplyPatch.
type EntityPatch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Industry    *[]string `json:"industry,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Scope       *string   `json:"scope,omitempty"`

	Formula           *string `json:"formula,omitempty"`
	MeasureType       *string `json:"measure_type,omitempty"`
	AggregationWindow *string `json:"aggregation_window,omitempty"`
	DataType          *string `json:"data_type,omitempty"`
	EventType         *string `json:"event_type,omitempty"`
	Parameters        *string `json:"parameters,omitempty"`

	RelatedKPIs       *string `json:"related_kpis,omitempty"`
	RelatedDimensions *string `json:"related_dimensions,omitempty"`
	DerivedMetrics    *string `json:"derived_metrics,omitempty"`
	DerivedKPIs       *string `json:"derived_kpis,omitempty"`
	Dependencies      *string `json:"dependencies,omitempty"`

	DataLayerMapping    *string `json:"data_layer_mapping,omitempty"`
	XDMMapping          *string `json:"xdm_mapping,omitempty"`
	GA4Implementation   *string `json:"ga4_implementation,omitempty"`
	AdobeImplementation *string `json:"adobe_implementation,omitempty"`
	SQLQuery            *string `json:"sql_query,omitempty"`

	ContainsPII     *bool   `json:"contains_pii,omitempty"`
	DataSensitivity *string `json:"data_sensitivity,omitempty"`
}

// ApplyPatch copies every non-nil patch field onto e.
// Semicolon-list fields are stored in their joined-string form.
func (e *CatalogEntity) ApplyPatch(p *EntityPatch) {
	if p == nil {
		return
	}

	setString(&e.Name, p.Name)
	setString(&e.Description, p.Description)
	setString(&e.Category, p.Category)
	if p.Tags != nil {
		e.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Industry != nil {
		e.Industry = append([]string{}, (*p.Industry)...)
	}
	setString(&e.Priority, p.Priority)
	setString(&e.Scope, p.Scope)

	setString(&e.Formula, p.Formula)
	setString(&e.MeasureType, p.MeasureType)
	setString(&e.AggregationWindow, p.AggregationWindow)
	setString(&e.DataType, p.DataType)
	setString(&e.EventType, p.EventType)
	setString(&e.Parameters, p.Parameters)

	setList(&e.RelatedKPIs, p.RelatedKPIs)
	setList(&e.RelatedDimensions, p.RelatedDimensions)
	setList(&e.DerivedMetrics, p.DerivedMetrics)
	setList(&e.DerivedKPIs, p.DerivedKPIs)
	setString(&e.Dependencies, p.Dependencies)

	setString(&e.DataLayerMapping, p.DataLayerMapping)
	setString(&e.XDMMapping, p.XDMMapping)
	setString(&e.GA4Implementation, p.GA4Implementation)
	setString(&e.AdobeImplementation, p.AdobeImplementation)
	setString(&e.SQLQuery, p.SQLQuery)

	if p.ContainsPII != nil {
		e.ContainsPII = *p.ContainsPII
	}
	setString(&e.DataSensitivity, p.DataSensitivity)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setList(dst *json.RawMessage, src *string) {
	if src != nil {
		*dst = SemicolonListRaw(*src)
	}
}

// SemicolonList returns the canonical ";"-joined form of a legacy list
// field, whichever representation it was stored in.
func SemicolonList(raw json.RawMessage) string {
	return jsonutil.JoinFlexibleList(raw, jsonutil.ListSeparator)
}

// SemicolonListRaw encodes a joined list string for storage. The string is
// kept as-is; it is not re-split into an array.
func SemicolonListRaw(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return b
}

// SemicolonItems returns the individual items of a legacy list field.
func SemicolonItems(raw json.RawMessage) []string {
	return jsonutil.FlexibleStringList(raw)
}
