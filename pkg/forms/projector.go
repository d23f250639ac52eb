package forms

import (
	"github.com/google/uuid"

	"github.com/openkpis/catalog-engine/pkg/depgraph"
	"github.com/openkpis/catalog-engine/pkg/models"
)

// FormData is the flat editable view of a catalog entity. Only the fields
// the kind's form shows are populated; the rest stay at their zero value.
type FormData struct {
	ID     uuid.UUID           `json:"id"`
	Kind   models.EntityKind   `json:"kind"`
	Slug   string              `json:"slug"`
	Status models.EntityStatus `json:"status"`

	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Industry    []string `json:"industry,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Scope       string   `json:"scope,omitempty"`

	Formula           string `json:"formula,omitempty"`
	MeasureType       string `json:"measure_type,omitempty"`
	AggregationWindow string `json:"aggregation_window,omitempty"`
	DataType          string `json:"data_type,omitempty"`
	EventType         string `json:"event_type,omitempty"`
	Parameters        string `json:"parameters,omitempty"`

	RelatedKPIs       string `json:"related_kpis,omitempty"`
	RelatedDimensions string `json:"related_dimensions,omitempty"`
	DerivedMetrics    string `json:"derived_metrics,omitempty"`
	DerivedKPIs       string `json:"derived_kpis,omitempty"`

	// Dependencies is the stored JSON text; DependencyGraph is the working
	// copy the editor mutates. The graph wins on save.
	Dependencies    string         `json:"dependencies"`
	DependencyGraph depgraph.Graph `json:"dependency_graph"`

	DataLayerMapping    string `json:"data_layer_mapping,omitempty"`
	XDMMapping          string `json:"xdm_mapping,omitempty"`
	GA4Implementation   string `json:"ga4_implementation,omitempty"`
	AdobeImplementation string `json:"adobe_implementation,omitempty"`
	SQLQuery            string `json:"sql_query,omitempty"`

	ContainsPII     bool   `json:"contains_pii,omitempty"`
	DataSensitivity string `json:"data_sensitivity,omitempty"`
}

// ToFormData projects a stored entity into the form for kind. A nil entity
// yields an empty form. Missing values become their zero value; tags are
// never nil.
func ToFormData(e *models.CatalogEntity, kind models.EntityKind) *FormData {
	if e == nil {
		e = &models.CatalogEntity{}
	}

	f := &FormData{
		ID:              e.ID,
		Kind:            kind,
		Slug:            e.Slug,
		Status:          e.Status,
		Name:            e.Name,
		Description:     e.Description,
		Category:        e.Category,
		Tags:            copyList(e.Tags),
		Dependencies:    e.Dependencies,
		DependencyGraph: depgraph.Decode(e.Dependencies),
	}

	has := func(name string) bool { return HasField(kind, name) }

	if has(FieldIndustry) {
		f.Industry = copyList(e.Industry)
	}
	if has(FieldPriority) {
		f.Priority = e.Priority
	}
	if has(FieldScope) {
		f.Scope = e.Scope
	}

	if has(FieldFormula) {
		f.Formula = e.Formula
	}
	if has(FieldMeasureType) {
		f.MeasureType = e.MeasureType
	}
	if has(FieldAggregationWindow) {
		f.AggregationWindow = e.AggregationWindow
	}
	if has(FieldDataType) {
		f.DataType = e.DataType
	}
	if has(FieldEventType) {
		f.EventType = e.EventType
	}
	if has(FieldParameters) {
		f.Parameters = e.Parameters
	}

	if has(FieldRelatedKPIs) {
		f.RelatedKPIs = models.SemicolonList(e.RelatedKPIs)
	}
	if has(FieldRelatedDimensions) {
		f.RelatedDimensions = models.SemicolonList(e.RelatedDimensions)
	}
	if has(FieldDerivedMetrics) {
		f.DerivedMetrics = models.SemicolonList(e.DerivedMetrics)
	}
	if has(FieldDerivedKPIs) {
		f.DerivedKPIs = models.SemicolonList(e.DerivedKPIs)
	}

	if has(FieldDataLayerMapping) {
		f.DataLayerMapping = e.DataLayerMapping
	}
	if has(FieldXDMMapping) {
		f.XDMMapping = e.XDMMapping
	}
	if has(FieldGA4Implementation) {
		f.GA4Implementation = e.GA4Implementation
	}
	if has(FieldAdobeImplementation) {
		f.AdobeImplementation = e.AdobeImplementation
	}
	if has(FieldSQLQuery) {
		f.SQLQuery = e.SQLQuery
	}

	if has(FieldContainsPII) {
		f.ContainsPII = e.ContainsPII
	}
	if has(FieldDataSensitivity) {
		f.DataSensitivity = e.DataSensitivity
	}

	return f
}

// ToPersistedPatch is the inverse of ToFormData. The dependency graph is
// re-encoded; every other field the kind owns is passed through as-is.
// Fields outside the kind's form are left nil so stored values survive.
func ToPersistedPatch(f *FormData, kind models.EntityKind) *models.EntityPatch {
	if f == nil {
		return &models.EntityPatch{}
	}

	deps := depgraph.Encode(f.DependencyGraph)
	p := &models.EntityPatch{
		Name:         ptr(f.Name),
		Description:  ptr(f.Description),
		Category:     ptr(f.Category),
		Tags:         ptr(copyList(f.Tags)),
		Dependencies: &deps,
	}

	has := func(name string) bool { return HasField(kind, name) }

	if has(FieldIndustry) {
		p.Industry = ptr(copyList(f.Industry))
	}
	if has(FieldPriority) {
		p.Priority = ptr(f.Priority)
	}
	if has(FieldScope) {
		p.Scope = ptr(f.Scope)
	}

	if has(FieldFormula) {
		p.Formula = ptr(f.Formula)
	}
	if has(FieldMeasureType) {
		p.MeasureType = ptr(f.MeasureType)
	}
	if has(FieldAggregationWindow) {
		p.AggregationWindow = ptr(f.AggregationWindow)
	}
	if has(FieldDataType) {
		p.DataType = ptr(f.DataType)
	}
	if has(FieldEventType) {
		p.EventType = ptr(f.EventType)
	}
	if has(FieldParameters) {
		p.Parameters = ptr(f.Parameters)
	}

	if has(FieldRelatedKPIs) {
		p.RelatedKPIs = ptr(f.RelatedKPIs)
	}
	if has(FieldRelatedDimensions) {
		p.RelatedDimensions = ptr(f.RelatedDimensions)
	}
	if has(FieldDerivedMetrics) {
		p.DerivedMetrics = ptr(f.DerivedMetrics)
	}
	if has(FieldDerivedKPIs) {
		p.DerivedKPIs = ptr(f.DerivedKPIs)
	}

	if has(FieldDataLayerMapping) {
		p.DataLayerMapping = ptr(f.DataLayerMapping)
	}
	if has(FieldXDMMapping) {
		p.XDMMapping = ptr(f.XDMMapping)
	}
	if has(FieldGA4Implementation) {
		p.GA4Implementation = ptr(f.GA4Implementation)
	}
	if has(FieldAdobeImplementation) {
		p.AdobeImplementation = ptr(f.AdobeImplementation)
	}
	if has(FieldSQLQuery) {
		p.SQLQuery = ptr(f.SQLQuery)
	}

	if has(FieldContainsPII) {
		p.ContainsPII = ptr(f.ContainsPII)
	}
	if has(FieldDataSensitivity) {
		p.DataSensitivity = ptr(f.DataSensitivity)
	}

	return p
}

// AddDependency adds value to category c of the working graph and
// refreshes the raw JSON.
func (f *FormData) AddDependency(c depgraph.Category, value string) {
	f.DependencyGraph = depgraph.AddItem(f.DependencyGraph, c, value)
	f.Dependencies = depgraph.Encode(f.DependencyGraph)
}

// RemoveDependency removes value from category c of the working graph and
// refreshes the raw JSON.
func (f *FormData) RemoveDependency(c depgraph.Category, value string) {
	f.DependencyGraph = depgraph.RemoveItem(f.DependencyGraph, c, value)
	f.Dependencies = depgraph.Encode(f.DependencyGraph)
}

func ptr[T any](v T) *T {
	return &v
}

func copyList(in []string) []string {
	return append([]string{}, in...)
}
