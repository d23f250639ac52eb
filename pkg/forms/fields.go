// Package forms projects stored catalog entities into flat editable form
// records and back into persistence patches.
//
// Which fields a form shows is driven by a static table. Each field lists
// the kinds it applies to; the table is expanded once at package init into
// an explicit field list per kind.
package forms

import (
	"slices"

	"github.com/openkpis/catalog-engine/pkg/models"
)

// Section groups fields into tabs of the edit form.
type Section int

const (
	SectionBasic Section = iota
	SectionDefinition
	SectionRelationships
	SectionDataMappings
	SectionSQL
	SectionGovernance
)

var sectionNames = map[Section]string{
	SectionBasic:         "Basic Info",
	SectionDefinition:    "Definition",
	SectionRelationships: "Relationships",
	SectionDataMappings:  "Data Mappings",
	SectionSQL:           "SQL",
	SectionGovernance:    "Governance",
}

// String returns the tab title for s.
func (s Section) String() string {
	return sectionNames[s]
}

// InputType is the editor widget a field renders with.
type InputType string

const (
	InputText         InputType = "text"
	InputTextarea     InputType = "textarea"
	InputSelect       InputType = "select"
	InputMultiSelect  InputType = "multiselect"
	InputTags         InputType = "tags"
	InputSemicolon    InputType = "semicolon"
	InputJSON         InputType = "json"
	InputCode         InputType = "code"
	InputSQL          InputType = "sql"
	InputCheckbox     InputType = "checkbox"
	InputDependencies InputType = "dependencies"
)

// Field names shared between the table, FormData JSON tags and the
// storage columns.
const (
	FieldName                = "name"
	FieldDescription         = "description"
	FieldCategory            = "category"
	FieldTags                = "tags"
	FieldDependencies        = "dependencies"
	FieldIndustry            = "industry"
	FieldPriority            = "priority"
	FieldScope               = "scope"
	FieldFormula             = "formula"
	FieldMeasureType         = "measure_type"
	FieldAggregationWindow   = "aggregation_window"
	FieldDataType            = "data_type"
	FieldEventType           = "event_type"
	FieldParameters          = "parameters"
	FieldRelatedKPIs         = "related_kpis"
	FieldRelatedDimensions   = "related_dimensions"
	FieldDerivedMetrics      = "derived_metrics"
	FieldDerivedKPIs         = "derived_kpis"
	FieldDataLayerMapping    = "data_layer_mapping"
	FieldXDMMapping          = "xdm_mapping"
	FieldGA4Implementation   = "ga4_implementation"
	FieldAdobeImplementation = "adobe_implementation"
	FieldSQLQuery            = "sql_query"
	FieldContainsPII         = "contains_pii"
	FieldDataSensitivity     = "data_sensitivity"
)

// FieldConfig describes one editable field. A nil Kinds list means the
// field applies to every kind.
type FieldConfig struct {
	Name    string              `json:"name"`
	Label   string              `json:"label"`
	Section Section             `json:"section"`
	Input   InputType           `json:"input"`
	Options string              `json:"options,omitempty"` // key into the option table
	Kinds   []models.EntityKind `json:"kinds,omitempty"`
}

var (
	tracked  = []models.EntityKind{models.KindKPI, models.KindMetric, models.KindDimension, models.KindEvent}
	measured = []models.EntityKind{models.KindKPI, models.KindMetric}
)

func kinds(k ...models.EntityKind) []models.EntityKind { return k }

var fieldTable = []FieldConfig{
	{Name: FieldName, Label: "Name", Section: SectionBasic, Input: InputText},
	{Name: FieldDescription, Label: "Description", Section: SectionBasic, Input: InputTextarea},
	{Name: FieldCategory, Label: "Category", Section: SectionBasic, Input: InputSelect, Options: "categories"},
	{Name: FieldTags, Label: "Tags", Section: SectionBasic, Input: InputTags},
	{Name: FieldIndustry, Label: "Industry", Section: SectionBasic, Input: InputMultiSelect, Options: "industries", Kinds: tracked},
	{Name: FieldPriority, Label: "Priority", Section: SectionBasic, Input: InputSelect, Options: "priorities", Kinds: measured},
	{Name: FieldScope, Label: "Scope", Section: SectionBasic, Input: InputSelect, Options: "scopes", Kinds: tracked},

	{Name: FieldFormula, Label: "Formula", Section: SectionDefinition, Input: InputTextarea, Kinds: measured},
	{Name: FieldMeasureType, Label: "Measure Type", Section: SectionDefinition, Input: InputSelect, Options: "measure_types", Kinds: measured},
	{Name: FieldAggregationWindow, Label: "Aggregation Window", Section: SectionDefinition, Input: InputText, Kinds: measured},
	{Name: FieldDataType, Label: "Data Type", Section: SectionDefinition, Input: InputSelect, Options: "data_types", Kinds: kinds(models.KindDimension)},
	{Name: FieldEventType, Label: "Event Type", Section: SectionDefinition, Input: InputSelect, Options: "event_types", Kinds: kinds(models.KindEvent)},
	{Name: FieldParameters, Label: "Parameters", Section: SectionDefinition, Input: InputTextarea, Kinds: kinds(models.KindEvent)},

	{Name: FieldDependencies, Label: "Dependencies", Section: SectionRelationships, Input: InputDependencies},
	{Name: FieldRelatedKPIs, Label: "Related KPIs", Section: SectionRelationships, Input: InputSemicolon, Kinds: kinds(models.KindMetric, models.KindDimension, models.KindEvent)},
	{Name: FieldRelatedDimensions, Label: "Related Dimensions", Section: SectionRelationships, Input: InputSemicolon, Kinds: kinds(models.KindKPI, models.KindMetric, models.KindEvent)},
	{Name: FieldDerivedMetrics, Label: "Derived Metrics", Section: SectionRelationships, Input: InputSemicolon, Kinds: kinds(models.KindDimension, models.KindEvent)},
	{Name: FieldDerivedKPIs, Label: "Derived KPIs", Section: SectionRelationships, Input: InputSemicolon, Kinds: kinds(models.KindMetric, models.KindEvent)},

	{Name: FieldDataLayerMapping, Label: "Data Layer Mapping", Section: SectionDataMappings, Input: InputJSON, Kinds: kinds(models.KindKPI, models.KindMetric, models.KindEvent)},
	{Name: FieldXDMMapping, Label: "Adobe XDM Mapping", Section: SectionDataMappings, Input: InputJSON, Kinds: tracked},
	{Name: FieldGA4Implementation, Label: "GA4 Implementation", Section: SectionDataMappings, Input: InputCode, Kinds: tracked},
	{Name: FieldAdobeImplementation, Label: "Adobe Implementation", Section: SectionDataMappings, Input: InputCode, Kinds: tracked},

	{Name: FieldSQLQuery, Label: "SQL Query", Section: SectionSQL, Input: InputSQL, Kinds: kinds(models.KindKPI, models.KindMetric, models.KindDimension)},

	{Name: FieldContainsPII, Label: "Contains PII", Section: SectionGovernance, Input: InputCheckbox, Kinds: tracked},
	{Name: FieldDataSensitivity, Label: "Data Sensitivity", Section: SectionGovernance, Input: InputSelect, Options: "data_sensitivities", Kinds: tracked},
}

// fieldsByKind is the table expanded per kind, built once.
var fieldsByKind = buildFieldIndex()

func buildFieldIndex() map[models.EntityKind][]FieldConfig {
	index := make(map[models.EntityKind][]FieldConfig, len(models.AllKinds))
	for _, kind := range models.AllKinds {
		for _, f := range fieldTable {
			if ShouldShowField(f, kind) {
				index[kind] = append(index[kind], f)
			}
		}
	}
	return index
}

// ShouldShowField reports whether f is visible for kind. A field without a
// kind list is always shown.
func ShouldShowField(f FieldConfig, kind models.EntityKind) bool {
	if len(f.Kinds) == 0 {
		return true
	}
	return slices.Contains(f.Kinds, kind)
}

// Fields returns a copy of the full field table.
func Fields() []FieldConfig {
	return slices.Clone(fieldTable)
}

// FieldsForKind returns the fields visible for kind in table order.
// Unknown kinds get only the fields that apply to every kind.
func FieldsForKind(kind models.EntityKind) []FieldConfig {
	if fields, ok := fieldsByKind[kind]; ok {
		return slices.Clone(fields)
	}
	var common []FieldConfig
	for _, f := range fieldTable {
		if len(f.Kinds) == 0 {
			common = append(common, f)
		}
	}
	return common
}

// FieldsInSection filters FieldsForKind(kind) to one section.
func FieldsInSection(kind models.EntityKind, s Section) []FieldConfig {
	var out []FieldConfig
	for _, f := range FieldsForKind(kind) {
		if f.Section == s {
			out = append(out, f)
		}
	}
	return out
}

// Field looks up a field by name.
func Field(name string) (FieldConfig, bool) {
	for _, f := range fieldTable {
		if f.Name == name {
			return f, true
		}
	}
	return FieldConfig{}, false
}

// HasField reports whether kind's form includes the named field.
func HasField(kind models.EntityKind, name string) bool {
	f, ok := Field(name)
	if !ok {
		return false
	}
	if !kind.IsValid() {
		return len(f.Kinds) == 0
	}
	return ShouldShowField(f, kind)
}
