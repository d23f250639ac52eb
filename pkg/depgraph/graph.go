// Package depgraph encodes the per-entity dependency record: four fixed
// categories (Events, Metrics, Dimensions, KPIs), each an ordered list of
// referenced slugs without duplicates. The record is persisted as JSON text.
package depgraph

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/openkpis/catalog-engine/pkg/jsonutil"
	"github.com/openkpis/catalog-engine/pkg/models"
)

// Category names one of the four dependency lists.
type Category string

const (
	CategoryEvents     Category = "Events"
	CategoryMetrics    Category = "Metrics"
	CategoryDimensions Category = "Dimensions"
	CategoryKPIs       Category = "KPIs"
)

// Categories returns the four categories in their serialized order.
func Categories() []Category {
	return []Category{CategoryEvents, CategoryMetrics, CategoryDimensions, CategoryKPIs}
}

// IsValid returns true for the four fixed categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryEvents, CategoryMetrics, CategoryDimensions, CategoryKPIs:
		return true
	default:
		return false
	}
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, true
		}
	}
	return "", false
}

// CategoryForKind returns the category that references entities of kind.
// Dashboards are not referenced by dependency records.
func CategoryForKind(kind models.EntityKind) (Category, bool) {
	switch kind {
	case models.KindEvent:
		return CategoryEvents, true
	case models.KindMetric:
		return CategoryMetrics, true
	case models.KindDimension:
		return CategoryDimensions, true
	case models.KindKPI:
		return CategoryKPIs, true
	default:
		return "", false
	}
}

// KindForCategory is the inverse of CategoryForKind.
func KindForCategory(c Category) (models.EntityKind, bool) {
	switch c {
	case CategoryEvents:
		return models.KindEvent, true
	case CategoryMetrics:
		return models.KindMetric, true
	case CategoryDimensions:
		return models.KindDimension, true
	case CategoryKPIs:
		return models.KindKPI, true
	default:
		return "", false
	}
}

// Graph is the decoded dependency record. Field order matches the
// serialized key order.
type Graph struct {
	Events     []string `json:"Events"`
	Metrics    []string `json:"Metrics"`
	Dimensions []string `json:"Dimensions"`
	KPIs       []string `json:"KPIs"`
}

// Empty returns a graph with all four lists present and empty.
func Empty() Graph {
	return Graph{
		Events:     []string{},
		Metrics:    []string{},
		Dimensions: []string{},
		KPIs:       []string{},
	}
}

// Decode parses raw into a Graph. It never fails: missing, malformed or
// non-object input yields Empty(), and a key whose value is not an array
// yields an empty list for that category.
func Decode(raw string) Graph {
	g := Empty()

	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return g
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return g
	}

	for _, c := range Categories() {
		*g.list(c) = decodeList(obj[string(c)])
	}
	return g
}

func decodeList(raw json.RawMessage) []string {
	out := []string{}
	if !jsonutil.IsJSONArray(raw) {
		return out
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return out
	}
	for _, e := range elems {
		out = appendRef(out, jsonutil.FlexibleStringValue(e))
	}
	return out
}

// appendRef adds v to list unless it is blank or already present.
func appendRef(list []string, v string) []string {
	if strings.TrimSpace(v) == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

// Canonical returns a copy of g with blank entries and duplicates removed,
// keeping first occurrences in order. Decode always yields canonical graphs.
func Canonical(g Graph) Graph {
	out := Empty()
	for _, c := range Categories() {
		dst := out.list(c)
		for _, v := range *g.list(c) {
			*dst = appendRef(*dst, v)
		}
	}
	return out
}

// Encode serializes the canonical form of g as compact JSON with keys in
// fixed order. Empty categories are written as [] rather than null, and
// &, < and > are written literally.
func Encode(g Graph) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Canonical(g)); err != nil {
		// encoding a struct of string slices does not fail
		return `{"Events":[],"Metrics":[],"Dimensions":[],"KPIs":[]}`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Get returns a copy of the list for category c, nil for an unknown category.
func (g Graph) Get(c Category) []string {
	if !c.IsValid() {
		return nil
	}
	cp := g.Clone()
	return *cp.list(c)
}

// Clone returns a deep copy with no nil lists.
func (g Graph) Clone() Graph {
	return Graph{
		Events:     append([]string{}, g.Events...),
		Metrics:    append([]string{}, g.Metrics...),
		Dimensions: append([]string{}, g.Dimensions...),
		KPIs:       append([]string{}, g.KPIs...),
	}
}

// IsEmpty returns true when no category holds a reference.
func (g Graph) IsEmpty() bool {
	return len(g.Events) == 0 && len(g.Metrics) == 0 && len(g.Dimensions) == 0 && len(g.KPIs) == 0
}

// Len returns the total number of references.
func (g Graph) Len() int {
	return len(g.Events) + len(g.Metrics) + len(g.Dimensions) + len(g.KPIs)
}

// AddItem returns a copy of g with value appended to category c.
// Blank values, values already present (exact match) and unknown
// categories leave the copy unchanged. value is stored trimmed.
func AddItem(g Graph, c Category, value string) Graph {
	out := g.Clone()
	value = strings.TrimSpace(value)
	if value == "" || !c.IsValid() {
		return out
	}

	list := out.list(c)
	if slices.Contains(*list, value) {
		return out
	}
	*list = append(*list, value)
	return out
}

// RemoveItem returns a copy of g without value in category c.
func RemoveItem(g Graph, c Category, value string) Graph {
	out := g.Clone()
	if !c.IsValid() {
		return out
	}

	list := out.list(c)
	*list = slices.DeleteFunc(*list, func(v string) bool { return v == value })
	return out
}

func (g *Graph) list(c Category) *[]string {
	switch c {
	case CategoryEvents:
		return &g.Events
	case CategoryMetrics:
		return &g.Metrics
	case CategoryDimensions:
		return &g.Dimensions
	default:
		return &g.KPIs
	}
}
