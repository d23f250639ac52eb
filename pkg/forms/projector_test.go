package forms

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkpis/catalog-engine/pkg/depgraph"
	"github.com/openkpis/catalog-engine/pkg/models"
)

func TestToFormData_KPIMissingTags(t *testing.T) {
	e := &models.CatalogEntity{
		ID:   uuid.New(),
		Kind: models.KindKPI,
		Name: "Conversion Rate",
	}

	f := ToFormData(e, models.KindKPI)

	require.NotNil(t, f.Tags)
	assert.Equal(t, []string{}, f.Tags)
	assert.Equal(t, "", f.Description)
	assert.Equal(t, depgraph.Empty(), f.DependencyGraph)
}

func TestToFormData_NilEntity(t *testing.T) {
	f := ToFormData(nil, models.KindMetric)

	assert.Equal(t, models.KindMetric, f.Kind)
	assert.Equal(t, []string{}, f.Tags)
	assert.Equal(t, depgraph.Empty(), f.DependencyGraph)
}

func TestToFormData_EventSemicolonListsAgree(t *testing.T) {
	asString := &models.CatalogEntity{Kind: models.KindEvent, RelatedDimensions: json.RawMessage(`"a;b"`)}
	asArray := &models.CatalogEntity{Kind: models.KindEvent, RelatedDimensions: json.RawMessage(`["a","b"]`)}

	fromString := ToFormData(asString, models.KindEvent)
	fromArray := ToFormData(asArray, models.KindEvent)

	assert.Equal(t, "a;b", fromString.RelatedDimensions)
	assert.Equal(t, fromString.RelatedDimensions, fromArray.RelatedDimensions)
}

func TestToFormData_KindSubsets(t *testing.T) {
	e := &models.CatalogEntity{
		Name:              "Purchase",
		Formula:           "sum(revenue)",
		MeasureType:       "Sum",
		SQLQuery:          "SELECT 1",
		EventType:         "Ecommerce",
		Parameters:        "value, currency",
		DataType:          "String",
		RelatedDimensions: json.RawMessage(`["country"]`),
		DerivedMetrics:    json.RawMessage(`"revenue;orders"`),
		Priority:          "High",
	}

	kpi := ToFormData(e, models.KindKPI)
	assert.Equal(t, "sum(revenue)", kpi.Formula)
	assert.Equal(t, "Sum", kpi.MeasureType)
	assert.Equal(t, "SELECT 1", kpi.SQLQuery)
	assert.Equal(t, "High", kpi.Priority)
	assert.Empty(t, kpi.EventType)
	assert.Empty(t, kpi.DataType)
	assert.Empty(t, kpi.DerivedMetrics)

	event := ToFormData(e, models.KindEvent)
	assert.Equal(t, "Ecommerce", event.EventType)
	assert.Equal(t, "value, currency", event.Parameters)
	assert.Equal(t, "revenue;orders", event.DerivedMetrics)
	assert.Empty(t, event.Formula)
	assert.Empty(t, event.SQLQuery)

	dim := ToFormData(e, models.KindDimension)
	assert.Equal(t, "String", dim.DataType)
	assert.Equal(t, "SELECT 1", dim.SQLQuery)
	assert.Empty(t, dim.Formula)

	dash := ToFormData(e, models.KindDashboard)
	assert.Equal(t, "Purchase", dash.Name)
	assert.Empty(t, dash.Formula)
	assert.Empty(t, dash.SQLQuery)
	assert.Empty(t, dash.RelatedDimensions)
	assert.Empty(t, dash.Priority)
}

func TestToFormData_DecodesDependencies(t *testing.T) {
	raw := `{"Events":["purchase"],"Metrics":["revenue"],"Dimensions":[],"KPIs":[]}`
	f := ToFormData(&models.CatalogEntity{Dependencies: raw}, models.KindKPI)

	assert.Equal(t, raw, f.Dependencies)
	assert.Equal(t, []string{"purchase"}, f.DependencyGraph.Events)
	assert.Equal(t, []string{"revenue"}, f.DependencyGraph.Metrics)
}

func TestToFormData_MalformedDependencies(t *testing.T) {
	f := ToFormData(&models.CatalogEntity{Dependencies: "{broken"}, models.KindKPI)

	assert.Equal(t, "{broken", f.Dependencies)
	assert.Equal(t, depgraph.Empty(), f.DependencyGraph)
}

func TestToFormData_PassesThroughIdentity(t *testing.T) {
	id := uuid.New()
	e := &models.CatalogEntity{ID: id, Slug: "aov", Status: models.StatusPublished}

	f := ToFormData(e, models.KindKPI)
	assert.Equal(t, id, f.ID)
	assert.Equal(t, "aov", f.Slug)
	assert.Equal(t, models.StatusPublished, f.Status)
}

func TestToFormData_DoesNotAliasEntitySlices(t *testing.T) {
	e := &models.CatalogEntity{Tags: []string{"a"}, Industry: []string{"SaaS"}}
	f := ToFormData(e, models.KindKPI)

	f.Tags[0] = "changed"
	f.Industry[0] = "changed"
	assert.Equal(t, []string{"a"}, e.Tags)
	assert.Equal(t, []string{"SaaS"}, e.Industry)
}

func TestRoundTrip_NoEditsIsIdempotent(t *testing.T) {
	deps := `{"Events":["purchase"],"Metrics":[],"Dimensions":["country"],"KPIs":[]}`
	e := &models.CatalogEntity{
		Kind:              models.KindEvent,
		Name:              "Purchase",
		Dependencies:      deps,
		RelatedDimensions: json.RawMessage(`"country; device"`),
		DerivedMetrics:    json.RawMessage(`["revenue","orders"]`),
		EventType:         "Ecommerce",
	}

	patch := ToPersistedPatch(ToFormData(e, models.KindEvent), models.KindEvent)

	require.NotNil(t, patch.Dependencies)
	assert.Equal(t, deps, *patch.Dependencies)
	require.NotNil(t, patch.RelatedDimensions)
	assert.Equal(t, "country; device", *patch.RelatedDimensions)
	require.NotNil(t, patch.DerivedMetrics)
	assert.Equal(t, "revenue;orders", *patch.DerivedMetrics)

	// applying the patch and projecting again is a fixed point
	e.ApplyPatch(patch)
	again := ToPersistedPatch(ToFormData(e, models.KindEvent), models.KindEvent)
	assert.Equal(t, patch, again)
}

func TestRoundTrip_SpecialCharactersStayByteIdentical(t *testing.T) {
	deps := `{"Events":["Add to Cart & Checkout"],"Metrics":["Revenue <USD>"],"Dimensions":[],"KPIs":["a>b"]}`
	e := &models.CatalogEntity{Kind: models.KindMetric, Name: "Revenue", Dependencies: deps}

	patch := ToPersistedPatch(ToFormData(e, models.KindMetric), models.KindMetric)

	require.NotNil(t, patch.Dependencies)
	assert.Equal(t, deps, *patch.Dependencies)
}

func TestToPersistedPatch_CanonicalizesSubmittedGraph(t *testing.T) {
	var f FormData
	require.NoError(t, json.Unmarshal([]byte(`{"dependency_graph":{"Events":["a","a","  ",""]}}`), &f))

	p := ToPersistedPatch(&f, models.KindEvent)

	require.NotNil(t, p.Dependencies)
	assert.Equal(t, `{"Events":["a"],"Metrics":[],"Dimensions":[],"KPIs":[]}`, *p.Dependencies)
	assert.Equal(t, *p.Dependencies, depgraph.Encode(depgraph.Decode(*p.Dependencies)))
}

func TestToPersistedPatch_ReencodesWorkingGraph(t *testing.T) {
	f := ToFormData(&models.CatalogEntity{Name: "AOV"}, models.KindKPI)
	f.AddDependency(depgraph.CategoryMetrics, "revenue")
	f.AddDependency(depgraph.CategoryMetrics, "orders")
	f.AddDependency(depgraph.CategoryMetrics, "revenue")
	f.RemoveDependency(depgraph.CategoryMetrics, "orders")

	assert.Equal(t, `{"Events":[],"Metrics":["revenue"],"Dimensions":[],"KPIs":[]}`, f.Dependencies)

	p := ToPersistedPatch(f, models.KindKPI)
	require.NotNil(t, p.Dependencies)
	assert.Equal(t, f.Dependencies, *p.Dependencies)
}

func TestToPersistedPatch_GraphWinsOverRawString(t *testing.T) {
	f := &FormData{
		Dependencies:    `{"Events":["stale"]}`,
		DependencyGraph: depgraph.AddItem(depgraph.Empty(), depgraph.CategoryEvents, "fresh"),
	}

	p := ToPersistedPatch(f, models.KindDashboard)
	assert.Equal(t, `{"Events":["fresh"],"Metrics":[],"Dimensions":[],"KPIs":[]}`, *p.Dependencies)
}

func TestToPersistedPatch_OnlyKindFields(t *testing.T) {
	f := &FormData{
		Name:      "Page View",
		EventType: "Standard",
		Formula:   "should not leak",
		SQLQuery:  "SELECT 1",
	}

	p := ToPersistedPatch(f, models.KindEvent)
	require.NotNil(t, p.EventType)
	assert.Equal(t, "Standard", *p.EventType)
	assert.Nil(t, p.Formula)
	assert.Nil(t, p.SQLQuery)

	dash := ToPersistedPatch(f, models.KindDashboard)
	assert.NotNil(t, dash.Name)
	assert.NotNil(t, dash.Tags)
	assert.Nil(t, dash.EventType)
	assert.Nil(t, dash.RelatedDimensions)
}

func TestToPersistedPatch_Nil(t *testing.T) {
	assert.Equal(t, &models.EntityPatch{}, ToPersistedPatch(nil, models.KindKPI))
}
