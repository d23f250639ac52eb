package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestSemicolonList_AcceptsBothRepresentations(t *testing.T) {
	assert.Equal(t, "a;b", SemicolonList(json.RawMessage(`"a;b"`)))
	assert.Equal(t, "a;b", SemicolonList(json.RawMessage(`["a","b"]`)))
	assert.Equal(t, "", SemicolonList(nil))
}

func TestSemicolonListRaw(t *testing.T) {
	assert.Equal(t, json.RawMessage(`"a;b"`), SemicolonListRaw("a;b"))
	assert.Nil(t, SemicolonListRaw(""))
}

func TestSemicolonItems(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SemicolonItems(json.RawMessage(`"a; b"`)))
	assert.Equal(t, []string{"a", "b"}, SemicolonItems(json.RawMessage(`["a","b"]`)))
}

func TestApplyPatch_OnlyTouchesSetFields(t *testing.T) {
	e := &CatalogEntity{
		Name:              "Conversion Rate",
		Description:       "old",
		Formula:           "orders / sessions",
		RelatedDimensions: json.RawMessage(`["device","country"]`),
		Tags:              []string{"ecommerce"},
	}
	tags := []string{"funnel"}
	pii := true

	e.ApplyPatch(&EntityPatch{
		Description:       strPtr("new"),
		RelatedDimensions: strPtr("device;country"),
		Tags:              &tags,
		ContainsPII:       &pii,
	})

	assert.Equal(t, "Conversion Rate", e.Name)
	assert.Equal(t, "new", e.Description)
	assert.Equal(t, "orders / sessions", e.Formula)
	assert.Equal(t, json.RawMessage(`"device;country"`), e.RelatedDimensions)
	assert.Equal(t, []string{"funnel"}, e.Tags)
	assert.True(t, e.ContainsPII)

	// patch slices are copied, not aliased
	tags[0] = "changed"
	assert.Equal(t, []string{"funnel"}, e.Tags)
}

func TestApplyPatch_Nil(t *testing.T) {
	e := &CatalogEntity{Name: "x"}
	e.ApplyPatch(nil)
	assert.Equal(t, "x", e.Name)
}

func TestIsDraft(t *testing.T) {
	assert.True(t, (&CatalogEntity{}).IsDraft())
	assert.True(t, (&CatalogEntity{Status: StatusDraft}).IsDraft())
	assert.False(t, (&CatalogEntity{Status: StatusPublished}).IsDraft())
}
