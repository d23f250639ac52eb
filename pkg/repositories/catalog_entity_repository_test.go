//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkpis/catalog-engine/pkg/apperrors"
	"github.com/openkpis/catalog-engine/pkg/database"
	"github.com/openkpis/catalog-engine/pkg/models"
	"github.com/openkpis/catalog-engine/pkg/testhelpers"
)

// catalogTestContext holds test dependencies for catalog repository tests.
type catalogTestContext struct {
	t        *testing.T
	engineDB *testhelpers.EngineDB
	repo     CatalogEntityRepository
	prefix   string
}

func setupCatalogTest(t *testing.T) *catalogTestContext {
	tc := &catalogTestContext{
		t:        t,
		engineDB: testhelpers.GetEngineDB(t),
		repo:     NewCatalogEntityRepository(),
		prefix:   "t-" + uuid.NewString()[:8],
	}
	t.Cleanup(tc.cleanup)
	return tc
}

// cleanup removes rows created by this test through the admin pool.
func (tc *catalogTestContext) cleanup() {
	_, _ = tc.engineDB.Admin.Exec(context.Background(),
		"DELETE FROM catalog_entities WHERE slug LIKE $1", tc.prefix+"%")
}

// as returns a context scoped to userID; empty userID is anonymous.
func (tc *catalogTestContext) as(userID string, editor bool) context.Context {
	tc.t.Helper()
	ctx := context.Background()

	var (
		scope *database.Scope
		err   error
	)
	if userID == "" {
		scope, err = tc.engineDB.DB.WithoutUser(ctx)
	} else {
		scope, err = tc.engineDB.DB.WithUser(ctx, userID, editor)
	}
	require.NoError(tc.t, err)
	tc.t.Cleanup(scope.Close)
	return database.SetScope(ctx, scope)
}

func (tc *catalogTestContext) newEntity(kind models.EntityKind, slug, owner string) *models.CatalogEntity {
	return &models.CatalogEntity{
		Kind:      kind,
		Slug:      tc.prefix + "-" + slug,
		Name:      "Entity " + slug,
		CreatedBy: owner,
	}
}

func TestCatalogEntityRepository_CreateAndGet(t *testing.T) {
	tc := setupCatalogTest(t)
	ctx := tc.as("alice", false)

	e := tc.newEntity(models.KindEvent, "purchase", "alice")
	e.Tags = []string{"ecommerce"}
	e.RelatedDimensions = json.RawMessage(`"country;device"`)
	e.DerivedMetrics = json.RawMessage(`["revenue","orders"]`)
	e.Dependencies = `{"Events":[],"Metrics":["revenue"],"Dimensions":[],"KPIs":[]}`
	require.NoError(t, tc.repo.Create(ctx, e))

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, models.StatusDraft, e.Status)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := tc.repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Slug, got.Slug)
	assert.Equal(t, []string{"ecommerce"}, got.Tags)
	assert.Equal(t, []string{}, got.Industry)
	assert.Equal(t, "country;device", models.SemicolonList(got.RelatedDimensions))
	assert.Equal(t, "revenue;orders", models.SemicolonList(got.DerivedMetrics))
	assert.Nil(t, got.RelatedKPIs)
	assert.Equal(t, e.Dependencies, got.Dependencies)

	bySlug, err := tc.repo.GetBySlug(ctx, models.KindEvent, e.Slug)
	require.NoError(t, err)
	assert.Equal(t, e.ID, bySlug.ID)
}

func TestCatalogEntityRepository_DuplicateSlugConflicts(t *testing.T) {
	tc := setupCatalogTest(t)
	ctx := tc.as("alice", false)

	require.NoError(t, tc.repo.Create(ctx, tc.newEntity(models.KindKPI, "aov", "alice")))
	err := tc.repo.Create(ctx, tc.newEntity(models.KindKPI, "aov", "alice"))
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// same slug under a different kind is fine
	assert.NoError(t, tc.repo.Create(ctx, tc.newEntity(models.KindMetric, "aov", "alice")))
}

func TestCatalogEntityRepository_DraftVisibility(t *testing.T) {
	tc := setupCatalogTest(t)

	draft := tc.newEntity(models.KindKPI, "draft", "alice")
	require.NoError(t, tc.repo.Create(tc.as("alice", false), draft))

	_, err := tc.repo.GetByID(tc.as("bob", false), draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "other users must not see drafts")

	_, err = tc.repo.GetByID(tc.as("", false), draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "anonymous must not see drafts")

	_, err = tc.repo.GetByID(tc.as("erin", true), draft.ID)
	assert.NoError(t, err, "editors see drafts")

	require.NoError(t, tc.repo.SetStatus(tc.as("erin", true), draft.ID, models.StatusPublished, "erin"))

	published, err := tc.repo.GetByID(tc.as("", false), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, published.Status)
	assert.Equal(t, "erin", published.LastModifiedBy)
}

func TestCatalogEntityRepository_CannotCreateForSomeoneElse(t *testing.T) {
	tc := setupCatalogTest(t)

	err := tc.repo.Create(tc.as("mallory", false), tc.newEntity(models.KindKPI, "spoof", "alice"))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCatalogEntityRepository_Update(t *testing.T) {
	tc := setupCatalogTest(t)
	ctx := tc.as("alice", false)

	e := tc.newEntity(models.KindMetric, "sessions", "alice")
	require.NoError(t, tc.repo.Create(ctx, e))

	e.Formula = "count(distinct session_id)"
	e.SQLQuery = "SELECT 1"
	e.RelatedKPIs = json.RawMessage(`"conversion-rate"`)
	e.LastModifiedBy = "alice"
	before := e.LastModifiedAt
	require.NoError(t, tc.repo.Update(ctx, e))

	got, err := tc.repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "count(distinct session_id)", got.Formula)
	assert.Equal(t, "conversion-rate", models.SemicolonList(got.RelatedKPIs))
	assert.False(t, got.LastModifiedAt.Before(before))

	missing := tc.newEntity(models.KindMetric, "missing", "alice")
	missing.ID = uuid.New()
	assert.ErrorIs(t, tc.repo.Update(ctx, missing), apperrors.ErrNotFound)
}

func TestCatalogEntityRepository_ListFilters(t *testing.T) {
	tc := setupCatalogTest(t)
	alice := tc.as("alice", false)

	a := tc.newEntity(models.KindKPI, "conversion", "alice")
	a.Name = "Conversion Rate"
	a.Category = "Conversion"
	b := tc.newEntity(models.KindKPI, "aov", "alice")
	b.Name = "Average Order Value"
	b.Category = "Revenue"
	b.Description = "100% of orders"
	for _, e := range []*models.CatalogEntity{a, b} {
		require.NoError(t, tc.repo.Create(alice, e))
	}
	require.NoError(t, tc.repo.SetStatus(tc.as("erin", true), b.ID, models.StatusPublished, "erin"))

	list, err := tc.repo.List(alice, models.KindKPI, ListFilter{Query: tc.prefix})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, "Average Order Value", list[0].Name, "ordered by name")

	list, err = tc.repo.List(alice, models.KindKPI, ListFilter{Query: tc.prefix, Status: models.StatusPublished})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	list, err = tc.repo.List(alice, models.KindKPI, ListFilter{Query: tc.prefix, Category: "Conversion"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	// % is matched literally
	list, err = tc.repo.List(alice, models.KindKPI, ListFilter{Query: "100%"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	anon, err := tc.repo.List(tc.as("", false), models.KindKPI, ListFilter{Query: tc.prefix})
	require.NoError(t, err)
	assert.Len(t, anon, 1)

	limited, err := tc.repo.List(alice, models.KindKPI, ListFilter{Query: tc.prefix, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Conversion Rate", limited[0].Name)
}

func TestCatalogEntityRepository_ExistingSlugs(t *testing.T) {
	tc := setupCatalogTest(t)
	ctx := tc.as("alice", false)

	e := tc.newEntity(models.KindMetric, "revenue", "alice")
	require.NoError(t, tc.repo.Create(ctx, e))

	found, err := tc.repo.ExistingSlugs(ctx, models.KindMetric, []string{e.Slug, tc.prefix + "-nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{e.Slug: true}, found)

	empty, err := tc.repo.ExistingSlugs(ctx, models.KindMetric, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCatalogEntityRepository_Delete(t *testing.T) {
	tc := setupCatalogTest(t)
	ctx := tc.as("alice", false)

	e := tc.newEntity(models.KindDimension, "country", "alice")
	require.NoError(t, tc.repo.Create(ctx, e))

	require.NoError(t, tc.repo.Delete(ctx, e.ID))
	assert.ErrorIs(t, tc.repo.Delete(ctx, e.ID), apperrors.ErrNotFound)

	_, err := tc.repo.GetByID(ctx, e.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogEntityRepository_RequiresScope(t *testing.T) {
	repo := NewCatalogEntityRepository()
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "no database scope")
}
