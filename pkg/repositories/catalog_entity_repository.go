package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openkpis/catalog-engine/pkg/apperrors"
	"github.com/openkpis/catalog-engine/pkg/database"
	"github.com/openkpis/catalog-engine/pkg/models"
)

// Postgres SQLSTATE codes mapped to domain errors.
const (
	pgUniqueViolation       = "23505"
	pgInsufficientPrivilege = "42501" // also raised for RLS WITH CHECK failures
)

// ListFilter narrows a catalog listing. Zero values do not filter.
type ListFilter struct {
	Status    models.EntityStatus
	Category  string
	Query     string // case-insensitive match on slug, name or description
	CreatedBy string
	Limit     int
	Offset    int
}

// CatalogEntityRepository provides data access for catalog entities.
// Row visibility follows the database scope in ctx: anonymous scopes only
// see published rows.
type CatalogEntityRepository interface {
	Create(ctx context.Context, e *models.CatalogEntity) error
	Update(ctx context.Context, e *models.CatalogEntity) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogEntity, error)
	GetBySlug(ctx context.Context, kind models.EntityKind, slug string) (*models.CatalogEntity, error)
	List(ctx context.Context, kind models.EntityKind, filter ListFilter) ([]*models.CatalogEntity, error)
	ExistingSlugs(ctx context.Context, kind models.EntityKind, slugs []string) (map[string]bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.EntityStatus, modifiedBy string) error
}

type catalogEntityRepository struct{}

// NewCatalogEntityRepository creates a new CatalogEntityRepository.
func NewCatalogEntityRepository() CatalogEntityRepository {
	return &catalogEntityRepository{}
}

var _ CatalogEntityRepository = (*catalogEntityRepository)(nil)

const entityColumns = `
	id, kind, slug, name, description, category, tags, industry, priority, scope, status,
	formula, measure_type, aggregation_window, data_type, event_type, parameters,
	related_kpis, related_dimensions, derived_metrics, derived_kpis, dependencies,
	data_layer_mapping, xdm_mapping, ga4_implementation, adobe_implementation, sql_query,
	contains_pii, data_sensitivity,
	created_by, created_at, last_modified_by, last_modified_at`

func conn(ctx context.Context) (*database.Scope, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}
	return scope, nil
}

// ============================================================================
// CRUD Operations
// ============================================================================

func (r *catalogEntityRepository) Create(ctx context.Context, e *models.CatalogEntity) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if e.Status == "" {
		e.Status = models.StatusDraft
	}

	query := `
		INSERT INTO catalog_entities (
			kind, slug, name, description, category, tags, industry, priority, scope, status,
			formula, measure_type, aggregation_window, data_type, event_type, parameters,
			related_kpis, related_dimensions, derived_metrics, derived_kpis, dependencies,
			data_layer_mapping, xdm_mapping, ga4_implementation, adobe_implementation, sql_query,
			contains_pii, data_sensitivity,
			created_by, created_at, last_modified_by, last_modified_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26,
			$27, $28,
			$29, $30, $31, $30
		)
		RETURNING id, created_at, last_modified_at`

	err = scope.Conn.QueryRow(ctx, query,
		e.Kind, e.Slug, e.Name, e.Description, e.Category,
		nonNilList(e.Tags), nonNilList(e.Industry), e.Priority, e.Scope, e.Status,
		e.Formula, e.MeasureType, e.AggregationWindow, e.DataType, e.EventType, e.Parameters,
		jsonbRaw(e.RelatedKPIs), jsonbRaw(e.RelatedDimensions), jsonbRaw(e.DerivedMetrics), jsonbRaw(e.DerivedKPIs),
		e.Dependencies,
		e.DataLayerMapping, e.XDMMapping, e.GA4Implementation, e.AdobeImplementation, e.SQLQuery,
		e.ContainsPII, e.DataSensitivity,
		e.CreatedBy, now, e.LastModifiedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.LastModifiedAt)
	if err != nil {
		return mapWriteError("create catalog entity", err)
	}

	return nil
}

// Update writes every editable column of e. Kind, slug, status and
// creator are not changed here.
func (r *catalogEntityRepository) Update(ctx context.Context, e *models.CatalogEntity) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE catalog_entities
		SET name = $2, description = $3, category = $4, tags = $5, industry = $6,
		    priority = $7, scope = $8,
		    formula = $9, measure_type = $10, aggregation_window = $11, data_type = $12,
		    event_type = $13, parameters = $14,
		    related_kpis = $15, related_dimensions = $16, derived_metrics = $17, derived_kpis = $18,
		    dependencies = $19,
		    data_layer_mapping = $20, xdm_mapping = $21, ga4_implementation = $22,
		    adobe_implementation = $23, sql_query = $24,
		    contains_pii = $25, data_sensitivity = $26,
		    last_modified_by = $27, last_modified_at = $28
		WHERE id = $1
		RETURNING last_modified_at`

	err = scope.Conn.QueryRow(ctx, query,
		e.ID,
		e.Name, e.Description, e.Category, nonNilList(e.Tags), nonNilList(e.Industry),
		e.Priority, e.Scope,
		e.Formula, e.MeasureType, e.AggregationWindow, e.DataType,
		e.EventType, e.Parameters,
		jsonbRaw(e.RelatedKPIs), jsonbRaw(e.RelatedDimensions), jsonbRaw(e.DerivedMetrics), jsonbRaw(e.DerivedKPIs),
		e.Dependencies,
		e.DataLayerMapping, e.XDMMapping, e.GA4Implementation,
		e.AdobeImplementation, e.SQLQuery,
		e.ContainsPII, e.DataSensitivity,
		e.LastModifiedBy, time.Now().UTC(),
	).Scan(&e.LastModifiedAt)
	if err != nil {
		return mapWriteError("update catalog entity", err)
	}

	return nil
}

func (r *catalogEntityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM catalog_entities WHERE id = $1`, id)
	if err != nil {
		return mapWriteError("delete catalog entity", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *catalogEntityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogEntity, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + entityColumns + ` FROM catalog_entities WHERE id = $1`
	return scanOne(scope.Conn.QueryRow(ctx, query, id))
}

func (r *catalogEntityRepository) GetBySlug(ctx context.Context, kind models.EntityKind, slug string) (*models.CatalogEntity, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + entityColumns + ` FROM catalog_entities WHERE kind = $1 AND slug = $2`
	return scanOne(scope.Conn.QueryRow(ctx, query, kind, slug))
}

func (r *catalogEntityRepository) List(ctx context.Context, kind models.EntityKind, filter ListFilter) ([]*models.CatalogEntity, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query, args := buildListQuery(kind, filter)

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog entities: %w", err)
	}
	defer rows.Close()

	entities := []*models.CatalogEntity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog entities: %w", err)
	}

	return entities, nil
}

// ExistingSlugs reports which of slugs exist for kind and are visible to
// the caller.
func (r *catalogEntityRepository) ExistingSlugs(ctx context.Context, kind models.EntityKind, slugs []string) (map[string]bool, error) {
	found := make(map[string]bool, len(slugs))
	if len(slugs) == 0 {
		return found, nil
	}

	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT slug FROM catalog_entities WHERE kind = $1 AND slug = ANY($2)`, kind, slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing slugs: %w", err)
	}

	existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect existing slugs: %w", err)
	}
	for _, s := range existing {
		found[s] = true
	}
	return found, nil
}

func (r *catalogEntityRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.EntityStatus, modifiedBy string) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE catalog_entities
		SET status = $2, last_modified_by = $3, last_modified_at = $4
		WHERE id = $1`,
		id, status, modifiedBy, time.Now().UTC())
	if err != nil {
		return mapWriteError("set catalog entity status", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

// buildListQuery assembles the filtered listing SELECT and its arguments.
func buildListQuery(kind models.EntityKind, filter ListFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT `)
	sb.WriteString(entityColumns)
	sb.WriteString(` FROM catalog_entities WHERE kind = $1`)
	args := []any{kind}

	add := func(clause string, v any) {
		args = append(args, v)
		sb.WriteString(" AND ")
		sb.WriteString(strings.ReplaceAll(clause, "$?", "$"+strconv.Itoa(len(args))))
	}

	if filter.Status != "" {
		add("status = $?", filter.Status)
	}
	if filter.Category != "" {
		add("category = $?", filter.Category)
	}
	if filter.CreatedBy != "" {
		add("created_by = $?", filter.CreatedBy)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add(`(slug ILIKE $? OR name ILIKE $? OR description ILIKE $?)`, "%"+escapeLike(q)+"%")
	}

	sb.WriteString(" ORDER BY name, slug")

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	return sb.String(), args
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanOne(row pgx.Row) (*models.CatalogEntity, error) {
	e, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return e, err
}

func scanEntity(row pgx.Row) (*models.CatalogEntity, error) {
	var e models.CatalogEntity
	var relatedKPIs, relatedDimensions, derivedMetrics, derivedKPIs []byte

	err := row.Scan(
		&e.ID, &e.Kind, &e.Slug, &e.Name, &e.Description, &e.Category,
		&e.Tags, &e.Industry, &e.Priority, &e.Scope, &e.Status,
		&e.Formula, &e.MeasureType, &e.AggregationWindow, &e.DataType, &e.EventType, &e.Parameters,
		&relatedKPIs, &relatedDimensions, &derivedMetrics, &derivedKPIs, &e.Dependencies,
		&e.DataLayerMapping, &e.XDMMapping, &e.GA4Implementation, &e.AdobeImplementation, &e.SQLQuery,
		&e.ContainsPII, &e.DataSensitivity,
		&e.CreatedBy, &e.CreatedAt, &e.LastModifiedBy, &e.LastModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan catalog entity: %w", err)
	}

	e.RelatedKPIs = rawOrNil(relatedKPIs)
	e.RelatedDimensions = rawOrNil(relatedDimensions)
	e.DerivedMetrics = rawOrNil(derivedMetrics)
	e.DerivedKPIs = rawOrNil(derivedKPIs)

	return &e, nil
}

// mapWriteError translates constraint and RLS failures into domain errors.
func mapWriteError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("failed to %s: %w", op, apperrors.ErrConflict)
		case pgInsufficientPrivilege:
			return fmt.Errorf("failed to %s: %w", op, apperrors.ErrForbidden)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// nonNilList stores empty arrays rather than NULL in NOT NULL text[] columns.
func nonNilList(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// jsonbRaw passes raw JSON text to a jsonb column; empty becomes NULL.
func jsonbRaw(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func rawOrNil(b []byte) []byte {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return b
}
