package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openkpis/catalog-engine/pkg/apperrors"
	"github.com/openkpis/catalog-engine/pkg/cache"
	"github.com/openkpis/catalog-engine/pkg/depgraph"
	"github.com/openkpis/catalog-engine/pkg/forms"
	"github.com/openkpis/catalog-engine/pkg/logging"
	"github.com/openkpis/catalog-engine/pkg/models"
	"github.com/openkpis/catalog-engine/pkg/normalize"
	"github.com/openkpis/catalog-engine/pkg/repositories"
	sqlcheck "github.com/openkpis/catalog-engine/pkg/sql"
)

const (
	// maxSlugAttempts bounds the "-2", "-3", ... suffixes tried on a slug collision.
	maxSlugAttempts = 20

	defaultListLimit  = 200
	defaultDisplayTTL = 10 * time.Minute
)

// ListOptions filters a catalog listing.
type ListOptions struct {
	Status   models.EntityStatus
	Category string
	Query    string
	Mine     bool // only entities created by the caller
	Limit    int
	Offset   int
}

// CreateDraftRequest holds the fields needed to start a new catalog entry.
type CreateDraftRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// DisplaySection is one tab of the read-only view.
type DisplaySection struct {
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
}

// EntityDisplay is the read-only view of an entity with legacy SQL and
// JSON blobs normalized for rendering.
type EntityDisplay struct {
	Form           *forms.FormData  `json:"form"`
	Sections       []DisplaySection `json:"sections"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	LastModifiedBy string           `json:"last_modified_by,omitempty"`
	LastModifiedAt time.Time        `json:"last_modified_at"`
}

// DependencyCheck reports which dependency references have no matching entity.
type DependencyCheck struct {
	Graph    depgraph.Graph `json:"graph"`
	Missing  depgraph.Graph `json:"missing"`
	Complete bool           `json:"complete"`
}

// CatalogService implements the catalog read paths and the editorial workflow.
// The acting user is read from models.GetProvenance(ctx).
type CatalogService interface {
	List(ctx context.Context, kind models.EntityKind, opts ListOptions) ([]*models.CatalogEntity, error)
	Get(ctx context.Context, kind models.EntityKind, slug string) (*models.CatalogEntity, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogEntity, error)
	GetDisplay(ctx context.Context, kind models.EntityKind, slug string) (*EntityDisplay, error)

	// CreateDraft creates a draft owned by the caller. The slug is derived
	// from the name and suffixed when taken.
	CreateDraft(ctx context.Context, kind models.EntityKind, req CreateDraftRequest) (*models.CatalogEntity, error)

	GetForm(ctx context.Context, id uuid.UUID) (*forms.FormData, error)
	SaveForm(ctx context.Context, id uuid.UUID, form *forms.FormData) (*forms.FormData, error)

	AddDependency(ctx context.Context, id uuid.UUID, category depgraph.Category, value string) (depgraph.Graph, error)
	RemoveDependency(ctx context.Context, id uuid.UUID, category depgraph.Category, value string) (depgraph.Graph, error)
	CheckDependencies(ctx context.Context, id uuid.UUID) (*DependencyCheck, error)

	// Publish moves a draft to published. Editors only.
	Publish(ctx context.Context, id uuid.UUID) (*models.CatalogEntity, error)

	// Delete removes a draft. Only its creator may delete it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// CatalogServiceConfig tunes listing and caching.
type CatalogServiceConfig struct {
	DisplayTTL time.Duration
	ListLimit  int
}

type catalogService struct {
	repo   repositories.CatalogEntityRepository
	cache  cache.DisplayCache
	cfg    CatalogServiceConfig
	logger *zap.Logger
}

// NewCatalogService creates a new CatalogService. A nil cache disables caching.
func NewCatalogService(
	repo repositories.CatalogEntityRepository,
	displayCache cache.DisplayCache,
	cfg CatalogServiceConfig,
	logger *zap.Logger,
) CatalogService {
	if displayCache == nil {
		displayCache = cache.NoopCache{}
	}
	if cfg.DisplayTTL <= 0 {
		cfg.DisplayTTL = defaultDisplayTTL
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	return &catalogService{
		repo:   repo,
		cache:  displayCache,
		cfg:    cfg,
		logger: logger.Named("catalog"),
	}
}

var _ CatalogService = (*catalogService)(nil)

// CanEdit reports whether userID holding roles may modify e. Drafts are
// editable by their creator and by editors; published entries by editors only.
func CanEdit(e *models.CatalogEntity, userID string, roles []string) bool {
	if e == nil || userID == "" {
		return false
	}
	if slices.Contains(roles, models.RoleEditor) {
		return true
	}
	return e.IsDraft() && e.CreatedBy == userID
}

// canView reports whether the caller may see e at all. Published entries are
// public; drafts are visible to their creator and to editors.
func canView(e *models.CatalogEntity, prov models.ProvenanceContext) bool {
	if !e.IsDraft() {
		return true
	}
	if prov.UserID == "" {
		return false
	}
	return e.CreatedBy == prov.UserID || prov.IsEditor()
}

func provenance(ctx context.Context) models.ProvenanceContext {
	prov, _ := models.GetProvenance(ctx)
	return prov
}

// ============================================================================
// Read paths
// ============================================================================

func (s *catalogService) List(ctx context.Context, kind models.EntityKind, opts ListOptions) ([]*models.CatalogEntity, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownKind, kind)
	}
	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, apperrors.NewValidationError("status", "must be draft or published")
	}

	prov := provenance(ctx)
	filter := repositories.ListFilter{
		Status:   opts.Status,
		Category: strings.TrimSpace(opts.Category),
		Query:    strings.TrimSpace(opts.Query),
		Limit:    opts.Limit,
		Offset:   max(opts.Offset, 0),
	}
	if filter.Limit <= 0 || filter.Limit > s.cfg.ListLimit {
		filter.Limit = s.cfg.ListLimit
	}
	if opts.Mine {
		if prov.UserID == "" {
			return nil, apperrors.ErrForbidden
		}
		filter.CreatedBy = prov.UserID
	}

	entities, err := s.repo.List(ctx, kind, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Plural(), err)
	}

	visible := entities[:0]
	for _, e := range entities {
		if canView(e, prov) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

func (s *catalogService) Get(ctx context.Context, kind models.EntityKind, slug string) (*models.CatalogEntity, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownKind, kind)
	}

	e, err := s.repo.GetBySlug(ctx, kind, slug)
	if err != nil {
		return nil, err
	}
	if !canView(e, provenance(ctx)) {
		return nil, apperrors.ErrNotFound
	}
	return e, nil
}

func (s *catalogService) GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogEntity, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(e, provenance(ctx)) {
		return nil, apperrors.ErrNotFound
	}
	return e, nil
}

func (s *catalogService) GetDisplay(ctx context.Context, kind models.EntityKind, slug string) (*EntityDisplay, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownKind, kind)
	}

	key := cache.DisplayKey(kind.String(), slug)
	var cached EntityDisplay
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Display cache read failed",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)))
	}
	if hit {
		return &cached, nil
	}

	e, err := s.Get(ctx, kind, slug)
	if err != nil {
		return nil, err
	}

	display := buildDisplay(e)
	// A read that overlaps a write may store the pre-write view after
	// persist has invalidated the key; it expires after DisplayTTL.
	if !e.IsDraft() {
		if err := s.cache.Set(ctx, key, display, s.cfg.DisplayTTL); err != nil {
			s.logger.Warn("Display cache write failed",
				zap.String("key", key),
				zap.String("error", logging.SanitizeError(err)))
		}
	}
	return display, nil
}

func buildDisplay(e *models.CatalogEntity) *EntityDisplay {
	form := forms.ToFormData(e, e.Kind)
	form.SQLQuery = normalize.Normalize(form.SQLQuery, normalize.KindSQL)
	form.DataLayerMapping = normalize.Normalize(form.DataLayerMapping, normalize.KindJSON)
	form.XDMMapping = normalize.Normalize(form.XDMMapping, normalize.KindJSON)

	var sections []DisplaySection
	for _, sec := range []forms.Section{
		forms.SectionBasic,
		forms.SectionDefinition,
		forms.SectionRelationships,
		forms.SectionDataMappings,
		forms.SectionSQL,
		forms.SectionGovernance,
	} {
		fields := forms.FieldsInSection(e.Kind, sec)
		if len(fields) == 0 {
			continue
		}
		names := make([]string, 0, len(fields))
		for _, f := range fields {
			names = append(names, f.Name)
		}
		sections = append(sections, DisplaySection{Title: sec.String(), Fields: names})
	}

	return &EntityDisplay{
		Form:           form,
		Sections:       sections,
		CreatedBy:      e.CreatedBy,
		CreatedAt:      e.CreatedAt,
		LastModifiedBy: e.LastModifiedBy,
		LastModifiedAt: e.LastModifiedAt,
	}
}

// ============================================================================
// Drafts and forms
// ============================================================================

func (s *catalogService) CreateDraft(ctx context.Context, kind models.EntityKind, req CreateDraftRequest) (*models.CatalogEntity, error) {
	prov := provenance(ctx)
	if prov.UserID == "" {
		return nil, apperrors.ErrForbidden
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownKind, kind)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	category := strings.TrimSpace(req.Category)
	if !models.Allows(models.Options().Categories, category) {
		return nil, apperrors.NewValidationError("category", fmt.Sprintf("unknown category %q", category))
	}

	base := Slugify(name)
	if base == "" {
		return nil, apperrors.NewValidationError("name", "name must contain at least one letter or digit")
	}

	e := &models.CatalogEntity{
		Kind:         kind,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Category:     category,
		Tags:         []string{},
		Status:       models.StatusDraft,
		Dependencies: depgraph.Encode(depgraph.Empty()),
		CreatedBy:    prov.UserID,
	}

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		e.Slug = base
		if attempt > 1 {
			e.Slug = base + "-" + strconv.Itoa(attempt)
		}

		err := s.repo.Create(ctx, e)
		if err == nil {
			s.logger.Info("Created catalog draft",
				zap.String("kind", kind.String()),
				zap.String("slug", e.Slug),
				zap.String("entity_id", e.ID.String()),
				zap.String("created_by", prov.UserID))
			return e, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("failed to create draft: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to create draft: slug %q: %w", base, apperrors.ErrConflict)
}

// loadEditable fetches id and checks the caller may modify it. Entities the
// caller cannot see at all are reported as not found.
func (s *catalogService) loadEditable(ctx context.Context, id uuid.UUID) (*models.CatalogEntity, models.ProvenanceContext, error) {
	prov := provenance(ctx)
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, prov, err
	}
	if !CanEdit(e, prov.UserID, prov.Roles) {
		return nil, prov, apperrors.ErrForbidden
	}
	return e, prov, nil
}

func (s *catalogService) GetForm(ctx context.Context, id uuid.UUID) (*forms.FormData, error) {
	e, _, err := s.loadEditable(ctx, id)
	if err != nil {
		return nil, err
	}
	return forms.ToFormData(e, e.Kind), nil
}

func (s *catalogService) SaveForm(ctx context.Context, id uuid.UUID, form *forms.FormData) (*forms.FormData, error) {
	if form == nil {
		return nil, apperrors.NewValidationError("", "form body is required")
	}

	e, prov, err := s.loadEditable(ctx, id)
	if err != nil {
		return nil, err
	}

	form.Name = strings.TrimSpace(form.Name)
	if graphOmitted(form.DependencyGraph) {
		form.DependencyGraph = depgraph.Decode(form.Dependencies)
	}
	if err := validateForm(form, forms.ToFormData(e, e.Kind), e.Kind); err != nil {
		return nil, err
	}

	e.ApplyPatch(forms.ToPersistedPatch(form, e.Kind))
	if err := s.persist(ctx, e, prov); err != nil {
		return nil, fmt.Errorf("failed to save form: %w", err)
	}

	return forms.ToFormData(e, e.Kind), nil
}

// graphOmitted reports a request body without dependency_graph. An explicit
// empty graph decodes to empty lists, not nil ones.
func graphOmitted(g depgraph.Graph) bool {
	return g.Events == nil && g.Metrics == nil && g.Dimensions == nil && g.KPIs == nil
}

// validateForm checks required fields and that every select value is one of
// the configured options. Only fields the kind's form shows are checked, and
// values equal to the stored ones are accepted as-is so legacy rows stay
// editable.
func validateForm(f, stored *forms.FormData, kind models.EntityKind) error {
	if f.Name == "" {
		return apperrors.NewValidationError(forms.FieldName, "name is required")
	}

	opts := models.Options()
	checks := []struct {
		field   string
		allowed []string
		value   string
		stored  string
	}{
		{forms.FieldCategory, opts.Categories, f.Category, stored.Category},
		{forms.FieldPriority, opts.Priorities, f.Priority, stored.Priority},
		{forms.FieldScope, opts.Scopes, f.Scope, stored.Scope},
		{forms.FieldMeasureType, opts.MeasureTypes, f.MeasureType, stored.MeasureType},
		{forms.FieldDataType, opts.DataTypes, f.DataType, stored.DataType},
		{forms.FieldEventType, opts.EventTypes, f.EventType, stored.EventType},
		{forms.FieldDataSensitivity, opts.DataSensitivities, f.DataSensitivity, stored.DataSensitivity},
	}
	for _, c := range checks {
		if !forms.HasField(kind, c.field) || c.value == c.stored {
			continue
		}
		if !models.Allows(c.allowed, c.value) {
			return apperrors.NewValidationError(c.field, fmt.Sprintf("unknown value %q", c.value))
		}
	}

	if forms.HasField(kind, forms.FieldSQLQuery) && f.SQLQuery != stored.SQLQuery {
		if res := sqlcheck.ValidateSnippet(normalize.SQL(f.SQLQuery)); res.Error != nil {
			return apperrors.NewValidationError(forms.FieldSQLQuery, res.Error.Error())
		}
	}

	if forms.HasField(kind, forms.FieldIndustry) {
		for _, v := range f.Industry {
			if slices.Contains(stored.Industry, v) {
				continue
			}
			if !models.Allows(opts.Industries, v) {
				return apperrors.NewValidationError(forms.FieldIndustry, fmt.Sprintf("unknown value %q", v))
			}
		}
	}

	return nil
}

// persist stamps the modifier, writes e and drops its cached display view.
func (s *catalogService) persist(ctx context.Context, e *models.CatalogEntity, prov models.ProvenanceContext) error {
	e.LastModifiedBy = prov.UserID
	if err := s.repo.Update(ctx, e); err != nil {
		return err
	}
	s.invalidate(ctx, e)
	return nil
}

func (s *catalogService) invalidate(ctx context.Context, e *models.CatalogEntity) {
	key := cache.DisplayKey(e.Kind.String(), e.Slug)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("Display cache invalidation failed",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)))
	}
}

// ============================================================================
// Dependencies
// ============================================================================

func (s *catalogService) AddDependency(ctx context.Context, id uuid.UUID, category depgraph.Category, value string) (depgraph.Graph, error) {
	return s.editDependencies(ctx, id, category, value, depgraph.AddItem)
}

func (s *catalogService) RemoveDependency(ctx context.Context, id uuid.UUID, category depgraph.Category, value string) (depgraph.Graph, error) {
	return s.editDependencies(ctx, id, category, value, depgraph.RemoveItem)
}

func (s *catalogService) editDependencies(
	ctx context.Context,
	id uuid.UUID,
	category depgraph.Category,
	value string,
	edit func(depgraph.Graph, depgraph.Category, string) depgraph.Graph,
) (depgraph.Graph, error) {
	if !category.IsValid() {
		return depgraph.Graph{}, apperrors.NewValidationError("category", fmt.Sprintf("unknown dependency category %q", category))
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return depgraph.Graph{}, apperrors.NewValidationError("value", "value is required")
	}

	e, prov, err := s.loadEditable(ctx, id)
	if err != nil {
		return depgraph.Graph{}, err
	}

	before := depgraph.Decode(e.Dependencies)
	after := edit(before, category, value)
	e.Dependencies = depgraph.Encode(after)

	if err := s.persist(ctx, e, prov); err != nil {
		return depgraph.Graph{}, fmt.Errorf("failed to update dependencies: %w", err)
	}
	return after, nil
}

func (s *catalogService) CheckDependencies(ctx context.Context, id uuid.UUID) (*DependencyCheck, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	graph := depgraph.Decode(e.Dependencies)
	missing := depgraph.Empty()

	for _, c := range depgraph.Categories() {
		refs := graph.Get(c)
		if len(refs) == 0 {
			continue
		}
		kind, _ := depgraph.KindForCategory(c)

		// references may be slugs or display names
		candidates := make([]string, 0, len(refs)*2)
		for _, ref := range refs {
			candidates = append(candidates, ref, Slugify(ref))
		}

		existing, err := s.repo.ExistingSlugs(ctx, kind, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s dependencies: %w", c, err)
		}

		for _, ref := range refs {
			if !existing[ref] && !existing[Slugify(ref)] {
				missing = depgraph.AddItem(missing, c, ref)
			}
		}
	}

	return &DependencyCheck{
		Graph:    graph,
		Missing:  missing,
		Complete: missing.IsEmpty(),
	}, nil
}

// ============================================================================
// Editorial workflow
// ============================================================================

func (s *catalogService) Publish(ctx context.Context, id uuid.UUID) (*models.CatalogEntity, error) {
	prov := provenance(ctx)
	if !prov.IsEditor() {
		return nil, apperrors.ErrForbidden
	}

	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsDraft() {
		return nil, fmt.Errorf("%w: %s is already published", apperrors.ErrInvalidTransition, e.Slug)
	}

	if err := s.repo.SetStatus(ctx, id, models.StatusPublished, prov.UserID); err != nil {
		return nil, fmt.Errorf("failed to publish: %w", err)
	}
	e.Status = models.StatusPublished
	e.LastModifiedBy = prov.UserID
	s.invalidate(ctx, e)

	s.logger.Info("Published catalog entity",
		zap.String("kind", e.Kind.String()),
		zap.String("slug", e.Slug),
		zap.String("editor", prov.UserID))

	return e, nil
}

func (s *catalogService) Delete(ctx context.Context, id uuid.UUID) error {
	prov := provenance(ctx)

	e, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !e.IsDraft() {
		return fmt.Errorf("%w: published entries cannot be deleted", apperrors.ErrInvalidTransition)
	}
	if prov.UserID == "" || e.CreatedBy != prov.UserID {
		return apperrors.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	s.invalidate(ctx, e)

	s.logger.Info("Deleted catalog draft",
		zap.String("kind", e.Kind.String()),
		zap.String("slug", e.Slug),
		zap.String("entity_id", id.String()))

	return nil
}
