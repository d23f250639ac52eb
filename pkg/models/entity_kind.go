package models

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/openkpis/catalog-engine/pkg/apperrors"
)

// EntityKind identifies one of the catalog record types.
type EntityKind string

const (
	KindKPI       EntityKind = "kpi"
	KindMetric    EntityKind = "metric"
	KindDimension EntityKind = "dimension"
	KindEvent     EntityKind = "event"
	KindDashboard EntityKind = "dashboard"
)

// AllKinds lists every supported kind in display order.
var AllKinds = []EntityKind{KindKPI, KindMetric, KindDimension, KindEvent, KindDashboard}

// String returns the string representation of an EntityKind.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid returns true if k is one of the five catalog kinds.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindKPI, KindMetric, KindDimension, KindEvent, KindDashboard:
		return true
	default:
		return false
	}
}

// Plural returns the URL-facing collection name ("kpis", "metrics", ...).
func (k EntityKind) Plural() string {
	return inflection.Plural(string(k))
}

// ParseEntityKind accepts a kind in singular or plural form, any case.
func ParseEntityKind(s string) (EntityKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", fmt.Errorf("%w: empty", apperrors.ErrUnknownKind)
	}

	if k := EntityKind(name); k.IsValid() {
		return k, nil
	}
	if k := EntityKind(inflection.Singular(name)); k.IsValid() {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownKind, s)
}

// EntityStatus is the editorial visibility of a catalog entity.
type EntityStatus string

const (
	StatusDraft     EntityStatus = "draft"
	StatusPublished EntityStatus = "published"
)

// IsValid returns true for draft and published.
func (s EntityStatus) IsValid() bool {
	return s == StatusDraft || s == StatusPublished
}
