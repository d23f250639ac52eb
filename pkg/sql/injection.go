// Package sql screens user-supplied text that ends up near SQL: catalog
// filter values and the SQL snippets stored on measured entities.
package sql

import (
	"slices"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a value libinjection flagged.
type InjectionCheckResult struct {
	Field       string // filter or form field that failed the check
	Value       string
	Fingerprint string // libinjection token fingerprint, e.g. "s&1c"
}

// CheckValueForInjection runs libinjection over value. It returns nil when the
// value is clean.
//
// Example:
//
//	CheckValueForInjection("q", "conversion rate")          // nil
//	CheckValueForInjection("q", "x' OR '1'='1")             // Fingerprint "s&sos" or similar
func CheckValueForInjection(field, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}

	return &InjectionCheckResult{
		Field:       field,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// CheckFilters validates every filter value. Results are ordered by field
// name so error responses are stable.
func CheckFilters(filters map[string]string) []*InjectionCheckResult {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	slices.Sort(names)

	var results []*InjectionCheckResult
	for _, name := range names {
		if r := CheckValueForInjection(name, filters[name]); r != nil {
			results = append(results, r)
		}
	}
	return results
}
