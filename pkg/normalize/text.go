// Package normalize cleans legacy free-text catalog fields for display.
//
// Older rows carry SQL and JSON snippets that went through several storage
// formats: HTML line breaks, a leading "sql"/"json" type marker, and SQL
// split across the elements of a JSON array. Normalize never fails; input
// it cannot interpret is passed through the textual cleanup only.
package normalize

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/openkpis/catalog-engine/pkg/jsonutil"
)

// Kind selects the cleanup rules for a field.
type Kind string

const (
	KindSQL  Kind = "sql"
	KindJSON Kind = "json"
)

var (
	lineBreakPattern  = regexp.MustCompile(`(?i)<br\s*/?>`)
	sqlMarkerPattern  = regexp.MustCompile(`(?i)^\s*sql\b\s*`)
	jsonMarkerPattern = regexp.MustCompile(`(?i)^\s*json\b\s*`)
)

// Normalize returns raw cleaned according to kind. Empty input is returned
// unchanged, as is input for an unrecognised kind.
func Normalize(raw string, kind Kind) string {
	if raw == "" {
		return raw
	}
	switch kind {
	case KindSQL:
		return SQL(raw)
	case KindJSON:
		return JSON(raw)
	default:
		return raw
	}
}

// NormalizePtr is Normalize for nullable columns. nil stays nil.
func NormalizePtr(raw *string, kind Kind) *string {
	if raw == nil {
		return nil
	}
	out := Normalize(*raw, kind)
	return &out
}

// SQL joins array-of-fragments encodings, converts <br> tags to newlines and
// drops one leading "sql" marker.
func SQL(raw string) string {
	if raw == "" {
		return raw
	}

	text := raw
	if joined, ok := joinFragments(raw); ok {
		text = joined
	}
	text = ReplaceLineBreaks(text)
	return sqlMarkerPattern.ReplaceAllString(text, "")
}

// JSON pretty-prints valid JSON object/array literals with two-space
// indentation. Anything else gets <br> conversion and loses one leading
// "json" marker.
//
// Only whitespace changes for valid JSON: key order, number spellings
// (1.50, 1e2) and string escapes (\u00e9) are kept as stored.
func JSON(raw string) string {
	if raw == "" {
		return raw
	}

	trimmed := strings.TrimSpace(raw)
	if looksLikeObject(trimmed) || looksLikeArray(trimmed) {
		if json.Valid([]byte(trimmed)) {
			var buf bytes.Buffer
			if err := json.Indent(&buf, []byte(trimmed), "", "  "); err == nil {
				return buf.String()
			}
		}
	}

	text := ReplaceLineBreaks(raw)
	return jsonMarkerPattern.ReplaceAllString(text, "")
}

// ReplaceLineBreaks turns every <br>, <br/> and <br /> (any case) into "\n".
func ReplaceLineBreaks(s string) string {
	return lineBreakPattern.ReplaceAllString(s, "\n")
}

// joinFragments decodes a JSON array literal and joins its elements with
// newlines. ok is false when raw is not a parseable array.
func joinFragments(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !looksLikeArray(trimmed) {
		return "", false
	}

	var fragments []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fragments); err != nil {
		return "", false
	}

	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, jsonutil.FlexibleStringValue(f))
	}
	return strings.Join(parts, "\n"), true
}

func looksLikeArray(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

func looksLikeObject(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}
