package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ListSeparator joins legacy list fields that were stored as one string.
const ListSeparator = ";"

// FlexibleStringValue converts a json.RawMessage to a string, accepting
// strings, numbers and booleans. Returns empty string for null/empty.
// Objects and arrays come back as their raw JSON text.
func FlexibleStringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// json.Number keeps integer precision that float64 would lose
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var numVal json.Number
	if err := dec.Decode(&numVal); err == nil {
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		if boolVal {
			return "true"
		}
		return "false"
	}

	return string(raw)
}

// IsJSONArray reports whether raw holds a JSON array (ignoring whitespace).
func IsJSONArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// FlexibleStringList reads a list field that may be stored either as a JSON
// array or as a single separator-joined JSON string.
// String form is split on ";" with blank parts dropped. Array elements go
// through FlexibleStringValue. Returns nil for null/empty/malformed input.
func FlexibleStringList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	if IsJSONArray(raw) {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil
		}
		out := make([]string, 0, len(elems))
		for _, e := range elems {
			if v := FlexibleStringValue(e); v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(joined, ListSeparator) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinFlexibleList returns the canonical joined-string form of a list field.
// A stored string is returned verbatim so an unedited value round-trips
// byte for byte; a stored array is joined with sep.
func JoinFlexibleList(raw json.RawMessage, sep string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	if IsJSONArray(raw) {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return ""
		}
		parts := make([]string, 0, len(elems))
		for _, e := range elems {
			parts = append(parts, FlexibleStringValue(e))
		}
		return strings.Join(parts, sep)
	}

	return FlexibleStringValue(raw)
}
