package sql

import (
	"errors"
	"strings"
)

// ErrMultipleStatements indicates a stored SQL snippet holds more than one statement.
var ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

// ValidationResult contains the normalized SQL and any validation error.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateSnippet checks that a catalog SQL snippet is a single statement and
// strips a trailing semicolon. Empty input is valid.
func ValidateSnippet(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return ValidationResult{}
	}

	normalized := stripTrailingSemicolon(sqlQuery)
	if hasSemicolonOutsideLiterals(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// hasSemicolonOutsideLiterals scans for ';' outside quoted strings and
// identifiers and outside "--" and "/* */" comments.
func hasSemicolonOutsideLiterals(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	runes := []rune(sqlQuery)

	for i := 0; i < len(runes); i++ {
		char := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case char == ';':
				return true
			case char == '\'':
				state = stateSingleQuote
			case char == '"':
				state = stateDoubleQuote
			case char == '-' && next == '-':
				state = stateLineComment
				i++
			case char == '/' && next == '*':
				state = stateBlockComment
				i++
			}
		case stateSingleQuote:
			// '' is an escaped quote and stays inside the literal
			if char == '\'' {
				if next == '\'' {
					i++
				} else {
					state = stateNormal
				}
			}
		case stateDoubleQuote:
			if char == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if char == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return false
}

// stripTrailingSemicolon removes one trailing semicolon and surrounding whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if trimmed, ok := strings.CutSuffix(sqlQuery, ";"); ok {
		sqlQuery = strings.TrimRight(trimmed, " \t\n\r")
	}
	return sqlQuery
}
