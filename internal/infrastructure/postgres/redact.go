package postgres

import (
	"regexp"
)

// maxRedactedLength bounds the query text carried into audit entries.
const maxRedactedLength = 500

var (
	stringLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)
	// Matches numeric literals and positional placeholders in one pass so
	// that $1-style placeholders can be preserved.
	numberLiteralRe = regexp.MustCompile(`\$\d+|\b\d+(?:\.\d+)?\b`)
)

// RedactQuery strips literal values out of a SQL statement so that the
// audited text never carries sensitive data. Positional placeholders are
// left intact.
func RedactQuery(query string) string {
	redacted := stringLiteralRe.ReplaceAllString(query, "'?'")
	redacted = numberLiteralRe.ReplaceAllStringFunc(redacted, func(match string) string {
		if match[0] == '$' {
			return match
		}
		return "?"
	})
	if len(redacted) > maxRedactedLength {
		redacted = redacted[:maxRedactedLength] + "..."
	}
	return redacted
}
