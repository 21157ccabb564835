package query

import (
	"regexp"
	"strings"
)

// A run of operator words collapses to its first operator, which may carry
// a trailing NOT ("and not", "or not").
var (
	operatorCascade  = regexp.MustCompile(`(?i)\b(AND(?:\s+NOT)?|OR(?:\s+NOT)?|NOT)\b(?:\s+(?:AND|OR|NOT)\b)*`)
	leadingOperator  = regexp.MustCompile(`(?i)^(?:AND|OR|NOT)\b\s*`)
	trailingOperator = regexp.MustCompile(`(?i)\s*\b(?:AND|OR|NOT)$`)
)

// NormalizeOperators uppercases the boolean words and/or/not, collapses
// cascades such as "and or not" to the first operator and strips an
// operator at either end of the query.
func NormalizeOperators(q string) string {
	q = operatorCascade.ReplaceAllStringFunc(q, func(m string) string {
		first := operatorCascade.FindStringSubmatch(m)[1]
		return strings.ToUpper(strings.Join(strings.Fields(first), " "))
	})
	q = leadingOperator.ReplaceAllString(q, "")
	return trailingOperator.ReplaceAllString(q, "")
}
