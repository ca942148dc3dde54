package sqltrace

import (
	"regexp"
	"strings"
)

var literalPattern = regexp.MustCompile(`\$\d+|'(?:[^']|'')*'|\b\d+(?:\.\d+)?\b`)

// Obfuscate replaces string and numeric literals with "?". Positional
// placeholders such as $1 are kept.
func Obfuscate(sql string) string {
	out := literalPattern.ReplaceAllStringFunc(sql, func(m string) string {
		if strings.HasPrefix(m, "$") {
			return m
		}
		return "?"
	})
	return strings.Join(strings.Fields(out), " ")
}
