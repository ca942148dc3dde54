package sqltrace

import (
	"regexp"
	"strings"
)

var (
	commentPattern = regexp.MustCompile(`(?s)/\*.*?\*/|--[^\n]*`)
	identifier     = `["\x60\[]?([A-Za-z_][\w$]*(?:\.[A-Za-z_][\w$]*)?)["\x60\]]?`

	collectionPatterns = map[string]*regexp.Regexp{
		"select": regexp.MustCompile(`(?is)\bfrom\s+` + identifier),
		"delete": regexp.MustCompile(`(?is)^delete\s+from\s+` + identifier),
		"insert": regexp.MustCompile(`(?is)^insert\s+into\s+` + identifier),
		"update": regexp.MustCompile(`(?is)^update\s+` + identifier),
	}
)

// ParseStatement extracts the lower cased operation and the table a SQL
// statement targets. Collection is empty when no table can be found and
// operation is empty for blank input.
func ParseStatement(sql string) (operation, collection string) {
	sql = strings.TrimSpace(commentPattern.ReplaceAllString(sql, " "))
	sql = strings.TrimLeft(sql, "(")
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "", ""
	}
	operation = strings.ToLower(fields[0])

	pattern, ok := collectionPatterns[operation]
	if !ok {
		return operation, ""
	}
	if m := pattern.FindStringSubmatch(strings.TrimLeft(sql, "( ")); m != nil {
		collection = m[1]
	}
	return operation, collection
}
