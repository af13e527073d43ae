package graph

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

var rules = inflect.NewDefaultRuleset()

// Snake converts a Go identifier to snake_case, keeping acronyms together:
// "UserIDs" becomes "user_ids" and "HTTPCode" becomes "http_code".
func Snake(s string) string {
	var (
		j int
		b strings.Builder
	)
	for i := 0; i < len(s); i++ {
		r := rune(s[i])
		// Put '_' if it is not a start or end of a word, current letter is uppercase,
		// and previous is lowercase (cases like: "UserInfo"), or next letter is also
		// a lowercase and previous letter is not "_".
		if i > 0 && i < len(s)-1 && unicode.IsUpper(r) {
			if unicode.IsLower(rune(s[i-1])) ||
				j != i-1 && unicode.IsLower(rune(s[i+1])) && unicode.IsLetter(rune(s[i-1])) {
				j = i
				b.WriteString("_")
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// TableName returns the default table name of an entity: the plural of
// its snake_case name. The inflection rules match lower-case suffixes only.
func TableName(entity string) string {
	return rules.Pluralize(Snake(entity))
}
