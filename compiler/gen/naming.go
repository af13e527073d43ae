package gen

import (
	"fmt"
	"go/token"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// acronyms are kept upper-case in identifiers.
var acronyms = map[string]bool{
	"API":  true,
	"HTTP": true,
	"ID":   true,
	"IP":   true,
	"JSON": true,
	"SQL":  true,
	"URL":  true,
	"UUID": true,
}

// Pascal converts an entity, property or column name to an exported Go
// identifier: "first_name" and "firstName" both become "FirstName", and
// "user_id" becomes "UserID".
func Pascal(s string) string {
	// A Caser is stateful and must not be shared between the workers.
	title := cases.Title(language.Und, cases.NoLower)
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	var b strings.Builder
	for _, w := range words {
		if u := strings.ToUpper(w); acronyms[u] {
			b.WriteString(u)
			continue
		}
		b.WriteString(title.String(w))
	}
	return b.String()
}

// ident returns the exported identifier of name, or an error if name
// does not convert to one.
func ident(name string) (string, error) {
	id := Pascal(name)
	if !token.IsIdentifier(id) || !token.IsExported(id) {
		return "", fmt.Errorf("%q does not convert to an exported Go identifier", name)
	}
	return id, nil
}
