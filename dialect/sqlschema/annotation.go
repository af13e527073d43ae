// Package sqlschema holds the referential actions of the foreign keys a
// relationship produces.
//
//	edge.ManyToOne("country", "Country", func(p *Person) *Country { return p.Country }).
//		Annotations(sqlschema.OnDelete(sqlschema.SetNull))
package sqlschema

import "strings"

// CascadeAction is the ON DELETE or ON UPDATE clause of a foreign key.
type CascadeAction string

// Actions understood by SQLite.
const (
	NoAction   CascadeAction = "NO ACTION"
	Restrict   CascadeAction = "RESTRICT"
	Cascade    CascadeAction = "CASCADE"
	SetNull    CascadeAction = "SET NULL"
	SetDefault CascadeAction = "SET DEFAULT"
)

var actions = []CascadeAction{NoAction, Restrict, Cascade, SetNull, SetDefault}

// Valid reports whether a is one of the declared actions.
func (a CascadeAction) Valid() bool {
	for _, b := range actions {
		if a == b {
			return true
		}
	}
	return false
}

// Or returns a, or def when a is unset.
func (a CascadeAction) Or(def CascadeAction) CascadeAction {
	if a == "" {
		return def
	}
	return a
}

// ParseAction reads an action case-insensitively, with words separated by
// spaces or underscores.
func ParseAction(s string) (CascadeAction, bool) {
	a := CascadeAction(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " ")))
	return a, a.Valid()
}

// Annotation sets the actions of the foreign key of a relationship. Empty
// actions keep the default of the relationship.
type Annotation struct {
	OnDelete CascadeAction
	OnUpdate CascadeAction
}

// OnDelete returns an annotation setting only the ON DELETE action.
func OnDelete(a CascadeAction) Annotation { return Annotation{OnDelete: a} }

// OnUpdate returns an annotation setting only the ON UPDATE action.
func OnUpdate(a CascadeAction) Annotation { return Annotation{OnUpdate: a} }

// Merge folds annotations left to right; set actions override.
func Merge(as ...Annotation) Annotation {
	var m Annotation
	for _, a := range as {
		m.OnDelete = a.OnDelete.Or(m.OnDelete)
		m.OnUpdate = a.OnUpdate.Or(m.OnUpdate)
	}
	return m
}
