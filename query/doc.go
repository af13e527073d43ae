// Package query builds relational queries over the entities of a schema
// graph without committing to SQL text.
//
// A query names the alias to materialize, a left-deep FROM tree of aliased
// tables and an optional filter expression:
//
//	q := query.Select("p").
//		From(query.From("Person", "p").Join("Country", "c", query.Via("p", "country"))).
//		Where(query.EQ(query.P("c.name"), query.Value("Italy")))
//
// Filters reach related entities through property paths. The compiler in
// dialect/sql/sqlgraph adds the joins such paths need:
//
//	query.Select("p").
//		From(query.From("Person", "p")).
//		Where(query.EQ(query.P("p.country.name"), query.Value("Italy")))
//
// Nodes and expressions are immutable; every combinator returns a new value.
package query
