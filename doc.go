// Package strata maps entity hierarchies onto relational tables.
//
// Entities are declared with the builders of the schema package and
// resolved into a graph by graph.Build, which decides the tables, columns
// and keys of every entity under one of three inheritance strategies:
//
//   - SingleTable: a hierarchy shares the table of its root, rows are told
//     apart by a discriminator column
//   - Joined: every entity owns a table holding its own columns, keyed by
//     a copy of the root's key
//   - TablePerClass: every concrete entity owns a table holding all of its
//     columns
//
// Queries built with the query package are compiled to SQL and their rows
// materialized into objects of the most derived entity by the orm client:
//
//	client, err := orm.Open(ctx, dialect.SQLite, dsn, defs)
//	if err != nil {
//		return err
//	}
//	people, err := orm.All[*Person](ctx, client, query.Select("p").
//		From(query.From("Person", "p")).
//		Where(query.GT(query.P("p.age"), query.Value(40))))
//
// This package holds what the others share: the configuration, the error
// taxonomy and List, the lazily loaded to-many relationship.
package strata
