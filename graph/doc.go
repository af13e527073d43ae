// Package graph resolves entity definitions into the relational schema the
// query compiler and the materializer work with.
//
// # Building
//
// Build validates the definitions, links every child to its parent and then
// resolves the columns of every entity:
//
//	g, err := graph.Build(ctx, []schema.Definition{PersonSchema, CountrySchema},
//	    strata.WithLogger(logger),
//	    strata.WithWorkers(8),
//	)
//
// Resolution runs as a plan of stages per entity. A stage waits only for
// the stages whose columns it reads:
//
//	columns:E  plain columns and the discriminator
//	keys:E     primary key (after the parent's and identifying targets' keys)
//	refs:E     foreign keys and association tables (after the targets' keys)
//	merge:E    descendants' columns of a single-table root (after done:child)
//	done:E     discriminator value and name checks
//
// Independent stages run concurrently. A plan that cannot complete, for
// example two entities identified by each other, is reported as a
// configuration error naming the cycle.
//
// # Mapping
//
// Every entity has a table except the non-root entities of a SINGLE_TABLE
// hierarchy, whose columns are merged into the root table. JOINED children
// copy the primary key of their parent in as local columns. TABLE_PER_CLASS
// children copy every column of their parent.
//
// Owning to-one relations generate foreign-key columns named after the
// relation and the referenced key column:
//
//	country -> country_id
//
// Owning many-to-many relations generate an association table named after
// the owner's table and the relation, "people_friends".
//
// The graph is read-only once Build returns and is safe for concurrent use.
package graph
