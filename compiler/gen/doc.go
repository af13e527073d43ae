// Package gen generates Go code from a resolved entity graph.
//
// The generated package holds, for every entity, its table and column
// names as constants and a typed accessor of its properties for building
// queries, plus the DDL of the schema:
//
//	g := graph.MustBuild(defs)
//	if err := gen.NewJenniferGenerator(g, "./library").Generate(ctx); err != nil {
//		return err
//	}
//
// A generated accessor renders property paths under a query alias:
//
//	p := library.PersonAt("p")
//	q := library.SelectPerson("p").Where(p.Country().Name().EQ("Italy"))
//
// Files are rendered concurrently, one per entity, with jennifer
// tracking the imports of each file.
package gen
