package gen

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/strata/dialect/sql/schema"
)

const dialectPkg = "github.com/syssam/strata/dialect"

// genSchema renders the tables of the graph in creation order, their
// CREATE TABLE statements and a function executing them.
func (g *JenniferGenerator) genSchema() (*jen.File, error) {
	tables, err := schema.Tables(g.graph)
	if err != nil {
		return nil, err
	}
	stmts, err := schema.Statements(tables, true)
	if err != nil {
		return nil, err
	}
	names := make([]jen.Code, len(tables))
	for i, t := range tables {
		names[i] = jen.Lit(t.Name)
	}
	lits := make([]jen.Code, len(stmts))
	for i, s := range stmts {
		lits[i] = jen.Line().Lit(s)
	}

	f := g.newFile(g.pkg)
	f.Comment("Tables lists the tables of the schema in creation order.")
	f.Var().Id("Tables").Op("=").Index().String().Values(names...)
	f.Comment("Schema holds the statements creating the tables, in order. Existing")
	f.Comment("tables are left untouched.")
	f.Var().Id("Schema").Op("=").Index().String().Values(append(lits, jen.Line())...)
	f.Comment("Create executes the statements of Schema on drv.")
	f.Func().Id("Create").Params(
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("drv").Qual(dialectPkg, "ExecQuerier"),
	).Error().Block(
		jen.For(jen.List(jen.Id("_"), jen.Id("stmt")).Op(":=").Range().Id("Schema")).Block(
			jen.If(
				jen.Err().Op(":=").Id("drv").Dot("Exec").Call(jen.Id("ctx"), jen.Id("stmt"), jen.Index().Any().Values(), jen.Nil()),
				jen.Err().Op("!=").Nil(),
			).Block(
				jen.Return(jen.Qual("fmt", "Errorf").Call(jen.Lit("create schema: %w"), jen.Err())),
			),
		),
		jen.Return(jen.Nil()),
	)
	return f, nil
}
