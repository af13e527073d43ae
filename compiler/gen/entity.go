package gen

import (
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/schema/field"
)

const (
	queryPkg = "github.com/syssam/strata/query"
	uuidPkg  = "github.com/google/uuid"
)

// genEntity renders the file of e: its names as constants and the typed
// accessor of its properties.
func (g *JenniferGenerator) genEntity(e *graph.Entity) (*jen.File, error) {
	name, err := ident(e.Name)
	if err != nil {
		return nil, err
	}
	f := g.newFile(g.pkg)
	cols, err := columnConsts(e, name)
	if err != nil {
		return nil, err
	}
	table := e.TableOwner().Table
	defs := []jen.Code{
		jen.Comment(fmt.Sprintf("%sEntity is the name of the %s entity.", name, e.Name)),
		jen.Id(name + "Entity").Op("=").Lit(e.Name),
		jen.Comment(fmt.Sprintf("%sTable is the table holding the columns of %s.", name, e.Name)),
		jen.Id(name + "Table").Op("=").Lit(table),
	}
	f.Const().Defs(append(defs, cols...)...)

	var names []jen.Code
	for _, c := range columns(e) {
		names = append(names, jen.Lit(c.Name))
	}
	f.Commentf("%sColumns lists the columns of %s declared by %s.", name, table, e.Name)
	f.Var().Id(name + "Columns").Op("=").Index().String().Values(names...)

	props := name + "Properties"
	f.Commentf("%s addresses the properties of %s under a query alias.", props, e.Name)
	f.Type().Id(props).String()
	f.Commentf("%sAt returns the properties of %s selected under alias.", name, e.Name)
	f.Func().Id(name + "At").Params(jen.Id("alias").String()).Id(props).Block(
		jen.Return(jen.Id(props).Call(jen.Id("alias"))),
	)
	f.Commentf("Select%s returns a query selecting the %s objects under alias.", name, e.Name)
	f.Func().Id("Select"+name).Params(jen.Id("alias").String()).Op("*").Qual(queryPkg, "Query").Block(
		jen.Return(jen.Qual(queryPkg, "Select").Call(jen.Id("alias")).Dot("From").Call(
			jen.Qual(queryPkg, "From").Call(jen.Id(name+"Entity"), jen.Id("alias")),
		)),
	)
	methods, err := propertyMethods(e, props)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		f.Line()
		f.Add(m)
	}
	return f, nil
}

// columns returns the columns of the table of e declared by e. An entity
// without a table declares its own columns in the table of its root.
func columns(e *graph.Entity) []*graph.Column {
	if e.HasTable() {
		return e.Columns()
	}
	return e.OwnColumns()
}

func columnConsts(e *graph.Entity, name string) ([]jen.Code, error) {
	var (
		defs []jen.Code
		seen = make(map[string]string)
	)
	for _, c := range columns(e) {
		id, err := ident(c.Name)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		id = name + "Column" + id
		if other, ok := seen[id]; ok {
			return nil, fmt.Errorf("columns %s and %s both map to %s", other, c.Name, id)
		}
		seen[id] = c.Name
		defs = append(defs, jen.Comment(id+" "+describe(c)+"."), jen.Id(id).Op("=").Lit(c.Name))
	}
	return defs, nil
}

func describe(c *graph.Column) string {
	switch o := c.Origin(); {
	case c.Kind == graph.DiscriminatorColumn:
		return "holds the discriminator of the children"
	case o.Kind == graph.PlainColumn && c.Kind == graph.InheritedColumn:
		return fmt.Sprintf("holds the copy of the %s property of %s", o.Field.Name, o.Entity.Name)
	case c.Kind == graph.InheritedColumn:
		return "holds the copy of the column " + o.String()
	case c.Kind == graph.ForeignKeyColumn:
		return fmt.Sprintf("holds the foreign key of the %s relationship", c.Relation.Name)
	default:
		return fmt.Sprintf("holds the %s property", c.Field.Name)
	}
}

// propertyMethods renders an accessor per field of e and per relationship
// declared by e or an ancestor. Relationship accessors return the
// properties of the target, extending the path.
func propertyMethods(e *graph.Entity, props string) ([]jen.Code, error) {
	var (
		methods []jen.Code
		seen    = make(map[string]string)
	)
	add := func(prop string, ret jen.Code, val jen.Code, doc string) error {
		id, err := ident(prop)
		if err != nil {
			return fmt.Errorf("property %s: %w", prop, err)
		}
		if other, ok := seen[id]; ok {
			return fmt.Errorf("properties %s and %s both map to %s", other, prop, id)
		}
		seen[id] = prop
		methods = append(methods, jen.Comment(id+" "+doc).Line().
			Func().Params(jen.Id("p").Id(props)).Id(id).Params().Add(ret).Block(jen.Return(val)))
		return nil
	}
	path := func(prop string) *jen.Statement {
		return jen.String().Call(jen.Id("p")).Op("+").Lit("." + prop)
	}
	for _, c := range e.FieldColumns() {
		prop := c.Origin().Field.Name
		typ := jen.Qual(queryPkg, "Field").Types(goType(c.Type))
		val := jen.Qual(queryPkg, "Field").Types(goType(c.Type)).Call(path(prop))
		if err := add(prop, typ, val, fmt.Sprintf("is the %s property, stored in %s.", prop, c.Name)); err != nil {
			return nil, err
		}
	}
	for _, x := range append([]*graph.Entity{e}, e.Ancestors()...) {
		for _, r := range x.Relations() {
			target, err := ident(r.Target.Name)
			if err != nil {
				return nil, fmt.Errorf("relation %s: %w", r.Name, err)
			}
			ret := jen.Id(target + "Properties")
			val := jen.Id(target + "Properties").Call(path(r.Name))
			if err := add(r.Name, ret, val, fmt.Sprintf("follows the %s relationship to %s.", r.Name, r.Target.Name)); err != nil {
				return nil, err
			}
		}
	}
	return methods, nil
}

// goType returns the Go type of the values of a column of type t.
func goType(t field.Type) jen.Code {
	switch t {
	case field.TypeBool:
		return jen.Bool()
	case field.TypeTime:
		return jen.Qual("time", "Time")
	case field.TypeUUID:
		return jen.Qual(uuidPkg, "UUID")
	case field.TypeBytes:
		return jen.Index().Byte()
	case field.TypeEnum, field.TypeString:
		return jen.String()
	case field.TypeInt8:
		return jen.Int8()
	case field.TypeInt16:
		return jen.Int16()
	case field.TypeInt32:
		return jen.Int32()
	case field.TypeInt:
		return jen.Int()
	case field.TypeInt64:
		return jen.Int64()
	case field.TypeUint8:
		return jen.Uint8()
	case field.TypeUint16:
		return jen.Uint16()
	case field.TypeUint32:
		return jen.Uint32()
	case field.TypeUint:
		return jen.Uint()
	case field.TypeUint64:
		return jen.Uint64()
	case field.TypeFloat32:
		return jen.Float32()
	case field.TypeFloat64:
		return jen.Float64()
	default:
		return jen.Any()
	}
}
