package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sqlschema"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
)

// Build resolves the given definitions into a Graph.
//
// Declarations are validated first and all problems found are reported
// together. The column resolution protocol then runs in concurrent waves;
// its first failure aborts the construction. Every failure is a
// *strata.ConfigError, except for context cancellation, which is reported
// as a *strata.FrameworkError.
func Build(ctx context.Context, defs []schema.Definition, opts ...strata.Option) (*Graph, error) {
	cfg := strata.NewConfig(opts...)
	g := &Graph{
		byName:  make(map[string]*Entity, len(defs)),
		logger:  cfg.Logger,
		workers: cfg.Workers,
	}
	if err := g.declare(defs); err != nil {
		return nil, err
	}
	r := &resolver{
		workers:  cfg.Workers,
		logger:   cfg.Logger,
		builders: make(map[*Entity]*builder, len(g.entities)),
	}
	for _, e := range g.entities {
		r.builders[e] = &builder{e: e}
	}
	if err := r.plan(g.entities).execute(ctx, cfg.Workers, cfg.Logger); err != nil {
		return nil, err
	}
	for _, e := range g.entities {
		b := r.builders[e]
		b.freeze()
		g.joinTables = append(g.joinTables, b.joinTables...)
	}
	if err := g.checkValues(); err != nil {
		return nil, err
	}
	g.logger.Debug("schema resolved", "entities", len(g.entities), "join_tables", len(g.joinTables))
	return g, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(defs []schema.Definition, opts ...strata.Option) *Graph {
	g, err := Build(context.Background(), defs, opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// declare validates the definitions and creates the entities, the
// hierarchy links and the relations.
func (g *Graph) declare(defs []schema.Definition) error {
	var errs []error
	for _, def := range defs {
		d := def.Descriptor()
		if err := validate(d); err != nil {
			errs = append(errs, err...)
			continue
		}
		if _, ok := g.byName[d.Name]; ok {
			errs = append(errs, strata.NewConfigError(d.Name, "entity declared twice"))
			continue
		}
		e := &Entity{Name: d.Name, Comment: d.Comment, Descriptor: d}
		g.entities = append(g.entities, e)
		g.byName[d.Name] = e
	}
	if len(errs) > 0 {
		return strata.NewAggregateError(errs...)
	}
	for _, e := range g.entities {
		if e.Descriptor.Parent == "" {
			continue
		}
		p, ok := g.byName[e.Descriptor.Parent]
		if !ok {
			errs = append(errs, strata.NewConfigError(e.Name, "unknown parent entity %q", e.Descriptor.Parent))
			continue
		}
		e.Parent = p
		p.Children = append(p.Children, e)
	}
	for _, e := range g.entities {
		if err := acyclic(e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return strata.NewAggregateError(errs...)
	}
	for _, e := range g.entities {
		errs = append(errs, g.hierarchy(e)...)
	}
	for _, e := range g.entities {
		errs = append(errs, g.relations(e)...)
	}
	if len(errs) > 0 {
		return strata.NewAggregateError(errs...)
	}
	for _, e := range g.entities {
		errs = append(errs, g.mappings(e)...)
	}
	return strata.NewAggregateError(errs...)
}

// validate reports the declaration errors of a descriptor.
func validate(d *schema.Descriptor) []error {
	var errs []error
	if d.Err != nil {
		errs = append(errs, &strata.ConfigError{Entity: d.Name, Message: "invalid declaration", Cause: d.Err})
	}
	props := make(map[string]bool)
	for _, f := range d.Fields {
		if f.Err != nil {
			errs = append(errs, &strata.ConfigError{Entity: d.Name, Column: f.Name, Message: "invalid field", Cause: f.Err})
		}
		if props[f.Name] {
			errs = append(errs, strata.NewColumnConfigError(d.Name, f.Name, "property declared twice"))
		}
		props[f.Name] = true
	}
	for _, ed := range d.Edges {
		if ed.Err != nil {
			errs = append(errs, &strata.ConfigError{Entity: d.Name, Column: ed.Name, Message: "invalid edge", Cause: ed.Err})
		}
		if props[ed.Name] {
			errs = append(errs, strata.NewColumnConfigError(d.Name, ed.Name, "property declared twice"))
		}
		props[ed.Name] = true
	}
	return errs
}

// acyclic reports an inheritance chain that loops back to e.
func acyclic(e *Entity) error {
	seen := map[*Entity]bool{e: true}
	for p := e.Parent; p != nil; p = p.Parent {
		if seen[p] {
			return strata.NewConfigError(e.Name, "inheritance cycle through %s", p.Name)
		}
		seen[p] = true
	}
	return nil
}

// hierarchy resolves the strategy, the table name and the discriminator
// declarations of e.
func (g *Graph) hierarchy(e *Entity) []error {
	var (
		errs []error
		d    = e.Descriptor
		root = e.Root()
	)
	e.Strategy = root.Descriptor.Strategy
	if e.Strategy == schema.StrategyUnset {
		e.Strategy = schema.SingleTable
	}
	if d.Strategy != schema.StrategyUnset && d.Strategy != e.Strategy {
		errs = append(errs, strata.NewConfigError(e.Name, "strategy %s differs from the %s strategy of root %s", d.Strategy, e.Strategy, root.Name))
	}
	switch {
	case e.Parent != nil && e.Strategy == schema.SingleTable:
		if d.Table != "" {
			g.logger.Warn("table name ignored on a single-table child", slog.String("entity", e.Name), slog.String("table", d.Table))
		}
		for _, f := range d.Fields {
			if f.PrimaryKey {
				errs = append(errs, strata.NewColumnConfigError(e.Name, f.Name, "primary key must be declared on the root of a single-table hierarchy"))
			}
		}
		for _, ed := range d.Edges {
			if ed.PrimaryKey {
				errs = append(errs, strata.NewColumnConfigError(e.Name, ed.Name, "primary key must be declared on the root of a single-table hierarchy"))
			}
		}
	case d.Table != "":
		e.Table = d.Table
	default:
		e.Table = TableName(e.Name)
		g.logger.Warn("entity has no explicit table name", slog.String("entity", e.Name), slog.String("table", e.Table))
	}
	switch {
	case len(e.Children) > 0 && d.Discriminator == nil:
		errs = append(errs, strata.NewConfigError(e.Name, "entity has children but no discriminator column"))
	case len(e.Children) == 0 && d.Discriminator != nil:
		g.logger.Warn("discriminator dropped from an entity without children", slog.String("entity", e.Name))
	}
	if e.Parent != nil && d.DiscriminatorValue == "" {
		errs = append(errs, strata.NewConfigError(e.Name, "missing discriminator value"))
	}
	values := make(map[string]string)
	for _, c := range e.Children {
		v := c.Descriptor.DiscriminatorValue
		if other, ok := values[v]; ok && v != "" {
			errs = append(errs, strata.NewConfigError(e.Name, "children %s and %s share the discriminator value %q", other, c.Name, v))
		}
		values[v] = c.Name
	}
	for _, a := range e.Ancestors() {
		for _, f := range d.Fields {
			if _, _, ok := a.declares(f.Name); ok {
				errs = append(errs, strata.NewColumnConfigError(e.Name, f.Name, "property already declared by %s", a.Name))
			}
		}
		for _, ed := range d.Edges {
			if _, _, ok := a.declares(ed.Name); ok {
				errs = append(errs, strata.NewColumnConfigError(e.Name, ed.Name, "property already declared by %s", a.Name))
			}
		}
	}
	return errs
}

// declares reports whether e declares a property with the given name.
func (e *Entity) declares(name string) (field, edge bool, ok bool) {
	for _, f := range e.Descriptor.Fields {
		if f.Name == name {
			return true, false, true
		}
	}
	for _, ed := range e.Descriptor.Edges {
		if ed.Name == name {
			return false, true, true
		}
	}
	return false, false, false
}

// relations creates the relations declared by e.
func (g *Graph) relations(e *Entity) []error {
	var errs []error
	for _, ed := range e.Descriptor.Edges {
		target, ok := g.byName[ed.Target]
		if !ok {
			errs = append(errs, strata.NewColumnConfigError(e.Name, ed.Name, "unknown target entity %q", ed.Target))
			continue
		}
		// Association tables and key links cascade unless annotated.
		def := sqlschema.NoAction
		if ed.Rel == edge.M2M {
			def = sqlschema.Cascade
		}
		r := &Relation{
			Name:       ed.Name,
			Entity:     e,
			Target:     target,
			Rel:        ed.Rel,
			Required:   ed.Required,
			Unique:     ed.Unique,
			PrimaryKey: ed.PrimaryKey,
			OnUpdate:   ed.Annotation.OnUpdate.Or(def),
			OnDelete:   ed.Annotation.OnDelete.Or(def),
			Descriptor: ed,
		}
		if ed.Owning() {
			r.Mapping = r
		}
		e.relations = append(e.relations, r)
	}
	return errs
}

// mappings links the inverse relations of e to their owning side.
func (g *Graph) mappings(e *Entity) []error {
	var errs []error
	for _, r := range e.relations {
		if r.Mapping != nil {
			continue
		}
		name := r.Descriptor.MappedBy
		m, ok := r.Target.Relation(name)
		switch {
		case !ok:
			errs = append(errs, strata.NewColumnConfigError(e.Name, r.Name, "mapped by unknown relation %s.%s", r.Target.Name, name))
		case !m.Owning():
			errs = append(errs, strata.NewColumnConfigError(e.Name, r.Name, "mapped by %s, which is not an owning relation", m))
		case m.Rel != r.Rel.Inverse():
			errs = append(errs, strata.NewColumnConfigError(e.Name, r.Name, "%s relation mapped by %s relation %s", r.Rel, m.Rel, m))
		case !e.IsA(m.Target):
			errs = append(errs, strata.NewColumnConfigError(e.Name, r.Name, "mapped by %s, which targets %s", m, m.Target.Name))
		default:
			r.Mapping = m
		}
	}
	return errs
}

// checkValues reports siblings whose parsed discriminator values are equal.
func (g *Graph) checkValues() error {
	for _, e := range g.entities {
		seen := make(map[string]string, len(e.Children))
		for _, c := range e.Children {
			k := fmt.Sprint(c.DiscriminatorValue)
			if other, ok := seen[k]; ok {
				return strata.NewConfigError(e.Name, "children %s and %s share the discriminator value %v", other, c.Name, c.DiscriminatorValue)
			}
			seen[k] = c.Name
		}
	}
	return nil
}
