package graph

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// defaultDiscriminator is the discriminator column name used when the
// declaration leaves it empty.
const defaultDiscriminator = "dtype"

// builder accumulates the columns of one entity while the resolution
// stages run. Stages of other entities read it under mu.
type builder struct {
	mu         sync.Mutex
	e          *Entity
	inherited  []*Column
	plain      []*Column
	fks        []*Column
	disc       *Column
	merged     []*Column
	keys       []*Column
	uniques    [][]*Column
	joinTables []*JoinTable
	value      any
}

func (b *builder) primaryKey() []*Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.keys)
}

func (b *builder) discriminator() *Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disc
}

// own returns the columns declared by the entity itself.
func (b *builder) own() []*Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	cols := slices.Concat(b.plain, b.fks)
	if b.disc != nil {
		cols = append(cols, b.disc)
	}
	return cols
}

// columns returns the logical column set.
func (b *builder) columns() []*Column {
	own := b.own()
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Concat(b.inherited, own)
}

// mergedColumns returns the descendants' columns merged so far.
func (b *builder) mergedColumns() []*Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.merged)
}

// freeze moves the resolved state into the entity.
func (b *builder) freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.e
	e.inherited = b.inherited
	e.plain = b.plain
	e.fks = b.fks
	e.Discriminator = b.disc
	e.merged = b.merged
	e.keys = b.keys
	e.uniques = b.uniques
	e.DiscriminatorValue = b.value
}

// stage is one node of the resolution plan.
type stage struct {
	name string
	deps []string
	run  func(context.Context) error
}

// plan is the dependency graph of the resolution stages.
type plan struct {
	stages []*stage
	byName map[string]*stage
}

func (p *plan) add(name string, run func(context.Context) error, deps ...string) {
	if p.byName == nil {
		p.byName = make(map[string]*stage)
	}
	s := &stage{name: name, deps: deps, run: run}
	p.stages = append(p.stages, s)
	p.byName[name] = s
}

// execute runs the stages in waves: every stage whose dependencies are done
// runs concurrently with the others of its wave. Stages left over when no
// stage is ready form a cycle, which is reported as a configuration error.
func (p *plan) execute(ctx context.Context, workers int, logger *slog.Logger) error {
	var (
		indeg      = make(map[string]int, len(p.stages))
		dependents = make(map[string][]string, len(p.stages))
		deps       = make(dependencies, len(p.stages))
		ready      []*stage
		done       int
	)
	for _, s := range p.stages {
		for _, d := range s.deps {
			if _, ok := p.byName[d]; !ok {
				continue
			}
			indeg[s.name]++
			dependents[d] = append(dependents[d], s.name)
			deps[s.name] = append(deps[s.name], d)
		}
	}
	for _, s := range p.stages {
		if indeg[s.name] == 0 {
			ready = append(ready, s)
		}
	}
	for wave := 0; len(ready) > 0; wave++ {
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}
		g, gctx := errgroup.WithContext(ctx)
		if workers > 0 {
			g.SetLimit(workers)
		}
		for _, s := range ready {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return interrupted(err)
				}
				return s.run(gctx)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		logger.Debug("resolution wave done", "wave", wave, "stages", len(ready))
		var next []*stage
		for _, s := range ready {
			for _, name := range dependents[s.name] {
				if indeg[name]--; indeg[name] == 0 {
					next = append(next, p.byName[name])
				}
			}
		}
		slices.SortStableFunc(next, func(a, b *stage) int {
			return slices.Index(p.stages, a) - slices.Index(p.stages, b)
		})
		done += len(ready)
		ready = next
	}
	if done == len(p.stages) {
		return nil
	}
	var left []string
	for _, s := range p.stages {
		if indeg[s.name] > 0 {
			left = append(left, s.name)
		}
	}
	cycle := findCycle(left, deps)
	if cycle == nil {
		cycle = left
	}
	return strata.NewConfigError("", "unsatisfiable resolution order: %s", strings.Join(cycle, " -> "))
}

func interrupted(err error) error {
	return strata.NewFrameworkError("schema resolution", err)
}

// resolver runs the column resolution protocol over the builders.
type resolver struct {
	workers  int
	logger   *slog.Logger
	builders map[*Entity]*builder
}

func stageName(kind string, e *Entity) string {
	return kind + ":" + e.Name
}

// plan lays out the stages of every entity:
//
//	columns:E  own plain columns and the discriminator
//	keys:E     primary key, after keys:parent and keys:target of identifying edges
//	refs:E     foreign keys and association tables, after keys of the targets
//	merge:E    SingleTable descendants' columns, after done:child
//	done:E     discriminator value and collision checks, last
func (r *resolver) plan(entities []*Entity) *plan {
	p := &plan{}
	for _, e := range entities {
		b := r.builders[e]
		p.add(stageName("columns", e), func(ctx context.Context) error { return r.columns(ctx, b) })
	}
	for _, e := range entities {
		b := r.builders[e]
		deps := []string{stageName("columns", e)}
		if e.Parent != nil {
			deps = append(deps, stageName("keys", e.Parent))
		}
		for _, rel := range e.relations {
			if rel.Owning() && rel.PrimaryKey && rel.Rel.ToOne() {
				deps = append(deps, stageName("keys", rel.Target))
			}
		}
		p.add(stageName("keys", e), func(ctx context.Context) error { return r.keys(ctx, b) }, deps...)
	}
	for _, e := range entities {
		b := r.builders[e]
		deps := []string{stageName("keys", e)}
		if e.Parent != nil && e.Strategy == schema.TablePerClass {
			deps = append(deps, stageName("refs", e.Parent))
		}
		for _, rel := range e.relations {
			if rel.Owning() && !rel.PrimaryKey {
				deps = append(deps, stageName("keys", rel.Target))
			}
		}
		p.add(stageName("refs", e), func(ctx context.Context) error { return r.refs(ctx, b) }, deps...)
	}
	for _, e := range entities {
		if e.Strategy != schema.SingleTable || len(e.Children) == 0 {
			continue
		}
		b := r.builders[e]
		deps := []string{stageName("refs", e)}
		for _, c := range e.Children {
			deps = append(deps, stageName("done", c))
		}
		p.add(stageName("merge", e), func(ctx context.Context) error { return r.merge(ctx, b) }, deps...)
	}
	for _, e := range entities {
		b := r.builders[e]
		deps := []string{stageName("refs", e)}
		if e.Strategy == schema.SingleTable && len(e.Children) > 0 {
			deps = append(deps, stageName("merge", e))
		}
		if e.Parent != nil {
			deps = append(deps, stageName("columns", e.Parent))
		}
		for _, rel := range e.relations {
			if !rel.Owning() {
				deps = append(deps, stageName("refs", rel.Mapping.Entity))
			}
		}
		p.add(stageName("done", e), func(ctx context.Context) error { return r.done(ctx, b) }, deps...)
	}
	return p
}

// columns resolves the declared plain columns, one unit of work per column,
// and synthesizes the discriminator column.
func (r *resolver) columns(ctx context.Context, b *builder) error {
	e := b.e
	fields := e.Descriptor.Fields
	cols := make([]*Column, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	if r.workers > 0 {
		g.SetLimit(r.workers)
	}
	for i, f := range fields {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return interrupted(err)
			}
			c, err := plainColumn(e, f)
			if err != nil {
				return err
			}
			cols[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	var disc *Column
	if d := e.Descriptor.Discriminator; d != nil && len(e.Children) > 0 {
		name := d.Column
		if name == "" {
			name = defaultDiscriminator
		}
		// Rows of the entity itself hold NULL.
		disc = &Column{Name: name, Entity: e, Kind: DiscriminatorColumn, Type: d.Type, Nullable: true}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plain, b.disc = cols, disc
	return nil
}

func plainColumn(e *Entity, f *field.Descriptor) (*Column, error) {
	name := f.Column
	if name == "" {
		name = Snake(f.Name)
	}
	if !f.Type.Valid() {
		return nil, strata.NewColumnConfigError(e.Name, name, "invalid type %v", f.Type)
	}
	if f.PrimaryKey && f.Nullable {
		return nil, strata.NewColumnConfigError(e.Name, name, "primary key column cannot be nullable")
	}
	return &Column{
		Name:       name,
		Entity:     e,
		Kind:       PlainColumn,
		Field:      f,
		Type:       f.Type,
		Nullable:   f.Nullable,
		Unique:     f.Unique,
		PrimaryKey: f.PrimaryKey,
		Default:    f.Default,
		Comment:    f.Comment,
	}, nil
}

// keys resolves the primary key. Joined and TablePerClass children copy the
// parent's key in as local columns; SingleTable children share it.
func (r *resolver) keys(_ context.Context, b *builder) error {
	e := b.e
	var inherited, keys []*Column
	if p := e.Parent; p != nil {
		pk := r.builders[p].primaryKey()
		if e.Strategy == schema.SingleTable {
			keys = pk
		} else {
			for _, k := range pk {
				c := inherit(e, k)
				c.PrimaryKey = true
				inherited = append(inherited, c)
			}
			keys = slices.Clone(inherited)
		}
	}
	b.mu.Lock()
	for _, c := range b.plain {
		if c.PrimaryKey {
			keys = append(keys, c)
		}
	}
	b.mu.Unlock()
	var fks []*Column
	for _, rel := range e.relations {
		if !rel.Owning() || !rel.PrimaryKey || !rel.Rel.ToOne() {
			continue
		}
		cols, err := r.foreignKeys(b, rel)
		if err != nil {
			return err
		}
		fks = append(fks, cols...)
		keys = append(keys, cols...)
	}
	if len(keys) == 0 {
		return strata.NewConfigError(e.Name, "no primary key declared")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inherited = inherited
	b.fks = append(b.fks, fks...)
	b.keys = keys
	return nil
}

func inherit(e *Entity, c *Column) *Column {
	return &Column{
		Name:       c.Name,
		Entity:     e,
		Kind:       InheritedColumn,
		References: c,
		Type:       c.Type,
		Nullable:   c.Nullable,
		Unique:     c.Unique,
		Default:    c.Default,
		Comment:    c.Comment,
	}
}

// foreignKeys generates the columns of an owning to-one relation. Their
// types are copied from the target's key columns.
func (r *resolver) foreignKeys(b *builder, rel *Relation) ([]*Column, error) {
	e := b.e
	tk := r.builders[rel.Target].primaryKey()
	names := rel.Descriptor.Columns
	if len(names) > 0 && len(names) != len(tk) {
		return nil, strata.NewColumnConfigError(e.Name, rel.Name,
			"%d foreign-key columns declared for the %d key columns of %s", len(names), len(tk), rel.Target.Name)
	}
	cols := make([]*Column, len(tk))
	for i, k := range tk {
		name := Snake(rel.Name) + "_" + k.Name
		if len(names) > 0 {
			name = names[i]
		}
		cols[i] = &Column{
			Name:       name,
			Entity:     e,
			Kind:       ForeignKeyColumn,
			Relation:   rel,
			References: k,
			Type:       k.Type,
			Nullable:   !rel.Required && !rel.PrimaryKey,
			Unique:     rel.Unique && len(tk) == 1,
			PrimaryKey: rel.PrimaryKey,
			Comment:    rel.Descriptor.Comment,
		}
	}
	if len(cols) == 1 {
		rel.Join = &ForeignKey{Column: cols[0]}
		return cols, nil
	}
	rel.Join = &ForeignKeyGroup{Columns: cols}
	if rel.Unique {
		b.mu.Lock()
		b.uniques = append(b.uniques, cols)
		b.mu.Unlock()
	}
	return cols, nil
}

// refs resolves the foreign keys and association tables of the owning
// relations. TablePerClass children also copy the rest of the parent's
// columns here.
func (r *resolver) refs(_ context.Context, b *builder) error {
	e := b.e
	if p := e.Parent; p != nil && e.Strategy == schema.TablePerClass {
		pb := r.builders[p]
		pk := pb.primaryKey()
		var rest []*Column
		for _, c := range pb.columns() {
			if !slices.Contains(pk, c) {
				rest = append(rest, inherit(e, c))
			}
		}
		b.mu.Lock()
		b.inherited = append(b.inherited, rest...)
		b.mu.Unlock()
	}
	for _, rel := range e.relations {
		if !rel.Owning() || rel.PrimaryKey {
			continue
		}
		switch rel.Rel {
		case edge.M2O, edge.O2O:
			cols, err := r.foreignKeys(b, rel)
			if err != nil {
				return err
			}
			b.mu.Lock()
			b.fks = append(b.fks, cols...)
			b.mu.Unlock()
		case edge.M2M:
			jt, err := r.joinTable(b, rel)
			if err != nil {
				return err
			}
			b.mu.Lock()
			b.joinTables = append(b.joinTables, jt)
			b.mu.Unlock()
		}
	}
	return nil
}

func (r *resolver) joinTable(b *builder, rel *Relation) (*JoinTable, error) {
	e := b.e
	name := rel.Descriptor.JoinTable
	if name == "" {
		name = e.TableOwner().Table + "_" + Snake(rel.Name)
	}
	jt := &JoinTable{Name: name, Relation: rel, OnUpdate: rel.OnUpdate, OnDelete: rel.OnDelete}
	for _, k := range b.primaryKey() {
		jt.Owner = append(jt.Owner, &Column{
			Name: Snake(e.Name) + "_" + k.Name, Entity: e, Kind: ForeignKeyColumn, Relation: rel,
			References: k, Type: k.Type, PrimaryKey: true,
		})
	}
	for _, k := range r.builders[rel.Target].primaryKey() {
		jt.Target = append(jt.Target, &Column{
			Name: Snake(rel.Name) + "_" + k.Name, Entity: e, Kind: ForeignKeyColumn, Relation: rel,
			References: k, Type: k.Type, PrimaryKey: true,
		})
	}
	if c, ok := duplicate(jt.Columns()); ok {
		return nil, strata.NewColumnConfigError(e.Name, c, "duplicate column name in association table %s", name)
	}
	rel.Join = jt
	return jt, nil
}

// merge collects the columns of all descendants into a SingleTable parent.
func (r *resolver) merge(_ context.Context, b *builder) error {
	var merged []*Column
	for _, c := range b.e.Children {
		cb := r.builders[c]
		merged = append(merged, cb.own()...)
		merged = append(merged, cb.mergedColumns()...)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.merged = merged
	return nil
}

// done binds the inverse relations, parses the discriminator value into
// the parent's discriminator type and checks the flattened table.
func (r *resolver) done(_ context.Context, b *builder) error {
	e := b.e
	for _, rel := range e.relations {
		if !rel.Owning() {
			rel.Join = rel.Mapping.Join
		}
	}
	if p := e.Parent; p != nil {
		disc := r.builders[p].discriminator()
		v, err := field.Parse(disc.Type, e.Descriptor.DiscriminatorValue)
		if err != nil {
			return &strata.ConfigError{
				Entity:  e.Name,
				Column:  disc.Name,
				Message: "invalid discriminator value " + strconv.Quote(e.Descriptor.DiscriminatorValue),
				Cause:   err,
			}
		}
		b.mu.Lock()
		b.value = v
		b.mu.Unlock()
	}
	uniques, err := r.uniques(b)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.uniques = append(b.uniques, uniques...)
	b.mu.Unlock()
	if e.HasTable() {
		cols := append(b.columns(), b.mergedColumns()...)
		if c, ok := duplicate(cols); ok {
			return strata.NewColumnConfigError(e.Name, c, "duplicate column name in table %s", e.Table)
		}
	}
	return nil
}

// uniques resolves the composite unique constraints to columns.
func (r *resolver) uniques(b *builder) ([][]*Column, error) {
	e := b.e
	own := b.own()
	var out [][]*Column
	for _, props := range e.Descriptor.Uniques {
		var group []*Column
		for _, prop := range props {
			var found []*Column
			for _, c := range own {
				if (c.Kind == PlainColumn && c.Field.Name == prop) || (c.Kind == ForeignKeyColumn && c.Relation.Name == prop) {
					found = append(found, c)
				}
			}
			if len(found) == 0 {
				return nil, strata.NewColumnConfigError(e.Name, prop, "unique constraint on unknown property")
			}
			group = append(group, found...)
		}
		out = append(out, group)
	}
	return out, nil
}

// duplicate reports the first column name used twice, comparing names
// case-insensitively.
func duplicate(cols []*Column) (string, bool) {
	fold := cases.Fold()
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		k := fold.String(c.Name)
		if seen[k] {
			return c.Name, true
		}
		seen[k] = true
	}
	return "", false
}
