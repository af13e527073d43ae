package sqlgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// Row is a result row keyed by column label.
type Row = map[string]any

// Materializer builds objects from the rows of compiled queries. To-one
// relationships are loaded eagerly with one query per relationship, to-many
// relationships are bound to lists loaded on first access.
type Materializer struct {
	g      *graph.Graph
	c      *Compiler
	drv    dialect.ExecQuerier
	logger *slog.Logger
}

// NewMaterializer returns a materializer running its relationship queries
// on drv.
func NewMaterializer(g *graph.Graph, drv dialect.ExecQuerier) *Materializer {
	c := NewCompiler(g)
	return &Materializer{g: g, c: c, drv: drv, logger: c.logger}
}

// Compiler returns the compiler of the relationship queries.
func (m *Materializer) Compiler() *Compiler { return m.c }

// Materialize builds the object of one row selected under alias. The
// object has the type of the most derived entity the discriminators of
// the row designate.
func (m *Materializer) Materialize(ctx context.Context, row Row, entity, alias string) (any, error) {
	s, err := m.scope(entity, alias)
	if err != nil {
		return nil, err
	}
	obj, _, err := m.session().materialize(ctx, row, s)
	return obj, err
}

// MaterializeAll builds the objects of rows. Rows designating the same
// object share one instance. The first failing row aborts the result.
func (m *Materializer) MaterializeAll(ctx context.Context, rows []Row, entity, alias string) ([]any, error) {
	s, err := m.scope(entity, alias)
	if err != nil {
		return nil, err
	}
	objs, _, err := m.session().materializeAll(ctx, rows, s)
	return objs, err
}

// Query runs the compiled statement and returns its rows.
func (m *Materializer) Query(ctx context.Context, stmt string) ([]Row, error) {
	rows := &sql.Rows{}
	if err := m.drv.Query(ctx, stmt, []any{}, rows); err != nil {
		return nil, err
	}
	return sql.ScanMaps(rows)
}

func (m *Materializer) scope(entity, alias string) (*scope, error) {
	e, ok := m.g.Entity(entity)
	if !ok {
		return nil, strata.NewMaterializeError(entity, "", errors.New("unknown entity"))
	}
	return &scope{alias: alias, e: e}, nil
}

func (m *Materializer) session() *session {
	return &session{m: m, objects: make(map[string]instance)}
}

// An instance is a materialized object and its most derived entity.
type instance struct {
	obj  any
	leaf *graph.Entity
}

// A session is one materialization call. Its identity map reuses the
// objects already built for a root entity and key, or for a concrete
// entity and key under TablePerClass.
type session struct {
	m       *Materializer
	mu      sync.Mutex
	objects map[string]instance
}

func (ss *session) materializeAll(ctx context.Context, rows []Row, s *scope) ([]any, []*graph.Entity, error) {
	objs := make([]any, 0, len(rows))
	leaves := make([]*graph.Entity, 0, len(rows))
	for _, row := range rows {
		obj, leaf, err := ss.materialize(ctx, row, s)
		if err != nil {
			return nil, nil, err
		}
		objs = append(objs, obj)
		leaves = append(leaves, leaf)
	}
	return objs, leaves, nil
}

func (ss *session) materialize(ctx context.Context, row Row, s *scope) (any, *graph.Entity, error) {
	leaf, err := discriminate(row, s)
	if err != nil {
		return nil, nil, err
	}
	key, err := identity(row, s, leaf)
	if err != nil {
		return nil, nil, err
	}
	ss.mu.Lock()
	if in, ok := ss.objects[key]; ok {
		ss.mu.Unlock()
		return in.obj, in.leaf, nil
	}
	obj := leaf.New()
	ss.objects[key] = instance{obj: obj, leaf: leaf}
	ss.mu.Unlock()

	levels := make(map[*graph.Entity]any)
	level := func(x *graph.Entity) (any, error) {
		if v, ok := levels[x]; ok {
			return v, nil
		}
		v, err := leaf.Upcast(obj, x)
		if err != nil {
			return nil, err
		}
		levels[x] = v
		return v, nil
	}
	for _, c := range leaf.FieldColumns() {
		o := c.Origin()
		v, ok := row[s.label(c)]
		if !ok {
			return nil, nil, strata.NewMaterializeError(leaf.Name, o.Field.Name, fmt.Errorf("column %q not selected", s.label(c)))
		}
		target, err := level(o.Entity)
		if err != nil {
			return nil, nil, strata.NewMaterializeError(leaf.Name, o.Field.Name, err)
		}
		if err := o.Field.Set(target, v); err != nil {
			return nil, nil, strata.NewMaterializeError(leaf.Name, o.Field.Name, err)
		}
	}
	if err := ss.relations(ctx, row, s, leaf, level); err != nil {
		return nil, nil, err
	}
	return obj, leaf, nil
}

// relations loads the to-one relationships of the object concurrently and
// binds its to-many relationships. Fields are set once every load
// succeeded; the first failure cancels the other loads.
func (ss *session) relations(ctx context.Context, row Row, s *scope, leaf *graph.Entity, level func(*graph.Entity) (any, error)) error {
	type loaded struct {
		r      *graph.Relation
		holder any
		vals   []any
		target any
	}
	var toOne []*loaded
	for _, x := range append([]*graph.Entity{leaf}, leaf.Ancestors()...) {
		for _, r := range x.Relations() {
			holder, err := level(x)
			if err != nil {
				return strata.NewMaterializeError(leaf.Name, r.Name, err)
			}
			vals, err := nearValues(row, s, r)
			if err != nil {
				return strata.NewMaterializeError(leaf.Name, r.Name, err)
			}
			switch {
			case r.Rel.ToMany():
				if err := r.Descriptor.Bind(holder, ss.m.loader(r, vals)); err != nil {
					return strata.NewMaterializeError(leaf.Name, r.Name, err)
				}
			case !allNil(vals):
				toOne = append(toOne, &loaded{r: r, holder: holder, vals: vals})
			}
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	if n := ss.m.g.Workers(); n > 0 {
		g.SetLimit(n)
	}
	for _, l := range toOne {
		g.Go(func() error {
			target, err := ss.one(gctx, l.r, l.vals)
			if err != nil {
				return strata.NewMaterializeError(leaf.Name, l.r.Name, err)
			}
			l.target = target
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, l := range toOne {
		if l.target == nil {
			continue
		}
		if err := l.r.Descriptor.Set(l.holder, l.target); err != nil {
			return strata.NewMaterializeError(leaf.Name, l.r.Name, err)
		}
	}
	return nil
}

// one loads the target of a to-one relationship, upcast to the target
// entity of the relationship. It returns nil if no row matches.
func (ss *session) one(ctx context.Context, r *graph.Relation, vals []any) (any, error) {
	stmt, ts, err := ss.m.c.related(r, vals)
	if err != nil {
		return nil, err
	}
	ss.m.logger.DebugContext(ctx, "load relationship", "relation", r.String(), "sql", stmt)
	rows, err := ss.m.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, strata.NewNotSingularErrorWithCount(r.Target.Name, len(rows))
	}
	obj, leaf, err := ss.materialize(ctx, rows[0], ts)
	if err != nil {
		return nil, err
	}
	return leaf.Upcast(obj, r.Target)
}

// loader returns the deferred loader of a to-many relationship. Each load
// is a new session.
func (m *Materializer) loader(r *graph.Relation, vals []any) func(context.Context) ([]any, error) {
	return func(ctx context.Context) ([]any, error) {
		stmt, ts, err := m.c.related(r, vals)
		if err != nil {
			return nil, err
		}
		m.logger.DebugContext(ctx, "load relationship", "relation", r.String(), "sql", stmt)
		rows, err := m.Query(ctx, stmt)
		if err != nil {
			return nil, err
		}
		objs, leaves, err := m.session().materializeAll(ctx, rows, ts)
		if err != nil {
			return nil, err
		}
		for i, obj := range objs {
			if objs[i], err = leaves[i].Upcast(obj, r.Target); err != nil {
				return nil, err
			}
		}
		return objs, nil
	}
}

// discriminate walks the discriminators of the row down from the scope
// entity. A NULL discriminator stops the walk.
func discriminate(row Row, s *scope) (*graph.Entity, error) {
	x := s.e
	for x.Discriminator != nil && len(x.Children) > 0 {
		raw := row[s.label(x.Discriminator)]
		if raw == nil {
			break
		}
		v, err := field.Canonical(x.Discriminator.Type, raw)
		if err != nil {
			return nil, strata.NewMaterializeError(x.Name, x.Discriminator.Name, err)
		}
		var next *graph.Entity
		for _, c := range x.Children {
			if sameValue(c.DiscriminatorValue, v) {
				next = c
				break
			}
		}
		if next == nil {
			return nil, strata.NewMaterializeError(x.Name, x.Discriminator.Name, fmt.Errorf("no child of %s has the discriminator value %v", x.Name, v))
		}
		x = next
	}
	return x, nil
}

// identity returns the identity-map key of the row: the root entity and
// the primary-key values. Under TablePerClass every concrete entity has its
// own key space, so the leaf entity is part of the key.
func identity(row Row, s *scope, leaf *graph.Entity) (string, error) {
	var b strings.Builder
	b.WriteString(s.e.Root().Name)
	if s.e.Strategy == schema.TablePerClass {
		b.WriteString("\x00" + leaf.Name)
	}
	for _, k := range s.e.PrimaryKey() {
		v, err := field.Canonical(k.Type, row[s.label(k)])
		if err != nil {
			return "", strata.NewMaterializeError(s.e.Name, k.Name, err)
		}
		if v == nil {
			return "", strata.NewMaterializeError(s.e.Name, k.Name, errors.New("NULL primary key"))
		}
		fmt.Fprintf(&b, "\x00%v", v)
	}
	return b.String(), nil
}

// nearValues reads the values selecting the related rows of r.
func nearValues(row Row, s *scope, r *graph.Relation) ([]any, error) {
	cols := nearColumns(r)
	vals := make([]any, len(cols))
	for i, c := range cols {
		v, ok := row[s.label(c)]
		if !ok {
			return nil, fmt.Errorf("column %q not selected", s.label(c))
		}
		cv, err := field.Canonical(c.Type, v)
		if err != nil {
			return nil, err
		}
		vals[i] = cv
	}
	return vals, nil
}

func allNil(vs []any) bool {
	for _, v := range vs {
		if v != nil {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	switch a := a.(type) {
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && a.Equal(bt)
	case []byte:
		bb, ok := b.([]byte)
		return ok && bytes.Equal(a, bb)
	default:
		return a == b
	}
}
