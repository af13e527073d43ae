package query

import "fmt"

// Node is an element of a FROM tree: a *Table or a *Join. Trees are
// left-deep: the right side of a join is always a table.
type Node interface {
	fmt.Stringer
	// Join returns an inner join of the node with the entity.
	Join(entity, alias string, cond Cond) *Join
	// LeftJoin returns a left outer join of the node with the entity.
	LeftJoin(entity, alias string, cond Cond) *Join
	node()
}

// Table references an entity under an alias.
type Table struct {
	Entity string
	Alias  string
}

// From returns a table reference.
func From(entity, alias string) *Table {
	return &Table{Entity: entity, Alias: alias}
}

// JoinType is the type of a join.
type JoinType int

// Join types.
const (
	Inner JoinType = iota
	Left
)

// String returns the SQL keyword of the join type.
func (t JoinType) String() string {
	if t == Left {
		return "LEFT"
	}
	return "INNER"
}

// Join joins a tree with a table.
type Join struct {
	Left  Node
	Right *Table
	Type  JoinType
	Cond  Cond
}

func (*Table) node() {}
func (*Join) node()  {}

// Join implements Node.
func (t *Table) Join(entity, alias string, cond Cond) *Join {
	return join(t, Inner, entity, alias, cond)
}

// LeftJoin implements Node.
func (t *Table) LeftJoin(entity, alias string, cond Cond) *Join {
	return join(t, Left, entity, alias, cond)
}

// Join implements Node.
func (j *Join) Join(entity, alias string, cond Cond) *Join {
	return join(j, Inner, entity, alias, cond)
}

// LeftJoin implements Node.
func (j *Join) LeftJoin(entity, alias string, cond Cond) *Join {
	return join(j, Left, entity, alias, cond)
}

func join(left Node, typ JoinType, entity, alias string, cond Cond) *Join {
	return &Join{Left: left, Right: From(entity, alias), Type: typ, Cond: cond}
}

// String returns "Entity AS alias".
func (t *Table) String() string {
	return t.Entity + " AS " + t.Alias
}

// String returns the join with its left side parenthesized.
func (j *Join) String() string {
	return "(" + j.Left.String() + ") " + j.Type.String() + " JOIN " + j.Right.String() + " ON " + j.Cond.String()
}

// Tables returns the tables of the tree, left first.
func Tables(n Node) []*Table {
	switch n := n.(type) {
	case *Table:
		return []*Table{n}
	case *Join:
		return append(Tables(n.Left), n.Right)
	default:
		return nil
	}
}

// Cond is a join condition: an *Explicit predicate or a relationship
// followed *Via a property.
type Cond interface {
	fmt.Stringer
	cond()
}

type (
	// Explicit is a join condition given as an expression.
	Explicit struct {
		Expr Expr
	}

	// Relationship is a join condition derived from the relationship
	// Property of the entity aliased Alias.
	Relationship struct {
		Alias    string
		Property string
	}
)

func (*Explicit) cond()     {}
func (*Relationship) cond() {}

// On returns an explicit join condition.
func On(e Expr) Cond {
	return &Explicit{Expr: e}
}

// Via returns a join condition following the relationship property of the
// table aliased alias.
func Via(alias, property string) Cond {
	return &Relationship{Alias: alias, Property: property}
}

// String returns the expression.
func (c *Explicit) String() string {
	return c.Expr.String()
}

// String returns "alias.property".
func (c *Relationship) String() string {
	return c.Alias + "." + c.Property
}
