package query

import (
	"slices"
	"strconv"
	"strings"
)

// Query selects the objects of one aliased table of a FROM tree. Builder
// methods return modified copies; a Query is never changed in place.
type Query struct {
	alias  string
	root   Node
	filter Expr
	order  []Order
	limit  int
	offset int
}

// Select returns a query materializing the table aliased alias.
func Select(alias string) *Query {
	return &Query{alias: alias, limit: -1}
}

// From returns a copy of q reading from the tree n.
func (q *Query) From(n Node) *Query {
	c := q.clone()
	c.root = n
	return c
}

// Where returns a copy of q filtered by e. Successive filters are ANDed.
func (q *Query) Where(e Expr) *Query {
	c := q.clone()
	if c.filter == nil {
		c.filter = e
	} else {
		c.filter = And(c.filter, e)
	}
	return c
}

// OrderBy returns a copy of q with the ordering terms appended.
func (q *Query) OrderBy(terms ...Order) *Query {
	c := q.clone()
	c.order = append(c.order, terms...)
	return c
}

// Limit returns a copy of q returning at most n objects.
func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = n
	return c
}

// Offset returns a copy of q skipping the first n objects.
func (q *Query) Offset(n int) *Query {
	c := q.clone()
	c.offset = n
	return c
}

func (q *Query) clone() *Query {
	c := *q
	c.order = slices.Clone(q.order)
	return &c
}

// Alias returns the alias of the selected table.
func (q *Query) Alias() string { return q.alias }

// Root returns the FROM tree, nil if unset.
func (q *Query) Root() Node { return q.root }

// Filter returns the WHERE expression, nil if unset.
func (q *Query) Filter() Expr { return q.filter }

// Ordering returns the ORDER BY terms.
func (q *Query) Ordering() []Order { return slices.Clone(q.order) }

// Window returns the limit, negative if unset, and the offset.
func (q *Query) Window() (limit, offset int) { return q.limit, q.offset }

// String returns a readable form of the query.
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString("SELECT " + q.alias)
	if q.root != nil {
		b.WriteString(" FROM " + q.root.String())
	}
	if q.filter != nil {
		b.WriteString(" WHERE " + q.filter.String())
	}
	if len(q.order) > 0 {
		terms := make([]string, len(q.order))
		for i, o := range q.order {
			terms[i] = o.String()
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if q.limit >= 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(q.offset))
	}
	return b.String()
}

// Order is an ORDER BY term.
type Order struct {
	Property *Property
	Desc     bool
}

// Asc orders by the property path in ascending order.
func Asc(path string) Order {
	return Order{Property: P(path)}
}

// Desc orders by the property path in descending order.
func Desc(path string) Order {
	return Order{Property: P(path), Desc: true}
}

// String returns the term.
func (o Order) String() string {
	if o.Desc {
		return o.Property.String() + " DESC"
	}
	return o.Property.String() + " ASC"
}
