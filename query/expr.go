package query

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"
)

// An Op represents a predicate operator.
type Op int

// Predicate operators.
const (
	OpNot    Op = iota // NOT
	OpAnd              // AND
	OpOr               // OR
	OpIsNull           // IS NULL
	OpEQ               // =
	OpLT               // <
	OpLTE              // <=
	OpGT               // >
	OpGTE              // >=
	OpLike             // LIKE
	OpGlob             // GLOB
)

var ops = [...]string{
	OpNot:    "NOT",
	OpAnd:    "AND",
	OpOr:     "OR",
	OpIsNull: "IS NULL",
	OpEQ:     "=",
	OpLT:     "<",
	OpLTE:    "<=",
	OpGT:     ">",
	OpGTE:    ">=",
	OpLike:   "LIKE",
	OpGlob:   "GLOB",
}

// String returns the SQL text of the operator.
func (o Op) String() string {
	if o >= 0 && int(o) < len(ops) {
		return ops[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Expr is a boolean expression. It is one of *Unary, *Binary or *Compare.
type Expr interface {
	fmt.Stringer
	expr()
}

type (
	// Unary is the negation of an expression.
	Unary struct {
		Op Op // OpNot
		X  Expr
	}

	// Binary is the conjunction or disjunction of two expressions.
	Binary struct {
		Op   Op // OpAnd or OpOr
		X, Y Expr
	}

	// Compare is an atomic comparison between two variables. Y is nil for
	// OpIsNull.
	Compare struct {
		Op   Op
		X, Y Variable
	}
)

func (*Unary) expr()   {}
func (*Binary) expr()  {}
func (*Compare) expr() {}

// String returns the text of the expression.
func (e *Unary) String() string {
	return "NOT (" + text(e.X) + ")"
}

// String returns the text of the expression.
func (e *Binary) String() string {
	return "(" + text(e.X) + " " + e.Op.String() + " " + text(e.Y) + ")"
}

// String returns the text of the expression.
func (e *Compare) String() string {
	if e.Op == OpIsNull {
		return text(e.X) + " IS NULL"
	}
	return text(e.X) + " " + e.Op.String() + " " + text(e.Y)
}

// text renders a missing operand as <nil>. Malformed expressions are
// rejected by the compiler, not by String.
func text(s fmt.Stringer) string {
	if s == nil {
		return "<nil>"
	}
	return s.String()
}

// Variable is a comparison operand: a *Property or a *Literal.
type Variable interface {
	fmt.Stringer
	variable()
}

type (
	// Property references a property of the table aliased Alias. A path
	// longer than one element follows relationships.
	Property struct {
		Alias string
		Path  []string
	}

	// Literal is a constant operand.
	Literal struct {
		V any
	}
)

func (*Property) variable() {}
func (*Literal) variable()  {}

// P parses an alias-qualified property path.
//
//	P("p.country.name") // alias p, path [country name]
func P(path string) *Property {
	parts := strings.Split(path, ".")
	return &Property{Alias: parts[0], Path: parts[1:]}
}

// Value returns a literal operand.
func Value(v any) *Literal {
	return &Literal{V: v}
}

// String returns the dotted path.
func (p *Property) String() string {
	if p == nil {
		return "<nil>"
	}
	return strings.Join(append([]string{p.Alias}, p.Path...), ".")
}

// String returns the literal as it reads in SQLite. Strings are quoted,
// booleans are 0 or 1 and times are Unix milliseconds.
func (l *Literal) String() string {
	if l == nil {
		return "<nil>"
	}
	switch v := l.V.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case []byte:
		return fmt.Sprintf("X'%X'", v)
	case time.Time:
		return strconv.FormatInt(v.UnixMilli(), 10)
	case fmt.Stringer:
		return quote(v.String())
	default:
		return fmt.Sprint(v)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Not returns the negation of x. Negating a negation returns the inner
// expression.
func Not(x Expr) Expr {
	if u, ok := x.(*Unary); ok && u.Op == OpNot {
		return u.X
	}
	return &Unary{Op: OpNot, X: x}
}

// And returns the conjunction of the expressions, folded to the left.
func And(x, y Expr, zs ...Expr) Expr {
	return fold(OpAnd, x, y, zs)
}

// Or returns the disjunction of the expressions, folded to the left.
func Or(x, y Expr, zs ...Expr) Expr {
	return fold(OpOr, x, y, zs)
}

func fold(op Op, x, y Expr, zs []Expr) Expr {
	e := Expr(&Binary{Op: op, X: x, Y: y})
	for _, z := range zs {
		e = &Binary{Op: op, X: e, Y: z}
	}
	return e
}

// Xor is true when exactly one of x and y is.
func Xor(x, y Expr) Expr {
	return Or(And(x, Not(y)), And(Not(x), y))
}

// Nand is the negation of And.
func Nand(x, y Expr) Expr {
	return Not(And(x, y))
}

// Nor is the negation of Or.
func Nor(x, y Expr) Expr {
	return Not(Or(x, y))
}

// Xnor is true when x and y are both true or both false.
func Xnor(x, y Expr) Expr {
	return Or(And(x, y), And(Not(x), Not(y)))
}

// IsNull returns an IS NULL comparison.
func IsNull(x Variable) *Compare {
	return &Compare{Op: OpIsNull, X: x}
}

// NotNull returns the negation of IsNull.
func NotNull(x Variable) Expr {
	return Not(IsNull(x))
}

// EQ returns an equality comparison.
func EQ(x, y Variable) *Compare { return &Compare{Op: OpEQ, X: x, Y: y} }

// NEQ returns the negation of EQ.
func NEQ(x, y Variable) Expr { return Not(EQ(x, y)) }

// LT returns a less-than comparison.
func LT(x, y Variable) *Compare { return &Compare{Op: OpLT, X: x, Y: y} }

// LTE returns a less-or-equal comparison.
func LTE(x, y Variable) *Compare { return &Compare{Op: OpLTE, X: x, Y: y} }

// GT returns a greater-than comparison.
func GT(x, y Variable) *Compare { return &Compare{Op: OpGT, X: x, Y: y} }

// GTE returns a greater-or-equal comparison.
func GTE(x, y Variable) *Compare { return &Compare{Op: OpGTE, X: x, Y: y} }

// Like returns a LIKE pattern match.
func Like(x, pattern Variable) *Compare { return &Compare{Op: OpLike, X: x, Y: pattern} }

// Glob returns a GLOB pattern match.
func Glob(x, pattern Variable) *Compare { return &Compare{Op: OpGlob, X: x, Y: pattern} }

// Simplify removes the double negations nested anywhere in e.
func Simplify(e Expr) Expr {
	switch e := e.(type) {
	case *Unary:
		return Not(Simplify(e.X))
	case *Binary:
		return &Binary{Op: e.Op, X: Simplify(e.X), Y: Simplify(e.Y)}
	default:
		return e
	}
}

// Leaves yields the comparisons of e, depth-first and left-first.
func Leaves(e Expr) iter.Seq[*Compare] {
	return func(yield func(*Compare) bool) {
		walk(e, yield)
	}
}

func walk(e Expr, yield func(*Compare) bool) bool {
	switch e := e.(type) {
	case *Unary:
		return walk(e.X, yield)
	case *Binary:
		return walk(e.X, yield) && walk(e.Y, yield)
	case *Compare:
		return yield(e)
	default:
		return true
	}
}

// Properties yields the property operands of the comparisons of e.
func Properties(e Expr) iter.Seq[*Property] {
	return func(yield func(*Property) bool) {
		for c := range Leaves(e) {
			for _, v := range []Variable{c.X, c.Y} {
				if p, ok := v.(*Property); ok && !yield(p) {
					return
				}
			}
		}
	}
}
