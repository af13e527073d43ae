package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/strata/query"
)

// Decisions a rule returns. Rules may wrap them to explain themselves;
// policies compare with errors.Is.
var (
	Allow = errors.New("strata/privacy: allow rule") // stop, run the query
	Deny  = errors.New("strata/privacy: deny rule")  // stop, fail the query
	Skip  = errors.New("strata/privacy: skip rule")  // ask the next rule
)

func decision(d error, format string, a []any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), d)
}

// Allowf wraps Allow with a reason.
func Allowf(format string, a ...any) error { return decision(Allow, format, a) }

// Denyf wraps Deny with a reason.
func Denyf(format string, a ...any) error { return decision(Deny, format, a) }

// Skipf wraps Skip with a reason.
func Skipf(format string, a ...any) error { return decision(Skip, format, a) }

// Query is the query a policy decides on. Rules may narrow it with Where
// and the client runs whatever the policy leaves.
type Query struct {
	entity string
	q      *query.Query
}

// NewQuery wraps q. Its entity is the one bound to the selected alias in
// the FROM tree, empty when none is.
func NewQuery(q *query.Query) *Query {
	pq := &Query{q: q}
	tables := query.Tables(q.Root())
	if i := slices.IndexFunc(tables, func(t *query.Table) bool { return t.Alias == q.Alias() }); i >= 0 {
		pq.entity = tables[i].Entity
	}
	return pq
}

// Entity is the name of the selected entity.
func (q *Query) Entity() string { return q.entity }

// Query returns the query as narrowed so far.
func (q *Query) Query() *query.Query { return q.q }

// P is a property path under the selected alias.
//
//	q.Where(query.EQ(q.P("tenant"), query.Value(id)))
func (q *Query) P(path string) *query.Property {
	return query.P(q.q.Alias() + "." + path)
}

// Where adds e to the filter of the query.
func (q *Query) Where(e query.Expr) { q.q = q.q.Where(e) }

// QueryRule decides on a query.
type QueryRule interface {
	EvalQuery(context.Context, *Query) error
}

// QueryRuleFunc is a QueryRule written as a function.
type QueryRuleFunc func(context.Context, *Query) error

// EvalQuery calls f.
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q *Query) error { return f(ctx, q) }

// QueryPolicy asks its rules in order until one allows or denies. Nil and
// Skip pass to the next rule, Allow ends with nil and any other error is
// returned as is. A policy nobody objects to allows. A decision stored in
// ctx with DecisionContext overrides the rules.
type QueryPolicy []QueryRule

func (policy QueryPolicy) EvalQuery(ctx context.Context, q *Query) error {
	if d, ok := DecisionFromContext(ctx); ok {
		return d
	}
	for _, rule := range policy {
		d := rule.EvalQuery(ctx, q)
		if d == nil || errors.Is(d, Skip) {
			continue
		}
		if errors.Is(d, Allow) {
			return nil
		}
		return d
	}
	return nil
}

func fixed(d error) QueryRule {
	return QueryRuleFunc(func(context.Context, *Query) error { return d })
}

// AlwaysAllowRule allows every query.
func AlwaysAllowRule() QueryRule { return fixed(Allow) }

// AlwaysDenyRule denies every query.
func AlwaysDenyRule() QueryRule { return fixed(Deny) }

// ContextQueryRule decides from the context alone. Nil means Skip.
func ContextQueryRule(eval func(context.Context) error) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, _ *Query) error { return eval(ctx) })
}

// OnEntity applies rule to the queries of the given entities and skips
// the others.
func OnEntity(rule QueryRule, entities ...string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q *Query) error {
		if !slices.Contains(entities, q.Entity()) {
			return Skip
		}
		return rule.EvalQuery(ctx, q)
	})
}

// DenyEntityRule denies the queries of the given entities.
func DenyEntityRule(entities ...string) QueryRule {
	return OnEntity(QueryRuleFunc(func(_ context.Context, q *Query) error {
		return Denyf("strata/privacy: queries of %s are not allowed", q.Entity())
	}), entities...)
}

type decisionKey struct{}

// DecisionContext stores a decision overriding every policy evaluated
// under the returned context. Nil and Skip store nothing.
func DecisionContext(parent context.Context, d error) context.Context {
	if d == nil || errors.Is(d, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionKey{}, d)
}

// DecisionFromContext returns the decision stored in ctx. A stored Allow
// reads as a nil decision.
func DecisionFromContext(ctx context.Context) (error, bool) {
	d, ok := ctx.Value(decisionKey{}).(error)
	if errors.Is(d, Allow) {
		return nil, true
	}
	return d, ok
}
