package privacy

import (
	"context"
	"slices"

	"github.com/syssam/strata/query"
)

// Viewer is the caller on whose behalf queries run.
type Viewer interface {
	GetID() string
	GetRoles() []string
	GetTenantID() string // empty outside multi-tenant setups
}

type viewerKey struct{}

// WithViewer attaches v to ctx.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// ViewerFromContext returns the viewer of ctx, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerKey{}).(Viewer)
	return v
}

// SimpleViewer is a Viewer made of plain values.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v *SimpleViewer) GetID() string       { return v.UserID }
func (v *SimpleViewer) GetRoles() []string  { return v.Roles }
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer denies queries run without a viewer.
//
//	privacy.QueryPolicy{
//		privacy.DenyIfNoViewer(),
//		privacy.HasRole("admin"),
//		privacy.TenantQueryRule("tenant"),
//	}
func DenyIfNoViewer() QueryRule {
	return ContextQueryRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) != nil {
			return Skip
		}
		return Denyf("strata/privacy: viewer required")
	})
}

// HasRole allows the viewers holding role.
func HasRole(role string) QueryRule { return HasAnyRole(role) }

// HasAnyRole allows the viewers holding one of roles.
func HasAnyRole(roles ...string) QueryRule {
	return ContextQueryRule(func(ctx context.Context) error {
		v := ViewerFromContext(ctx)
		if v != nil && slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(v.GetRoles(), r) }) {
			return Allow
		}
		return Skip
	})
}

// filterRule narrows the query to the rows whose property equals the value
// key picks from the viewer. An empty value denies.
func filterRule(property, what string, key func(Viewer) string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q *Query) error {
		v := ViewerFromContext(ctx)
		if v == nil {
			return Denyf("strata/privacy: viewer required for %s-filtered query", what)
		}
		k := key(v)
		if k == "" {
			return Denyf("strata/privacy: %s required", what)
		}
		q.Where(query.EQ(q.P(property), query.Value(k)))
		return Skip
	})
}

// OwnerQueryRule keeps the rows whose property holds the viewer's ID.
func OwnerQueryRule(property string) QueryRule {
	return filterRule(property, "owner", Viewer.GetID)
}

// TenantQueryRule keeps the rows whose property holds the viewer's tenant.
func TenantQueryRule(property string) QueryRule {
	return filterRule(property, "tenant", Viewer.GetTenantID)
}
