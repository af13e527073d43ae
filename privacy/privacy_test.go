package privacy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/privacy"
	"github.com/syssam/strata/query"
)

func people() *privacy.Query {
	return privacy.NewQuery(query.Select("p").From(
		query.From("Person", "p").Join("Country", "c", query.Via("p", "country")),
	))
}

func TestDecisions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		is   error
	}{
		{"allowf", privacy.Allowf("viewer %s", "ada"), privacy.Allow},
		{"denyf", privacy.Denyf("viewer %s", "ada"), privacy.Deny},
		{"skipf", privacy.Skipf("viewer %s", "ada"), privacy.Skip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.err, tt.is)
			assert.Contains(t, tt.err.Error(), "viewer ada")
		})
	}
}

func TestNewQuery(t *testing.T) {
	t.Parallel()
	q := people()
	assert.Equal(t, "Person", q.Entity())
	assert.Equal(t, "p.tenant", q.P("tenant").String())

	q = privacy.NewQuery(query.Select("c").From(
		query.From("Person", "p").Join("Country", "c", query.Via("p", "country")),
	))
	assert.Equal(t, "Country", q.Entity())

	q = privacy.NewQuery(query.Select("x").From(query.From("Person", "p")))
	assert.Empty(t, q.Entity())
}

func TestQueryPolicy(t *testing.T) {
	t.Parallel()
	errCustom := errors.New("custom")
	tests := []struct {
		name   string
		policy privacy.QueryPolicy
		ctx    context.Context
		want   error
	}{
		{"empty", nil, context.Background(), nil},
		{"allow", privacy.QueryPolicy{privacy.AlwaysAllowRule(), privacy.AlwaysDenyRule()}, context.Background(), nil},
		{"deny", privacy.QueryPolicy{privacy.AlwaysDenyRule(), privacy.AlwaysAllowRule()}, context.Background(), privacy.Deny},
		{
			"skip",
			privacy.QueryPolicy{
				privacy.ContextQueryRule(func(context.Context) error { return privacy.Skip }),
				privacy.ContextQueryRule(func(context.Context) error { return nil }),
			},
			context.Background(),
			nil,
		},
		{
			"custom error",
			privacy.QueryPolicy{privacy.ContextQueryRule(func(context.Context) error { return errCustom })},
			context.Background(),
			errCustom,
		},
		{"context allow", privacy.QueryPolicy{privacy.AlwaysDenyRule()}, privacy.DecisionContext(context.Background(), privacy.Allow), nil},
		{"context deny", privacy.QueryPolicy{privacy.AlwaysAllowRule()}, privacy.DecisionContext(context.Background(), privacy.Deny), privacy.Deny},
		{"context skip", privacy.QueryPolicy{privacy.AlwaysDenyRule()}, privacy.DecisionContext(context.Background(), privacy.Skip), privacy.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.policy.EvalQuery(tt.ctx, people())
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOnEntity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rule := privacy.DenyEntityRule("Person", "Book")
	err := rule.EvalQuery(ctx, people())
	require.ErrorIs(t, err, privacy.Deny)
	assert.Contains(t, err.Error(), "queries of Person")

	country := privacy.NewQuery(query.Select("c").From(query.From("Country", "c")))
	assert.ErrorIs(t, rule.EvalQuery(ctx, country), privacy.Skip)
	assert.NoError(t, privacy.QueryPolicy{rule}.EvalQuery(ctx, country))
}

func TestViewerRules(t *testing.T) {
	t.Parallel()
	admin := &privacy.SimpleViewer{UserID: "1", Roles: []string{"admin"}, TenantID: "acme"}
	user := &privacy.SimpleViewer{UserID: "2", Roles: []string{"user"}}
	tests := []struct {
		name   string
		viewer privacy.Viewer
		rule   privacy.QueryRule
		want   error
	}{
		{"no viewer denied", nil, privacy.DenyIfNoViewer(), privacy.Deny},
		{"viewer skipped", user, privacy.DenyIfNoViewer(), privacy.Skip},
		{"role allowed", admin, privacy.HasRole("admin"), privacy.Allow},
		{"role skipped", user, privacy.HasRole("admin"), privacy.Skip},
		{"any role allowed", user, privacy.HasAnyRole("admin", "user"), privacy.Allow},
		{"role without viewer", nil, privacy.HasAnyRole("admin"), privacy.Skip},
		{"owner without viewer", nil, privacy.OwnerQueryRule("owner"), privacy.Deny},
		{"tenant without viewer", nil, privacy.TenantQueryRule("tenant"), privacy.Deny},
		{"tenant without tenant", user, privacy.TenantQueryRule("tenant"), privacy.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			if tt.viewer != nil {
				ctx = privacy.WithViewer(ctx, tt.viewer)
			}
			assert.ErrorIs(t, tt.rule.EvalQuery(ctx, people()), tt.want)
		})
	}
}

func TestFilterRules(t *testing.T) {
	t.Parallel()
	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "42", TenantID: "acme"})
	assert.Equal(t, "42", privacy.ViewerFromContext(ctx).GetID())
	assert.Nil(t, privacy.ViewerFromContext(context.Background()))

	q := people()
	policy := privacy.QueryPolicy{
		privacy.TenantQueryRule("tenant"),
		privacy.OwnerQueryRule("owner"),
	}
	require.NoError(t, policy.EvalQuery(ctx, q))
	assert.Equal(t, `(p.tenant = 'acme' AND p.owner = '42')`, q.Query().Filter().String())

	q = people()
	q.Where(query.EQ(query.P("c.name"), query.Value("Italy")))
	require.NoError(t, privacy.QueryPolicy{privacy.OnEntity(privacy.TenantQueryRule("tenant"), "Person")}.EvalQuery(ctx, q))
	assert.Equal(t, `(c.name = 'Italy' AND p.tenant = 'acme')`, q.Query().Filter().String())
}
