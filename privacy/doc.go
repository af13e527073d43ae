// Package privacy guards the queries of an orm client with policies.
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues to the next rule
//
// A policy whose rules all skip allows the query. Rules may narrow the
// query before deciding, which is how row-level rules work:
//
//	policy := privacy.QueryPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.OnEntity(privacy.TenantQueryRule("tenant"), "Invoice"),
//	}
//	client, err := orm.Open(ctx, dialect.SQLite, dsn, defs, orm.WithPolicy(policy))
//
// The policy guards the queries given to the client. Relationship loads
// triggered by materialized objects are not evaluated.
package privacy
