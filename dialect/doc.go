// Package dialect is the boundary between the mapper and a database: a
// connection that executes literal SQL.
//
// Exec and Query take the statement, its arguments as []any or nil, and a
// destination (*sql.Result or *sql.Rows of package dialect/sql). Compiled
// queries inline their values, so the arguments are usually nil.
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//		return err
//	}
//	defer drv.Close()
//	rows := &sql.Rows{}
//	err = drv.Query(ctx, "SELECT name FROM countries", nil, rows)
//
// Package dialect/sql implements Driver over database/sql. The query
// compiler and the DDL live below it, in sqlgraph and schema.
package dialect
