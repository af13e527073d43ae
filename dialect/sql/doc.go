// Package sql implements dialect.Driver over database/sql.
//
// Statements are executed as literal SQL; args are optional:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    return err
//	}
//	rows := &sql.Rows{}
//	if err := drv.Query(ctx, "SELECT 1", nil, rows); err != nil {
//	    return err
//	}
//	maps, err := sql.ScanMaps(rows)
//
// StatsDriver counts the statements of any dialect.Driver and warns about
// slow ones; DebugDriver logs each statement at debug level.
package sql
