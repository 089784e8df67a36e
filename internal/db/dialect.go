package db

import "tabletrace/internal/models"

// Dialect supplies the catalog and statistics queries for one database engine.
type Dialect interface {
	// DriverName is the database/sql driver name.
	DriverName() string
	// ListTablesQuery returns (schema, table) rows for a schema filter.
	ListTablesQuery(schema string) (string, []any)
	// CountersQuery returns (schema, table, inserts, updates, deletes) rows for every table.
	CountersQuery() string
	// PrimaryKeyQuery takes (schema, table) arguments and returns one column name.
	PrimaryKeyQuery() string
	// SelectRowsQuery selects at most limit rows of a table.
	SelectRowsQuery(table models.TableID, limit int) string
}

// DialectFor returns the dialect registered for a driver name.
func DialectFor(driver string) (Dialect, bool) {
	switch driver {
	case "postgres":
		return postgresDialect{}, true
	case "mysql":
		return mysqlDialect{}, true
	}
	return nil, false
}
