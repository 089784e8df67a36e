package db

import (
	"fmt"
	"strings"

	"tabletrace/internal/models"
)

var mysqlSystemSchemas = []any{"mysql", "sys", "performance_schema", "information_schema"}

type mysqlDialect struct{}

func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) ListTablesQuery(schema string) (string, []any) {
	if strings.EqualFold(schema, "all") {
		return `
			SELECT TABLE_SCHEMA, TABLE_NAME
			FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_TYPE = 'BASE TABLE'
				AND TABLE_SCHEMA NOT IN (?, ?, ?, ?)
			ORDER BY TABLE_SCHEMA, TABLE_NAME`, mysqlSystemSchemas
	}
	return `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = ?
		ORDER BY TABLE_SCHEMA, TABLE_NAME`, []any{schema}
}

// CountersQuery reads the per-table row operation counts kept by performance_schema.
func (mysqlDialect) CountersQuery() string {
	return `
		SELECT OBJECT_SCHEMA, OBJECT_NAME, COUNT_INSERT, COUNT_UPDATE, COUNT_DELETE
		FROM performance_schema.table_io_waits_summary_by_table
		WHERE OBJECT_TYPE = 'TABLE'`
}

func (mysqlDialect) PrimaryKeyQuery() string {
	return `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION
		LIMIT 1`
}

func (d mysqlDialect) SelectRowsQuery(table models.TableID, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.qualified(table), limit)
}

func (mysqlDialect) qualified(table models.TableID) string {
	quote := func(name string) string {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return quote(table.Schema) + "." + quote(table.Table)
}
