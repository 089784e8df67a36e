package db

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"tabletrace/internal/models"
)

type postgresDialect struct{}

func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) ListTablesQuery(schema string) (string, []any) {
	if strings.EqualFold(schema, "all") {
		return `
			SELECT schemaname, relname
			FROM pg_stat_user_tables
			ORDER BY schemaname, relname`, nil
	}
	return `
		SELECT schemaname, relname
		FROM pg_stat_user_tables
		WHERE schemaname = $1
		ORDER BY schemaname, relname`, []any{schema}
}

func (postgresDialect) CountersQuery() string {
	return `
		SELECT schemaname, relname,
			COALESCE(n_tup_ins, 0), COALESCE(n_tup_upd, 0), COALESCE(n_tup_del, 0)
		FROM pg_stat_user_tables`
}

func (postgresDialect) PrimaryKeyQuery() string {
	return `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = format('%I.%I', $1::text, $2::text)::regclass
			AND i.indisprimary
		LIMIT 1`
}

func (d postgresDialect) SelectRowsQuery(table models.TableID, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.qualified(table), limit)
}

func (postgresDialect) qualified(table models.TableID) string {
	return pq.QuoteIdentifier(table.Schema) + "." + pq.QuoteIdentifier(table.Table)
}
