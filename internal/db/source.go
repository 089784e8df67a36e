package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tabletrace/internal/models"
)

// Source fetches counters, primary keys and rows through a Dialect.
type Source struct {
	conn    *sql.DB
	dialect Dialect
	maxRows int
	timeout time.Duration
	logger  *logrus.Logger
}

// NewSource creates a Source. A zero timeout leaves fetches unbounded.
func NewSource(conn *sql.DB, dialect Dialect, maxRows int, timeout time.Duration, logger *logrus.Logger) *Source {
	return &Source{
		conn:    conn,
		dialect: dialect,
		maxRows: maxRows,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ListTables returns every user table in a schema, or in all schemas for "all".
func (s *Source) ListTables(ctx context.Context, schema string) ([]models.TableID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := s.dialect.ListTablesQuery(schema)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []models.TableID
	for rows.Next() {
		var id models.TableID
		if err := rows.Scan(&id.Schema, &id.Table); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// FetchCounters returns the cumulative counters of the requested tables.
// Tables the statistics view does not report are left out.
func (s *Source) FetchCounters(ctx context.Context, tables []models.TableID) (models.CounterSnapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	wanted := make(map[models.TableID]bool, len(tables))
	for _, t := range tables {
		wanted[t] = true
	}

	rows, err := s.conn.QueryContext(ctx, s.dialect.CountersQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query table statistics: %w", err)
	}
	defer rows.Close()

	snapshot := make(models.CounterSnapshot, len(tables))
	for rows.Next() {
		var id models.TableID
		var c models.Counters
		if err := rows.Scan(&id.Schema, &id.Table, &c.Inserts, &c.Updates, &c.Deletes); err != nil {
			return nil, fmt.Errorf("failed to scan table statistics: %w", err)
		}
		if wanted[id] {
			snapshot[id] = c
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table statistics: %w", err)
	}
	return snapshot, nil
}

// PrimaryKey returns the first primary key column of a table. Lookup failures
// are logged and reported as "no key".
func (s *Source) PrimaryKey(ctx context.Context, table models.TableID) (string, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var column string
	err := s.conn.QueryRowContext(ctx, s.dialect.PrimaryKeyQuery(), table.Schema, table.Table).Scan(&column)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Debugf("Primary key lookup failed for %s: %v", table, err)
		}
		return "", false
	}
	return column, true
}

// FetchRows captures up to maxRows rows of a table as display strings.
func (s *Source) FetchRows(ctx context.Context, table models.TableID) ([]models.Row, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, s.dialect.SelectRowsQuery(table, s.maxRows))
	if err != nil {
		return nil, fmt.Errorf("failed to select rows from %s: %w", table, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", table, err)
	}
	return result, nil
}

func scanRows(rows *sql.Rows) ([]models.Row, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(columnTypes))
	dbTypes := make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ct.Name()
		dbTypes[i] = ct.DatabaseTypeName()
	}

	var result []models.Row
	for rows.Next() {
		raw := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range raw {
			targets[i] = &raw[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		values := make([]string, len(columns))
		for i, v := range raw {
			values[i] = FormatValue(v, dbTypes[i])
		}
		result = append(result, models.NewRow(columns, values))
	}
	return result, rows.Err()
}
