package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Checker validates that the connected database exposes the statistics the
// watcher polls.
type Checker struct {
	conn   *sql.DB
	logger *logrus.Logger
}

// NewChecker creates a new checker
func NewChecker(conn *sql.DB, logger *logrus.Logger) *Checker {
	return &Checker{conn: conn, logger: logger}
}

// CheckPostgres verifies that row statistics are being collected.
func (c *Checker) CheckPostgres(ctx context.Context) error {
	var trackCounts string
	if err := c.conn.QueryRowContext(ctx, "SHOW track_counts").Scan(&trackCounts); err != nil {
		return fmt.Errorf("failed to read track_counts: %w", describe(err))
	}
	if !strings.EqualFold(trackCounts, "on") {
		return fmt.Errorf("track_counts is '%s', table statistics are not collected. Enable it in postgresql.conf", trackCounts)
	}

	var visible int
	if err := c.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM pg_stat_user_tables").Scan(&visible); err != nil {
		return fmt.Errorf("failed to read pg_stat_user_tables: %w", describe(err))
	}
	c.logger.Infof("Table statistics available for %d tables", visible)
	return nil
}

// CheckMySQL verifies that performance_schema is enabled, or for the binlog
// counter source that binary logging in ROW format and replication grants are
// in place.
func (c *Checker) CheckMySQL(ctx context.Context, binlog bool) error {
	if !binlog {
		var enabled string
		if err := c.conn.QueryRowContext(ctx, "SELECT @@performance_schema").Scan(&enabled); err != nil {
			return fmt.Errorf("failed to read performance_schema status: %w", describe(err))
		}
		if enabled != "1" && !strings.EqualFold(enabled, "ON") {
			return fmt.Errorf("performance_schema is disabled. Enable it or use counter_source: binlog")
		}
		c.logger.Info("performance_schema is enabled")
		return nil
	}

	if err := c.checkGrants(ctx); err != nil {
		return err
	}

	var logBin string
	if err := c.conn.QueryRowContext(ctx, "SELECT @@log_bin").Scan(&logBin); err != nil {
		c.logger.Warn("Could not verify binlog status")
	} else if logBin == "0" || strings.EqualFold(logBin, "OFF") {
		return fmt.Errorf("binary logging (log_bin) is not enabled. Enable it in MySQL configuration")
	} else {
		c.logger.Info("Binary logging is enabled")
	}

	var binlogFormat string
	if err := c.conn.QueryRowContext(ctx, "SELECT @@binlog_format").Scan(&binlogFormat); err == nil && binlogFormat != "ROW" {
		return fmt.Errorf("binlog_format is '%s', ROW is required to count row events", binlogFormat)
	}
	return nil
}

func (c *Checker) checkGrants(ctx context.Context) error {
	rows, err := c.conn.QueryContext(ctx, "SHOW GRANTS FOR CURRENT_USER()")
	if err != nil {
		rows, err = c.conn.QueryContext(ctx, "SHOW GRANTS")
		if err != nil {
			return fmt.Errorf("failed to check grants: %w", describe(err))
		}
	}
	defer rows.Close()

	var grants strings.Builder
	for rows.Next() {
		var grant string
		if err := rows.Scan(&grant); err != nil {
			return fmt.Errorf("failed to scan grant: %w", err)
		}
		if grants.Len() > 0 {
			grants.WriteString("; ")
		}
		grants.WriteString(grant)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating grants: %w", err)
	}

	if missing := missingPrivileges(grants.String()); len(missing) > 0 {
		return fmt.Errorf("missing required permissions: %s. Current grants: %s", strings.Join(missing, ", "), grants.String())
	}
	c.logger.Info("All required replication permissions verified")
	return nil
}

func missingPrivileges(grants string) []string {
	upper := strings.ToUpper(grants)
	if strings.Contains(upper, "ALL PRIVILEGES ON *.*") {
		return nil
	}
	var missing []string
	for _, priv := range []string{"REPLICATION SLAVE", "REPLICATION CLIENT", "SELECT"} {
		if !strings.Contains(upper, priv) {
			missing = append(missing, priv)
		}
	}
	return missing
}

// BinlogPosition returns the server's current binlog file and offset.
func BinlogPosition(ctx context.Context, conn *sql.DB) (string, uint32, error) {
	var lastErr error
	for _, query := range []string{"SHOW BINARY LOG STATUS", "SHOW MASTER STATUS"} {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}
		file, pos, err := scanBinlogStatus(rows)
		rows.Close()
		if err != nil {
			return "", 0, err
		}
		return file, pos, nil
	}
	return "", 0, fmt.Errorf("failed to read binlog position: %w", describe(lastErr))
}

func scanBinlogStatus(rows *sql.Rows) (string, uint32, error) {
	columns, err := rows.Columns()
	if err != nil {
		return "", 0, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", 0, err
		}
		return "", 0, errors.New("binary logging is not enabled")
	}

	var file string
	var pos uint32
	targets := make([]any, len(columns))
	for i := range targets {
		targets[i] = new(sql.RawBytes)
	}
	targets[0] = &file
	targets[1] = &pos
	if err := rows.Scan(targets...); err != nil {
		return "", 0, fmt.Errorf("failed to scan binlog status: %w", err)
	}
	return file, pos, nil
}

// describe adds a hint for the permission errors both drivers report.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42501" {
		return fmt.Errorf("%w (insufficient privilege)", err)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == 1142 || myErr.Number == 1227) {
		return fmt.Errorf("%w (insufficient privilege)", err)
	}
	return err
}
