// Package db reads table statistics, primary keys and row captures from
// PostgreSQL or MySQL.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, dialect Dialect, dsn string, logger *logrus.Logger) (*sql.DB, error) {
	conn, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Infof("Connected to %s database", dialect.DriverName())
	return conn, nil
}

// Pinger is the part of *sql.DB the keeper needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// KeepAlive pings the connection every interval until ctx is done or a ping
// fails. On failure it calls onLost once and returns the error.
func KeepAlive(ctx context.Context, conn Pinger, interval time.Duration, logger *logrus.Logger, onLost func(error)) error {
	if interval <= 0 {
		return fmt.Errorf("keepalive interval must be greater than 0, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := conn.PingContext(pingCtx)
			cancel()
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Errorf("Connection error: %v", err)
			onLost(err)
			return err
		}
	}
}
