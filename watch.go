package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"tabletrace/internal/binlog"
	"tabletrace/internal/config"
	"tabletrace/internal/console"
	"tabletrace/internal/db"
	"tabletrace/internal/display"
	tnats "tabletrace/internal/nats"
	"tabletrace/internal/processor"
	"tabletrace/internal/watcher"
)

func driverLabel(driver string) string {
	if driver == config.DriverMySQL {
		return "MySQL"
	}
	return "PostgreSQL"
}

// connect opens the database and runs the startup checks. Failures are
// printed and reported as errReported.
func connect(ctx context.Context, cfg *config.Config, printer *display.Printer, logger *logrus.Logger) (*sql.DB, db.Dialect, error) {
	dialect, ok := db.DialectFor(cfg.Database.Driver)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported database driver '%s'", cfg.Database.Driver)
	}

	printer.Connecting(driverLabel(cfg.Database.Driver))
	logger.Debugf("Connecting with %s", cfg.Redacted())

	conn, err := db.Connect(ctx, dialect, cfg.DSN(), logger)
	if err != nil {
		printer.ConnectionError(err)
		return nil, nil, errReported
	}

	checker := db.NewChecker(conn, logger)
	binlogMode := cfg.Watch.CounterSource == config.CounterSourceBinlog
	if cfg.Database.Driver == config.DriverMySQL {
		err = checker.CheckMySQL(ctx, binlogMode)
	} else {
		err = checker.CheckPostgres(ctx)
	}
	if err != nil {
		if binlogMode {
			conn.Close()
			printer.ConnectionError(err)
			return nil, nil, errReported
		}
		printer.Warning(fmt.Sprintf("⚠ %v", err))
	}

	printer.Connected()
	return conn, dialect, nil
}

func runCheck(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Logging.Level)
	printer := display.NewPrinter(os.Stderr)

	conn, _, err := connect(ctx, cfg, printer, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	return nil
}

func runTables(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Logging.Level)
	printer := display.NewPrinter(os.Stderr)

	conn, dialect, err := connect(ctx, cfg, printer, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	source := db.NewSource(conn, dialect, cfg.Watch.MaxRows, cfg.Watch.FetchTimeout, logger)
	tables, err := source.ListTables(ctx, cfg.Watch.Schema)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Println(t)
	}
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Logging.Level)
	printer := display.NewPrinter(os.Stderr)
	interactive := cfg.Watch.Interactive

	if err := processor.ValidateRules(&cfg.Processor); err != nil {
		return fmt.Errorf("invalid processor configuration: %w", err)
	}

	printer.Banner()
	conn, dialect, err := connect(ctx, cfg, printer, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	state := watcher.NewSessionState()
	go func() {
		_ = watchConnection(ctx, conn, cfg.Watch.KeepaliveInterval, state, logger)
	}()

	source := db.NewSource(conn, dialect, cfg.Watch.MaxRows, cfg.Watch.FetchTimeout, logger)
	available, err := source.ListTables(ctx, cfg.Watch.Schema)
	if err != nil {
		printer.ConnectionError(err)
		return errReported
	}
	if len(available) == 0 {
		printer.Warning("No tables found in database.")
		return nil
	}

	var input <-chan string
	if interactive {
		input = console.StartReader(os.Stdin, console.InputBuffer)
	}

	tables, err := watcher.ChooseTables(ctx, printer, input, available, interactive)
	if err != nil {
		return nil
	}
	if len(tables) == 0 {
		printer.Warning("No tables selected. Exiting.")
		return nil
	}
	printer.Watching(tables, "👁 Watching")
	if interactive {
		printer.InteractiveHint()
	}

	counters, err := counterSource(ctx, cfg, conn, source, logger)
	if err != nil {
		printer.ConnectionError(err)
		return errReported
	}

	publishers, filter, closeAll, err := outbound(cfg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	w, err := watcher.New(watcher.Config{
		Counters:   counters,
		Rows:       source,
		Keys:       source,
		Display:    printer,
		Publishers: publishers,
		Filter:     filter,
		Input:      input,
		State:      state,
		Logger:     logger,
		Options: watcher.Options{
			Interval:              cfg.Watch.Interval,
			Interactive:           interactive,
			DebounceInterval:      cfg.Watch.DebounceInterval,
			DebounceMaxIterations: cfg.Watch.DebounceMaxIterations,
			HistorySize:           cfg.Watch.HistorySize,
		},
	})
	if err != nil {
		return err
	}

	if err := w.Start(ctx, available, tables); err != nil {
		printer.ConnectionError(err)
		return errReported
	}
	if err := w.Run(ctx); err != nil {
		printer.ConnectionError(err)
		return errReported
	}
	return nil
}

// watchConnection runs the keeper and flags the session once the connection
// is gone. The keeper logs the failure itself.
func watchConnection(ctx context.Context, conn db.Pinger, interval time.Duration, state *watcher.SessionState, logger *logrus.Logger) error {
	return db.KeepAlive(ctx, conn, interval, logger, func(error) {
		state.MarkConnectionLost()
	})
}

// counterSource picks statistics views or the binlog stream. The binlog
// reader runs until ctx is done.
func counterSource(ctx context.Context, cfg *config.Config, conn *sql.DB, source *db.Source, logger *logrus.Logger) (watcher.CounterFetcher, error) {
	if cfg.Watch.CounterSource != config.CounterSourceBinlog {
		return source, nil
	}

	file, pos, err := db.BinlogPosition(ctx, conn)
	if err != nil {
		return nil, err
	}
	reader, err := binlog.NewCounterSource(binlog.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		ServerID: cfg.Binlog.ServerID,
		Flavor:   cfg.Binlog.Flavor,
	}, file, pos, logger)
	if err != nil {
		return nil, err
	}

	go func() {
		defer reader.Close()
		if err := reader.Run(ctx); err != nil {
			logger.Errorf("Binlog counter source stopped: %v", err)
		}
	}()
	return reader, nil
}

// outbound builds the column filter and, when NATS is enabled, the publisher
// chain. The returned func closes the NATS connection.
func outbound(cfg *config.Config, logger *logrus.Logger) ([]watcher.Publisher, watcher.DiffFilter, func(), error) {
	closeAll := func() {}

	var natsPub *tnats.Publisher
	if cfg.NATS.Enabled {
		p, err := tnats.NewPublisher(cfg.NATS.URL, cfg.NATS.Subject, cfg.NATS.MaxReconnect, cfg.NATS.ReconnectWait, logger)
		if err != nil {
			return nil, nil, closeAll, err
		}
		natsPub = p
		closeAll = p.Close
	}

	transformer, err := processor.NewTransformer(&cfg.Processor, logger, natsPub.Conn())
	if err != nil {
		closeAll()
		return nil, nil, func() {}, fmt.Errorf("failed to create transformer: %w", err)
	}

	var publishers []watcher.Publisher
	if natsPub != nil {
		publishers = append(publishers, processor.NewProcessor(transformer, natsPub, logger))
		logger.Infof("Publishing change records to %s (session %s)", cfg.NATS.Subject, transformer.SessionID())
	}
	return publishers, transformer, closeAll, nil
}

var (
	_ watcher.Display        = (*display.Printer)(nil)
	_ watcher.CounterFetcher = (*binlog.CounterSource)(nil)
)
