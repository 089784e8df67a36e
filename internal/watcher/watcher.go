// Package watcher drives the poll, settle, diff and publish cycle over a set
// of watched tables and serves the interactive session between cycles.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"tabletrace/internal/models"
)

// ErrConnectionLost is returned by Run once the connection keeper has
// flagged the database connection as gone.
var ErrConnectionLost = errors.New("database connection lost")

// CounterFetcher returns the cumulative insert/update/delete counters of tables.
type CounterFetcher interface {
	FetchCounters(ctx context.Context, tables []models.TableID) (models.CounterSnapshot, error)
}

// RowFetcher returns the current rows of a table, already formatted for display.
type RowFetcher interface {
	FetchRows(ctx context.Context, table models.TableID) ([]models.Row, error)
}

// KeyLookup returns the primary key column of a table, if any.
type KeyLookup interface {
	PrimaryKey(ctx context.Context, table models.TableID) (string, bool)
}

// Publisher receives every change record produced by a cycle.
type Publisher interface {
	Publish(record *models.ChangeRecord) error
}

// DiffFilter may drop columns or whole diffs before an event is built.
type DiffFilter interface {
	FilterDiffs(table models.TableID, diffs []models.RowDiff) []models.RowDiff
}

// Display renders the session for the user.
type Display interface {
	Change(record *models.ChangeRecord, interactive bool)
	Prompt(changeCount int64)
	Watching(tables []models.TableID, title string)
	TableChoices(tables []models.TableID)
	History(records []models.ChangeRecord)
	Details(record *models.ChangeRecord)
	NotFound(id int64)
	Help()
	Unknown(input string)
	Warning(message string)
	Success(message string)
	Goodbye()
}

// Options tune the watch loop.
type Options struct {
	Interval              time.Duration
	Interactive           bool
	DebounceInterval      time.Duration
	DebounceMaxIterations int
	HistorySize           int
}

// Config wires a Watcher to its collaborators. Counters, Rows, Keys and
// Display are required.
type Config struct {
	Counters   CounterFetcher
	Rows       RowFetcher
	Keys       KeyLookup
	Display    Display
	Publishers []Publisher
	Filter     DiffFilter
	Input      <-chan string
	Clock      clock.Clock
	State      *SessionState
	Logger     *logrus.Logger
	Options    Options
}

// Watcher owns one watch session. All of its methods run on the caller's
// goroutine; only SessionState is touched concurrently.
type Watcher struct {
	counters   CounterFetcher
	rows       RowFetcher
	keys       KeyLookup
	display    Display
	publishers []Publisher
	filter     DiffFilter
	input      <-chan string
	clock      clock.Clock
	state      *SessionState
	logger     *logrus.Logger
	opts       Options

	debouncer *Debouncer
	snapshots *SnapshotStore
	history   *History

	available []models.TableID
	tables    []models.TableID
	prev      models.CounterSnapshot
}

func New(cfg Config) (*Watcher, error) {
	if cfg.Counters == nil || cfg.Rows == nil || cfg.Keys == nil {
		return nil, errors.New("watcher requires counter, row and key sources")
	}
	if cfg.Display == nil {
		return nil, errors.New("watcher requires a display")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.State == nil {
		cfg.State = NewSessionState()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Options.Interval <= 0 {
		cfg.Options.Interval = time.Second
	}

	return &Watcher{
		counters:   cfg.Counters,
		rows:       cfg.Rows,
		keys:       cfg.Keys,
		display:    cfg.Display,
		publishers: cfg.Publishers,
		filter:     cfg.Filter,
		input:      cfg.Input,
		clock:      cfg.Clock,
		state:      cfg.State,
		logger:     cfg.Logger,
		opts:       cfg.Options,
		debouncer: NewDebouncer(cfg.Counters, cfg.Clock,
			cfg.Options.DebounceInterval, cfg.Options.DebounceMaxIterations, cfg.Logger),
		snapshots: NewSnapshotStore(),
		history:   NewHistory(cfg.Options.HistorySize),
	}, nil
}

// Start begins a session over tables, chosen from available. It captures the
// baseline rows and counters; a counter fetch failure is returned.
func (w *Watcher) Start(ctx context.Context, available, tables []models.TableID) error {
	w.available = available
	w.tables = tables
	w.takeSnapshots(ctx)

	prev, err := w.counters.FetchCounters(ctx, tables)
	if err != nil {
		return fmt.Errorf("failed to fetch initial counters: %w", err)
	}
	w.prev = prev
	w.logger.Infof("Watching %d tables", len(tables))
	return nil
}

// Run loops until the user quits, ctx is cancelled, or a fatal error occurs.
// Quitting and cancellation return nil.
func (w *Watcher) Run(ctx context.Context) error {
	if w.opts.Interactive {
		w.display.Prompt(w.state.ChangeCount())
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if w.opts.Interactive && w.ProcessInput(ctx) {
			w.display.Goodbye()
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(w.opts.Interval):
		}

		if w.state.ConnectionLost() {
			return ErrConnectionLost
		}
		if err := w.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Tables returns the watched tables.
func (w *Watcher) Tables() []models.TableID {
	out := make([]models.TableID, len(w.tables))
	copy(out, w.tables)
	return out
}

func (w *Watcher) History() *History { return w.history }

func (w *Watcher) takeSnapshots(ctx context.Context) {
	for _, table := range w.tables {
		rows, err := w.rows.FetchRows(ctx, table)
		if err != nil {
			w.logger.Warnf("Failed to take snapshot of %s: %v", table, err)
			continue
		}
		w.snapshots.Put(table, rows)
	}
}
