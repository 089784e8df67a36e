// Package binlog derives per-table insert/update/delete counters from a MySQL
// binlog stream, as an alternative to performance_schema.
package binlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/sirupsen/logrus"

	"tabletrace/internal/models"
)

// Config holds the replication connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ServerID uint32
	Flavor   string // mysql, mariadb
}

// EventStreamer yields binlog events. *replication.BinlogStreamer satisfies it.
type EventStreamer interface {
	GetEvent(ctx context.Context) (*replication.BinlogEvent, error)
}

// CounterSource accumulates row-event counts per table since it started.
// Counters only grow, so the watcher can poll them like database statistics.
type CounterSource struct {
	syncer   *replication.BinlogSyncer
	streamer EventStreamer
	logger   *logrus.Logger

	mu      sync.Mutex
	counts  map[models.TableID]models.Counters
	lastErr error
}

// NewCounterSource starts replicating from the given position.
func NewCounterSource(cfg Config, file string, pos uint32, logger *logrus.Logger) (*CounterSource, error) {
	if cfg.Flavor == "" {
		cfg.Flavor = "mysql"
	}

	syncer := replication.NewBinlogSyncer(replication.BinlogSyncerConfig{
		ServerID: cfg.ServerID,
		Flavor:   cfg.Flavor,
		Host:     cfg.Host,
		Port:     uint16(cfg.Port),
		User:     cfg.User,
		Password: cfg.Password,
	})

	streamer, err := syncer.StartSync(mysql.Position{Name: file, Pos: pos})
	if err != nil {
		syncer.Close()
		return nil, fmt.Errorf("failed to start binlog sync: %w", err)
	}
	logger.Infof("Started binlog sync from position: %s:%d", file, pos)

	source := NewCounterSourceFromStreamer(streamer, logger)
	source.syncer = syncer
	return source, nil
}

// NewCounterSourceFromStreamer wraps an existing event stream.
func NewCounterSourceFromStreamer(streamer EventStreamer, logger *logrus.Logger) *CounterSource {
	return &CounterSource{
		streamer: streamer,
		logger:   logger,
		counts:   make(map[models.TableID]models.Counters),
	}
}

// Run consumes events until ctx is cancelled or the stream fails. A stream
// failure is remembered and returned by every later FetchCounters call.
func (s *CounterSource) Run(ctx context.Context) error {
	for {
		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		event, err := s.streamer.GetEvent(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			err = fmt.Errorf("failed to get binlog event: %w", err)
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			s.logger.Errorf("Error reading binlog event: %v", err)
			return err
		}

		s.Apply(event)
	}
}

// Apply adds the rows carried by one event to the counters.
func (s *CounterSource) Apply(event *replication.BinlogEvent) {
	rows, ok := event.Event.(*replication.RowsEvent)
	if !ok || rows.Table == nil {
		switch e := event.Event.(type) {
		case *replication.RotateEvent:
			s.logger.Debugf("Binlog rotated to: %s", string(e.NextLogName))
		default:
			s.logger.Debugf("Ignoring binlog event type: %T", e)
		}
		return
	}

	id := models.TableID{Schema: string(rows.Table.Schema), Table: string(rows.Table.Table)}
	n := int64(len(rows.Rows))

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counts[id]
	switch event.Header.EventType {
	case replication.WRITE_ROWS_EVENTv0, replication.WRITE_ROWS_EVENTv1, replication.WRITE_ROWS_EVENTv2:
		c.Inserts += n
	case replication.UPDATE_ROWS_EVENTv0, replication.UPDATE_ROWS_EVENTv1, replication.UPDATE_ROWS_EVENTv2:
		// Update events carry before and after images for every row.
		c.Updates += n / 2
	case replication.DELETE_ROWS_EVENTv0, replication.DELETE_ROWS_EVENTv1, replication.DELETE_ROWS_EVENTv2:
		c.Deletes += n
	default:
		s.logger.Debugf("Unhandled row event type: %d", event.Header.EventType)
		return
	}
	s.counts[id] = c
}

// FetchCounters returns the counters of the requested tables. Tables with no
// events yet report zero so the first poll establishes a baseline.
func (s *CounterSource) FetchCounters(ctx context.Context, tables []models.TableID) (models.CounterSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr != nil {
		return nil, s.lastErr
	}

	snapshot := make(models.CounterSnapshot, len(tables))
	for _, t := range tables {
		snapshot[t] = s.counts[t]
	}
	return snapshot, nil
}

// Close stops replication.
func (s *CounterSource) Close() {
	if s.syncer != nil {
		s.syncer.Close()
	}
}
