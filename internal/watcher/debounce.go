package watcher

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"tabletrace/internal/models"
)

const (
	DefaultDebounceInterval      = 100 * time.Millisecond
	DefaultDebounceMaxIterations = 5
)

// Debouncer re-polls counters until two consecutive fetches agree.
type Debouncer struct {
	fetcher       CounterFetcher
	clock         clock.Clock
	interval      time.Duration
	maxIterations int
	logger        *logrus.Logger
}

func NewDebouncer(fetcher CounterFetcher, clk clock.Clock, interval time.Duration, maxIterations int, logger *logrus.Logger) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	if maxIterations <= 0 {
		maxIterations = DefaultDebounceMaxIterations
	}
	return &Debouncer{
		fetcher:       fetcher,
		clock:         clk,
		interval:      interval,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// Settle waits for the counters of tables to stop moving, starting from
// current. It gives up after the iteration budget and returns the last fetch.
// A fetch error ends settling with the last good snapshot.
func (d *Debouncer) Settle(ctx context.Context, tables []models.TableID, current models.CounterSnapshot) models.CounterSnapshot {
	last := current
	for i := 0; i < d.maxIterations; i++ {
		select {
		case <-ctx.Done():
			return last
		case <-d.clock.After(d.interval):
		}

		next, err := d.fetcher.FetchCounters(ctx, tables)
		if err != nil {
			d.logger.Warnf("Failed to fetch counters while settling: %v", err)
			return last
		}
		if next.Equal(last) {
			d.logger.Debugf("Counters settled after %d re-polls", i+1)
			return next
		}
		last = next
	}

	d.logger.Debugf("Counters still moving after %d re-polls, continuing with last fetch", d.maxIterations)
	return last
}
