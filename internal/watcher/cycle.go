package watcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tabletrace/internal/diff"
	"tabletrace/internal/models"
)

// DefaultKeyColumn is used when a table's primary key cannot be determined.
const DefaultKeyColumn = "id"

type cycleResult struct {
	diffs  []models.RowDiff
	tables []models.TableID
	kinds  map[string]bool
	rows   int64
}

// Cycle runs one poll: fetch counters, settle them if anything moved, diff
// the tables that changed and publish the result. Only a counter fetch
// failure is returned.
func (w *Watcher) Cycle(ctx context.Context) error {
	current, err := w.counters.FetchCounters(ctx, w.tables)
	if err != nil {
		return fmt.Errorf("failed to fetch counters: %w", err)
	}

	settled := current
	if HasChanges(current, w.prev) {
		settled = w.debouncer.Settle(ctx, w.tables, current)
	}

	result := w.collect(ctx, settled)
	if len(result.diffs) > 0 {
		record := w.newRecord(result)
		w.history.Append(*record)
		w.publish(record)
	}

	w.prev = settled
	return nil
}

func (w *Watcher) collect(ctx context.Context, settled models.CounterSnapshot) cycleResult {
	result := cycleResult{kinds: make(map[string]bool)}

	for _, table := range w.tables {
		if decreased(settled, w.prev, table) {
			w.logger.Warnf("Counters of %s went backwards, assuming a statistics reset", table)
		}

		changes := DetectChanges(settled, w.prev, table)
		if len(changes) == 0 {
			continue
		}

		result.diffs = append(result.diffs, w.diffTable(ctx, table)...)
		for _, c := range changes {
			result.rows += c.Delta
			result.kinds[c.Kind] = true
		}
		result.tables = append(result.tables, table)
	}
	return result
}

// diffTable captures the current rows of table, diffs them against the
// stored snapshot and replaces the snapshot.
func (w *Watcher) diffTable(ctx context.Context, table models.TableID) []models.RowDiff {
	rows, err := w.rows.FetchRows(ctx, table)
	if err != nil {
		w.logger.Warnf("Failed to fetch rows for %s: %v", table, err)
		rows = nil
	}

	key, ok := w.keys.PrimaryKey(ctx, table)
	if !ok {
		w.logger.Debugf("No primary key found for %s, using %q", table, DefaultKeyColumn)
		key = DefaultKeyColumn
	}

	diffs := diff.Compute(w.snapshots.Get(table), rows, key)
	for i := range diffs {
		diffs[i].Table = table
	}
	w.snapshots.Put(table, rows)

	if w.filter != nil {
		diffs = w.filter.FilterDiffs(table, diffs)
	}
	w.logger.Debugf("Computed %d row diffs for %s", len(diffs), table)
	return diffs
}

func (w *Watcher) newRecord(result cycleResult) *models.ChangeRecord {
	kinds := make([]string, 0, len(result.kinds))
	for k := range result.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	label := fmt.Sprintf("%d tables", len(result.tables))
	if len(result.tables) == 1 {
		label = result.tables[0].String()
	}

	return &models.ChangeRecord{
		Event: models.ChangeEvent{
			ID:         w.state.NextChangeID(),
			Timestamp:  w.clock.Now(),
			Table:      label,
			ChangeType: strings.Join(kinds, "+"),
			RowCount:   result.rows,
		},
		Diffs: result.diffs,
	}
}

func (w *Watcher) publish(record *models.ChangeRecord) {
	w.display.Change(record, w.opts.Interactive)
	if w.opts.Interactive {
		w.display.Prompt(w.state.ChangeCount())
	}

	for _, p := range w.publishers {
		if err := p.Publish(record); err != nil {
			w.logger.Warnf("Failed to publish change #%d: %v", record.Event.ID, err)
		}
	}
}
