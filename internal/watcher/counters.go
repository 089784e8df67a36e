package watcher

import "tabletrace/internal/models"

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// Change is one counter that grew between two snapshots.
type Change struct {
	Kind  string
	Delta int64
}

// DetectChanges reports which counters of table increased from prev to cur,
// in INSERT, UPDATE, DELETE order. A table missing from either snapshot
// reports nothing.
func DetectChanges(cur, prev models.CounterSnapshot, table models.TableID) []Change {
	c, ok := cur[table]
	if !ok {
		return nil
	}
	p, ok := prev[table]
	if !ok {
		return nil
	}

	var changes []Change
	if d := c.Inserts - p.Inserts; d > 0 {
		changes = append(changes, Change{Kind: ChangeInsert, Delta: d})
	}
	if d := c.Updates - p.Updates; d > 0 {
		changes = append(changes, Change{Kind: ChangeUpdate, Delta: d})
	}
	if d := c.Deletes - p.Deletes; d > 0 {
		changes = append(changes, Change{Kind: ChangeDelete, Delta: d})
	}
	return changes
}

// HasChanges reports whether any table present in both snapshots has a
// counter that increased.
func HasChanges(cur, prev models.CounterSnapshot) bool {
	for table := range cur {
		if len(DetectChanges(cur, prev, table)) > 0 {
			return true
		}
	}
	return false
}

// decreased reports whether any counter of table went backwards, which
// happens after a statistics reset.
func decreased(cur, prev models.CounterSnapshot, table models.TableID) bool {
	c, ok := cur[table]
	if !ok {
		return false
	}
	p, ok := prev[table]
	if !ok {
		return false
	}
	return c.Inserts < p.Inserts || c.Updates < p.Updates || c.Deletes < p.Deletes
}
