package models

import "fmt"

// TableID identifies a watched table. It is comparable and used as a map key.
type TableID struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// String returns the flattened "schema.table" form used as the snapshot key.
func (t TableID) String() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.Table)
}

// Counters holds the cumulative insert/update/delete counts for one table.
type Counters struct {
	Inserts int64 `json:"inserts"`
	Updates int64 `json:"updates"`
	Deletes int64 `json:"deletes"`
}

// CounterSnapshot is the set of counters observed for every watched table at one point in time.
type CounterSnapshot map[TableID]Counters

// Clone returns an independent copy of the snapshot.
func (s CounterSnapshot) Clone() CounterSnapshot {
	clone := make(CounterSnapshot, len(s))
	for id, c := range s {
		clone[id] = c
	}
	return clone
}

// Equal reports whether both snapshots hold the same tables with the same counters.
func (s CounterSnapshot) Equal(other CounterSnapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for id, c := range s {
		if o, ok := other[id]; !ok || o != c {
			return false
		}
	}
	return true
}
