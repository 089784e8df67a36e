package models

import "time"

// ChangeEvent is one user-visible notification summarizing a polling cycle.
type ChangeEvent struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Table      string    `json:"table"`       // schema.table, or "<n> tables"
	ChangeType string    `json:"change_type"` // INSERT, UPDATE, DELETE joined by "+"
	RowCount   int64     `json:"row_count"`
}

// ChangeRecord pairs an event with the row diffs computed in the same cycle.
type ChangeRecord struct {
	Event ChangeEvent `json:"event"`
	Diffs []RowDiff   `json:"diffs"`
}
