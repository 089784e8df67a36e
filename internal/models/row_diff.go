package models

// DiffKind classifies a row-level change.
type DiffKind string

const (
	Added    DiffKind = "added"
	Removed  DiffKind = "removed"
	Modified DiffKind = "modified"
)

// RowDiff describes one changed logical row between two snapshots of a table.
type RowDiff struct {
	Table          TableID  `json:"table"`
	KeyColumn      string   `json:"key_column"`
	KeyValue       string   `json:"key_value"`
	Kind           DiffKind `json:"kind"`
	Old            *Row     `json:"old,omitempty"`
	New            *Row     `json:"new,omitempty"`
	ChangedColumns []string `json:"changed_columns"`
}
