package watcher

import (
	"sync"

	"tabletrace/internal/models"
)

// SnapshotStore keeps the last captured rows of every watched table.
type SnapshotStore struct {
	mu   sync.Mutex
	rows map[string][]models.Row
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{rows: make(map[string][]models.Row)}
}

// Get returns the stored rows of table, or nil when nothing was captured.
func (s *SnapshotStore) Get(table models.TableID) []models.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[table.String()]
}

func (s *SnapshotStore) Put(table models.TableID, rows []models.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[table.String()] = rows
}

func (s *SnapshotStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string][]models.Row)
}

func (s *SnapshotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
