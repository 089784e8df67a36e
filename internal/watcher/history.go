package watcher

import (
	"sync"

	"tabletrace/internal/models"
)

const DefaultHistorySize = 100

// History is a bounded in-memory log of change records. The oldest record is
// evicted first once the limit is reached.
type History struct {
	mu      sync.Mutex
	limit   int
	records []models.ChangeRecord
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit}
}

func (h *History) Append(record models.ChangeRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, record)
	if over := len(h.records) - h.limit; over > 0 {
		h.records = append(h.records[:0:0], h.records[over:]...)
	}
}

// List returns a copy of the records, oldest first.
func (h *History) List() []models.ChangeRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.ChangeRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Find returns the record with the given event id.
func (h *History) Find(id int64) (models.ChangeRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range h.records {
		if r.Event.ID == id {
			return r, true
		}
	}
	return models.ChangeRecord{}, false
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
