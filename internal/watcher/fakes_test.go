package watcher_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"tabletrace/internal/models"
)

var (
	users  = models.TableID{Schema: "public", Table: "users"}
	orders = models.TableID{Schema: "public", Table: "orders"}
)

// instantClock fires every timer immediately and advances its own time.
type instantClock struct {
	clock.Clock
	now time.Time
}

func newInstantClock() *instantClock {
	return &instantClock{
		Clock: clock.WallClock,
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (c *instantClock) Now() time.Time { return c.now }

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// scriptedCounters returns the scripted snapshots in order and then repeats
// the last one. A non-nil entry in errs fails the matching call.
type scriptedCounters struct {
	mu     sync.Mutex
	script []models.CounterSnapshot
	errs   map[int]error
	calls  int
}

func (s *scriptedCounters) FetchCounters(ctx context.Context, tables []models.TableID) (models.CounterSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := s.calls
	s.calls++
	if err := s.errs[call]; err != nil {
		return nil, err
	}
	if len(s.script) == 0 {
		return models.CounterSnapshot{}, nil
	}
	if call >= len(s.script) {
		call = len(s.script) - 1
	}
	return s.script[call].Clone(), nil
}

func (s *scriptedCounters) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// liveCounters returns whatever the test last stored.
type liveCounters struct {
	mu   sync.Mutex
	snap models.CounterSnapshot
	err  error
}

func (l *liveCounters) set(table models.TableID, c models.Counters) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.snap == nil {
		l.snap = models.CounterSnapshot{}
	}
	l.snap[table] = c
}

func (l *liveCounters) FetchCounters(ctx context.Context, tables []models.TableID) (models.CounterSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := models.CounterSnapshot{}
	for _, t := range tables {
		if c, ok := l.snap[t]; ok {
			out[t] = c
		}
	}
	return out, nil
}

type fakeRows struct {
	rows map[models.TableID][]models.Row
	errs map[models.TableID]error
}

func newFakeRows() *fakeRows {
	return &fakeRows{
		rows: make(map[models.TableID][]models.Row),
		errs: make(map[models.TableID]error),
	}
}

func (f *fakeRows) FetchRows(ctx context.Context, table models.TableID) ([]models.Row, error) {
	if err := f.errs[table]; err != nil {
		return nil, err
	}
	return f.rows[table], nil
}

type fakeKeys map[models.TableID]string

func (f fakeKeys) PrimaryKey(ctx context.Context, table models.TableID) (string, bool) {
	k, ok := f[table]
	return k, ok
}

type recordingPublisher struct {
	records []*models.ChangeRecord
	err     error
}

func (p *recordingPublisher) Publish(record *models.ChangeRecord) error {
	p.records = append(p.records, record)
	return p.err
}

// recordingDisplay keeps one line per call.
type recordingDisplay struct {
	calls   []string
	changes []*models.ChangeRecord
	details []*models.ChangeRecord
}

func (d *recordingDisplay) add(format string, args ...interface{}) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *recordingDisplay) Change(record *models.ChangeRecord, interactive bool) {
	d.changes = append(d.changes, record)
	d.add("change #%d", record.Event.ID)
}
func (d *recordingDisplay) Prompt(changeCount int64) { d.add("prompt %d", changeCount) }
func (d *recordingDisplay) Watching(tables []models.TableID, title string) {
	d.add("watching %s %v", title, tables)
}
func (d *recordingDisplay) TableChoices(tables []models.TableID) { d.add("choices %d", len(tables)) }
func (d *recordingDisplay) History(records []models.ChangeRecord) {
	d.add("history %d", len(records))
}
func (d *recordingDisplay) Details(record *models.ChangeRecord) {
	d.details = append(d.details, record)
	d.add("details #%d", record.Event.ID)
}
func (d *recordingDisplay) NotFound(id int64)      { d.add("not found #%d", id) }
func (d *recordingDisplay) Help()                  { d.add("help") }
func (d *recordingDisplay) Unknown(input string)   { d.add("unknown %s", input) }
func (d *recordingDisplay) Warning(message string) { d.add("warning %s", message) }
func (d *recordingDisplay) Success(message string) { d.add("success %s", message) }
func (d *recordingDisplay) Goodbye()               { d.add("goodbye") }

func (d *recordingDisplay) has(call string) bool {
	for _, c := range d.calls {
		if c == call {
			return true
		}
	}
	return false
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

var errBoom = errors.New("boom")
