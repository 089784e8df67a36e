package watcher

import "sync/atomic"

// SessionState holds the flags shared between the watch loop and the
// background tasks of one session.
type SessionState struct {
	connectionLost atomic.Bool
	selecting      atomic.Bool
	changeCount    atomic.Int64
	lastID         atomic.Int64
}

func NewSessionState() *SessionState {
	return &SessionState{}
}

// MarkConnectionLost is called by the connection keeper.
func (s *SessionState) MarkConnectionLost() { s.connectionLost.Store(true) }

func (s *SessionState) ConnectionLost() bool { return s.connectionLost.Load() }

func (s *SessionState) SetSelecting(v bool) { s.selecting.Store(v) }

func (s *SessionState) Selecting() bool { return s.selecting.Load() }

// NextChangeID allocates the next event id and bumps the displayed change
// count. Ids start at 1 and only Restart rewinds them.
func (s *SessionState) NextChangeID() int64 {
	s.changeCount.Add(1)
	return s.lastID.Add(1)
}

func (s *SessionState) ChangeCount() int64 { return s.changeCount.Load() }

// ResetChanges zeroes the displayed change count. Event ids keep increasing.
func (s *SessionState) ResetChanges() { s.changeCount.Store(0) }

// Restart zeroes both the change count and the id sequence for a new
// table selection.
func (s *SessionState) Restart() {
	s.changeCount.Store(0)
	s.lastID.Store(0)
}
