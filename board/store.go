// Package board owns the live board and runs the commands that mutate it.
package board

import (
	"sync"

	"github.com/thinkocapo/board/domain"
)

// Store holds the current board. Each mutation is atomic; callers read
// through snapshots and learn about changes through Subscribe.
type Store struct {
	mu      sync.RWMutex
	board   domain.Board
	version uint64

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewStore returns a store holding initial.
func NewStore(initial domain.Board) *Store {
	return &Store{
		board: initial,
		subs:  make(map[int]chan struct{}),
	}
}

// Snapshot returns a deep copy of the current board.
func (s *Store) Snapshot() domain.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Clone()
}

// View renders the current board together with its version.
func (s *Store) View() domain.BoardView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.View(s.version)
}

// Version increases by one with every applied mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Find locates a task anywhere on the board.
func (s *Store) Find(taskID string) (domain.Task, domain.ColumnID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Find(taskID)
}

// TaskIn returns the task if it is in column.
func (s *Store) TaskIn(taskID string, column domain.ColumnID) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.TaskIn(taskID, column)
}

// HasColumn reports whether id is part of the layout.
func (s *Store) HasColumn(id domain.ColumnID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Has(id)
}

// Move relocates a task and reports whether the board changed.
func (s *Store) Move(taskID string, from, to domain.ColumnID) bool {
	return s.update(func(b domain.Board) (domain.Board, bool) {
		return b.MoveTask(taskID, from, to)
	})
}

// Delete removes a task and reports whether the board changed.
func (s *Store) Delete(taskID string, column domain.ColumnID) bool {
	return s.update(func(b domain.Board) (domain.Board, bool) {
		return b.DeleteTask(taskID, column)
	})
}

// SetStatus updates a task in place and reports whether the board changed.
func (s *Store) SetStatus(taskID string, column domain.ColumnID, status domain.Status) bool {
	return s.update(func(b domain.Board) (domain.Board, bool) {
		return b.SetStatus(taskID, column, status)
	})
}

// Insert appends a new task to column.
func (s *Store) Insert(column domain.ColumnID, t domain.Task) error {
	var err error
	s.update(func(b domain.Board) (domain.Board, bool) {
		var next domain.Board
		next, err = b.InsertTask(column, t)
		return next, err == nil
	})
	return err
}

// Subscribe returns a channel that receives a value after mutations. Several
// mutations between reads coalesce into one notification. The returned func
// unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) update(fn func(domain.Board) (domain.Board, bool)) bool {
	s.mu.Lock()
	next, changed := fn(s.board)
	if changed {
		s.board = next
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
