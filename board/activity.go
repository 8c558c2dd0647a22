package board

import (
	"sync"
	"time"
)

// ActivityLimit is how many entries the activity log keeps.
const ActivityLimit = 10

// ActivityEntry is one line of the activity log.
type ActivityEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

func (e ActivityEntry) String() string {
	return e.At.Format("15:04:05") + " - " + e.Message
}

// ActivityLog keeps the most recent entries, newest first.
type ActivityLog struct {
	mu      sync.Mutex
	entries []ActivityEntry
	limit   int
	now     func() time.Time
}

func NewActivityLog(limit int, now func() time.Time) *ActivityLog {
	if limit <= 0 {
		limit = ActivityLimit
	}
	if now == nil {
		now = time.Now
	}
	return &ActivityLog{limit: limit, now: now}
}

func (l *ActivityLog) Push(msg string) {
	entry := ActivityEntry{At: l.now(), Message: msg}

	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]ActivityEntry, 0, l.limit)
	next = append(next, entry)
	for _, e := range l.entries {
		if len(next) == l.limit {
			break
		}
		next = append(next, e)
	}
	l.entries = next
}

func (l *ActivityLog) Entries() []ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
