package events

import "sync"

// Log is an append-only window of recent events. One goroutine appends and advances it;
// any number of readers query it. Query results are fresh slices.
type Log struct {
	retention uint64

	mu     sync.RWMutex
	events []Event
	ids    map[int64]struct{}
	// purgedAt is the tick of the last Purge; events already outside the window at that tick
	// are refused.
	purgedAt uint64
}

// NewLog keeps events for retention ticks: an event of tick T is present while the current
// tick is below T+retention.
func NewLog(retention uint64) *Log {
	if retention == 0 {
		retention = 1
	}
	return &Log{retention: retention, ids: map[int64]struct{}{}}
}

func (l *Log) Retention() uint64 { return l.retention }

// Add appends events not already present by id and returns how many were stored. Events that
// the last Purge would have dropped are skipped, so a redelivered old event does not return.
func (l *Log) Add(evs ...Event) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range evs {
		if e == nil {
			continue
		}
		if _, dup := l.ids[e.ID()]; dup {
			continue
		}
		if e.Frame()+l.retention <= l.purgedAt {
			continue
		}
		l.ids[e.ID()] = struct{}{}
		l.events = append(l.events, e)
		n++
	}
	return n
}

// Purge drops events whose age at tick now has reached the retention window.
func (l *Log) Purge(now uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now > l.purgedAt {
		l.purgedAt = now
	}
	kept := l.events[:0]
	removed := 0
	for _, e := range l.events {
		if e.Frame()+l.retention <= now {
			delete(l.ids, e.ID())
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(l.events); i++ {
		l.events[i] = nil
	}
	l.events = kept
	return removed
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.ids = map[int64]struct{}{}
	l.purgedAt = 0
}

func (l *Log) filter(keep func(Event) bool) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, 0)
	for _, e := range l.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Log) All() []Event {
	return l.filter(func(Event) bool { return true })
}

// LastTurnSelf returns the events of tick now-1 involving creature id.
func (l *Log) LastTurnSelf(id int64, now uint64) []Event {
	return l.filter(func(e Event) bool { return now > 0 && e.Frame() == now-1 && e.Involves(id) })
}

// LastTurnsSelf returns the events of the last k ticks (now-k .. now-1) involving creature id.
func (l *Log) LastTurnsSelf(k int, id int64, now uint64) []Event {
	return l.filter(func(e Event) bool { return inLastTurns(e, k, now) && e.Involves(id) })
}

func (l *Log) LastTurnWorld(now uint64) []Event {
	return l.filter(func(e Event) bool { return now > 0 && e.Frame() == now-1 })
}

func (l *Log) LastTurnsWorld(k int, now uint64) []Event {
	return l.filter(func(e Event) bool { return inLastTurns(e, k, now) })
}

// Since returns events with frame >= tick.
func (l *Log) Since(tick uint64) []Event {
	return l.filter(func(e Event) bool { return e.Frame() >= tick })
}

func inLastTurns(e Event, k int, now uint64) bool {
	if k <= 0 {
		return false
	}
	f := e.Frame()
	return f < now && f+uint64(k) >= now
}
