package world

import (
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/events"
)

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type EventLogger interface {
	WriteEvents(entry EventLogEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []int64          `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

// EventLogEntry holds the events of one tick in wire form.
type EventLogEntry struct {
	Tick   uint64           `json:"tick"`
	Events []protocol.Event `json:"events"`
}

func newEventLogEntry(tick uint64, evs []events.Event) EventLogEntry {
	out := EventLogEntry{Tick: tick, Events: make([]protocol.Event, 0, len(evs))}
	for _, e := range evs {
		out.Events = append(out.Events, protocol.FromEvent(e))
	}
	return out
}
