package main

import (
	"fmt"
	"io"
	"sort"

	persistlog "roguecloud.ai/internal/persistence/log"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/world"
)

type tickSummary struct {
	Files      int
	Ticks      int
	First      uint64
	Last       uint64
	Gaps       int
	Joins      int
	Reconnects int
	Leaves     int
	Actions    map[string]int
	LastDigest string
}

// summarizeTicks reads every tick log in dir and counts joins, leaves and actions by type.
// A tick that does not follow its predecessor counts as a gap.
func summarizeTicks(dir string) (tickSummary, error) {
	s := tickSummary{Actions: map[string]int{}}
	files, err := persistlog.Files(dir, "ticks")
	if err != nil {
		return s, err
	}
	s.Files = len(files)
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(e world.TickLogEntry) error {
			if s.Ticks == 0 {
				s.First = e.Tick
			} else if e.Tick != s.Last+1 {
				s.Gaps++
			}
			s.Ticks++
			s.Last = e.Tick
			s.LastDigest = e.Digest
			for _, j := range e.Joins {
				if j.Reconnect {
					s.Reconnects++
				} else {
					s.Joins++
				}
			}
			s.Leaves += len(e.Leaves)
			for _, a := range e.Actions {
				s.Actions[a.Type]++
			}
			return nil
		})
		if err != nil {
			return s, fmt.Errorf("%s: %w", path, err)
		}
	}
	return s, nil
}

func (s tickSummary) Write(w io.Writer) {
	fmt.Fprintf(w, "ticks: files=%d ticks=%d range=[%d,%d] gaps=%d joins=%d reconnects=%d leaves=%d digest=%s\n",
		s.Files, s.Ticks, s.First, s.Last, s.Gaps, s.Joins, s.Reconnects, s.Leaves, s.LastDigest)
	for _, k := range sortedKeys(s.Actions) {
		fmt.Fprintf(w, "  action %-28s %d\n", k, s.Actions[k])
	}
}

type eventSummary struct {
	Files  int
	Ticks  int
	Events int
	ByType map[string]int
	// Per attacking creature.
	Hits   map[int64]int
	Damage map[int64]int
	Drinks map[int64]int
}

func summarizeEvents(dir string) (eventSummary, error) {
	s := eventSummary{ByType: map[string]int{}, Hits: map[int64]int{}, Damage: map[int64]int{}, Drinks: map[int64]int{}}
	files, err := persistlog.Files(dir, "events")
	if err != nil {
		return s, err
	}
	s.Files = len(files)
	for _, path := range files {
		err := persistlog.ReadEvents(path, func(e world.EventLogEntry) error {
			s.Ticks++
			for _, ev := range e.Events {
				s.Events++
				s.ByType[ev.Type]++
				switch ev.Type {
				case string(events.KindCombat):
					if ev.Hit {
						s.Hits[ev.AttackerID]++
						s.Damage[ev.AttackerID] += ev.Damage
					}
				case string(events.KindDrink):
					s.Drinks[ev.CreatureID]++
				}
			}
			return nil
		})
		if err != nil {
			return s, fmt.Errorf("%s: %w", path, err)
		}
	}
	return s, nil
}

func (s eventSummary) Write(w io.Writer, top int) {
	fmt.Fprintf(w, "events: files=%d ticks=%d events=%d\n", s.Files, s.Ticks, s.Events)
	for _, k := range sortedKeys(s.ByType) {
		fmt.Fprintf(w, "  event %-28s %d\n", k, s.ByType[k])
	}
	ids := make([]int64, 0, len(s.Damage))
	for id := range s.Damage {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if s.Damage[ids[i]] != s.Damage[ids[j]] {
			return s.Damage[ids[i]] > s.Damage[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if top > 0 && len(ids) > top {
		ids = ids[:top]
	}
	for _, id := range ids {
		fmt.Fprintf(w, "  attacker %-8d hits=%d damage=%d drinks=%d\n", id, s.Hits[id], s.Damage[id], s.Drinks[id])
	}
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
