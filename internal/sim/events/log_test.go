package events

import (
	"testing"

	"roguecloud.ai/internal/sim/geom"
)

func step(id int64, tick uint64, creature int64) Event {
	return Step{Base: Base{EventID: id, Tick: tick}, CreatureID: creature, From: geom.P(0, 0), To: geom.P(0, 1)}
}

func TestLog_AddIsIdempotent(t *testing.T) {
	l := NewLog(10)
	e := step(1, 0, 5)
	if n := l.Add(e, e); n != 1 {
		t.Fatalf("expected 1 stored, got %d", n)
	}
	if n := l.Add(e); n != 0 {
		t.Fatalf("re-add stored %d", n)
	}
	if l.Len() != 1 {
		t.Fatalf("expected one event, got %d", l.Len())
	}
}

func TestLog_Retention(t *testing.T) {
	const window = 5
	const at = 20
	for k := uint64(0); k <= window+1; k++ {
		l := NewLog(window)
		l.Add(step(1, at, 1))
		l.Purge(at + k)
		present := l.Len() == 1
		if want := k < window; present != want {
			t.Fatalf("k=%d: present=%v want %v", k, present, want)
		}
	}
}

func TestLog_PurgeAllowsReAdd(t *testing.T) {
	l := NewLog(1)
	l.Add(step(1, 0, 1))
	l.Purge(5)
	if n := l.Add(step(1, 5, 1)); n != 1 {
		t.Fatalf("purged id should be insertable again")
	}
}

func TestLog_AddSkipsEventsOutsideWindow(t *testing.T) {
	l := NewLog(5)
	l.Add(step(1, 10, 1))
	l.Purge(15)
	if l.Len() != 0 {
		t.Fatalf("event of tick 10 kept at 15")
	}
	if n := l.Add(step(1, 10, 1), step(2, 9, 1)); n != 0 {
		t.Fatalf("redelivered old events stored: %d", n)
	}
	if n := l.Add(step(3, 11, 1)); n != 1 {
		t.Fatalf("event still inside the window refused")
	}
	l.Purge(12)
	if n := l.Add(step(4, 10, 1)); n != 0 {
		t.Fatalf("an earlier Purge tick lowered the window")
	}

	l.Reset()
	if n := l.Add(step(1, 10, 1)); n != 1 {
		t.Fatalf("Reset should clear the purge tick")
	}
}

func TestLog_Queries(t *testing.T) {
	l := NewLog(100)
	l.Add(
		step(1, 7, 1),
		step(2, 8, 2),
		Combat{Base: Base{EventID: 3, Tick: 9}, AttackerID: 2, DefenderID: 1, Hit: true, Damage: 4},
		step(4, 9, 3),
		step(5, 10, 1),
	)
	const now = 10

	cases := []struct {
		name string
		got  []Event
		want []int64
	}{
		{"all", l.All(), []int64{1, 2, 3, 4, 5}},
		{"last turn self defender", l.LastTurnSelf(1, now), []int64{3}},
		{"last turn self uninvolved", l.LastTurnSelf(2, now-2), []int64{}},
		{"last turn world", l.LastTurnWorld(now), []int64{3, 4}},
		{"last 2 turns world", l.LastTurnsWorld(2, now), []int64{2, 3, 4}},
		{"last 3 turns self", l.LastTurnsSelf(3, 1, now), []int64{1, 3}},
		{"zero turns", l.LastTurnsWorld(0, now), []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if len(tc.got) != len(tc.want) {
				t.Fatalf("got %d events, want %v", len(tc.got), tc.want)
			}
			for i, e := range tc.got {
				if e.ID() != tc.want[i] {
					t.Fatalf("event %d id=%d want %d", i, e.ID(), tc.want[i])
				}
			}
		})
	}
}

func TestLog_ResultsAreCopies(t *testing.T) {
	l := NewLog(10)
	l.Add(step(1, 0, 1))
	got := l.All()
	got[0] = nil
	if l.All()[0] == nil {
		t.Fatalf("query result aliases the log")
	}
}

func TestWithin(t *testing.T) {
	b := geom.Box{X: 0, Y: 0, W: 2, H: 2}
	s := Step{From: geom.P(1, 1), To: geom.P(2, 1)}
	if !Within(s, b) {
		t.Fatalf("step leaving the box should be visible")
	}
	c := Combat{Pos: geom.P(5, 5)}
	if Within(c, b) {
		t.Fatalf("combat outside the box should not be visible")
	}
}
