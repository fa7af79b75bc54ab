package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	persistlog "roguecloud.ai/internal/persistence/log"
	"roguecloud.ai/internal/persistence/snapshot"
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/encoding"
	"roguecloud.ai/internal/sim/world"
)

// testSnapshot is a 4x3 room: walls on the border column x=3, a player, a monster and a potion.
func testSnapshot() snapshot.SnapshotV1 {
	const w, h = 4, 3
	passable := make([]bool, w*h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			passable[x*h+y] = x != 3
		}
	}
	return snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, RoundID: 2, Tick: 40},
		Width:    w,
		Height:   h,
		Passable: encoding.EncodeBools(passable),
		Creatures: []snapshot.CreatureV1{
			{ID: 1, Name: "alice", Player: true, X: 0, Y: 0, HP: 200, MaxHP: 250, Level: 1},
			{ID: 2, Name: "Rat", X: 1, Y: 1, HP: 5, MaxHP: 5, Level: 1, Behavior: "wander_attack"},
			{ID: 3, Name: "Ghost", X: 2, Y: 2, HP: 0, MaxHP: 5},
		},
		GroundObjects: []snapshot.GroundObjectV1{{ID: 9, X: 2, Y: 0, Object: snapshot.ObjectRefV1{Kind: "ITEM", DefID: 1}}},
		Players:       []snapshot.PlayerV1{{CreatureID: 1, UserID: 7, Username: "alice", Score: 1234}},
	}
}

func TestRender_Glyphs(t *testing.T) {
	m, err := newSnapshotMap(testSnapshot())
	if err != nil {
		t.Fatalf("newSnapshotMap: %v", err)
	}
	var buf bytes.Buffer
	if err := m.Render(&buf, cropBox{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "@.!#\n.M.#\n...#\n"
	if buf.String() != want {
		t.Fatalf("map:\n%s\nwant:\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := m.Render(&buf, cropBox{X: 1, Y: 1, W: 2, H: 5}); err != nil {
		t.Fatalf("Render crop: %v", err)
	}
	if buf.String() != "M.\n..\n" {
		t.Fatalf("cropped map:\n%s", buf.String())
	}
}

func TestRender_RejectsShortLayer(t *testing.T) {
	s := testSnapshot()
	s.Width = 10
	if _, err := newSnapshotMap(s); err == nil {
		t.Fatalf("expected a layer length error")
	}
}

func TestCreatureTable_PlayersFirst(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCreatureTable(&buf, testSnapshot()); err != nil {
		t.Fatalf("writeCreatureTable: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines: %d\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "alice") || !strings.Contains(lines[1], "1234") {
		t.Fatalf("first row should be the player: %q", lines[1])
	}
	if !strings.Contains(lines[2], "wander_attack") || !strings.Contains(lines[3], "monster") {
		t.Fatalf("monster rows: %q %q", lines[2], lines[3])
	}
}

func TestSummaries_ReadRoundLogs(t *testing.T) {
	dir := persistlog.RoundDir(t.TempDir(), 2)
	tl := persistlog.NewTickLogger(dir)
	el := persistlog.NewEventLogger(dir)
	for tick := uint64(1); tick <= 5; tick++ {
		if tick == 4 {
			continue
		}
		e := world.TickLogEntry{Tick: tick, Digest: "d"}
		if tick == 1 {
			e.Joins = []world.RecordedJoin{{CreatureID: 1, UserID: 7, Username: "alice"}}
		}
		e.Actions = []world.RecordedAction{{CreatureID: 1, Type: protocol.TypeStepAction}}
		if err := tl.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := el.WriteEvents(world.EventLogEntry{Tick: 2, Events: []protocol.Event{
		{Type: "CombatActionEvent", ID: 1, AttackerID: 1, DefenderID: 2, Hit: true, Damage: 4},
		{Type: "CombatActionEvent", ID: 2, AttackerID: 1, DefenderID: 2, Hit: false},
		{Type: "DrinkItemActionEvent", ID: 3, CreatureID: 1, ObjectID: 9},
	}}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close ticks: %v", err)
	}
	if err := el.Close(); err != nil {
		t.Fatalf("close events: %v", err)
	}

	ts, err := summarizeTicks(filepath.Join(dir, "ticks"))
	if err != nil {
		t.Fatalf("summarizeTicks: %v", err)
	}
	if ts.Ticks != 4 || ts.First != 1 || ts.Last != 5 || ts.Gaps != 1 || ts.Joins != 1 {
		t.Fatalf("tick summary: %+v", ts)
	}
	if ts.Actions[protocol.TypeStepAction] != 4 {
		t.Fatalf("step actions: %d", ts.Actions[protocol.TypeStepAction])
	}

	es, err := summarizeEvents(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("summarizeEvents: %v", err)
	}
	if es.Events != 3 || es.Hits[1] != 1 || es.Damage[1] != 4 || es.Drinks[1] != 1 {
		t.Fatalf("event summary: %+v", es)
	}
	var buf bytes.Buffer
	es.Write(&buf, 5)
	if !strings.Contains(buf.String(), "hits=1 damage=4 drinks=1") {
		t.Fatalf("summary output:\n%s", buf.String())
	}
}
