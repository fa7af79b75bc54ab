package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, 7, 1200)
	if filepath.Dir(filepath.Dir(path)) != dir {
		t.Fatalf("path %q not under %q", path, dir)
	}

	in := SnapshotV1{
		Header:   Header{Version: Version, WorldID: "round-7", RoundID: 7, Tick: 1200},
		Seed:     42,
		Width:    3,
		Height:   2,
		Passable: "AQY=",
		Creatures: []CreatureV1{
			{ID: 1, Name: "alice", Player: true, UserID: 9, X: 1, Y: 1, HP: 10, MaxHP: 20, WeaponID: 1},
		},
		GroundObjects: []GroundObjectV1{{ID: 5, X: 2, Y: 0, Object: ObjectRefV1{Kind: "ITEM", DefID: 3}}},
		Players:       []PlayerV1{{CreatureID: 1, UserID: 9, Username: "alice", Score: 77, BestDefenses: map[string]int{"HEAD": 2}}},
		Counters:      CountersV1{NextCreature: 2, NextObject: 6, NextEvent: 100},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != in.Header {
		t.Fatalf("header: got %+v want %+v", h, in.Header)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Seed != 42 || out.Width != 3 || out.Passable != in.Passable {
		t.Fatalf("scalar fields lost: %+v", out)
	}
	if len(out.Creatures) != 1 || out.Creatures[0].Name != "alice" {
		t.Fatalf("creatures: %+v", out.Creatures)
	}
	if out.Players[0].BestDefenses["HEAD"] != 2 || out.Counters.NextEvent != 100 {
		t.Fatalf("players/counters: %+v %+v", out.Players, out.Counters)
	}
}

func TestReadSnapshot_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 99}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
