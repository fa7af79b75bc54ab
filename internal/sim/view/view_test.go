package view

import (
	"testing"

	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

func openMap(w, h int) *worldmap.ArrayMap {
	m := worldmap.NewArrayMap(w, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			m.Put(geom.P(x, y), worldmap.NewTile(true, entity.TileType{Number: 1}))
		}
	}
	return m
}

func TestTracker_FirstFrameIsFull(t *testing.T) {
	tr := NewTracker()
	v := geom.Box{X: 3, Y: 4, W: 10, H: 6}
	p := tr.Next(v, nil)
	if !p.Full || p.TileCount() != 60 {
		t.Fatalf("expected full frame of 60 tiles, got full=%v count=%d", p.Full, p.TileCount())
	}
}

func TestTracker_Strips(t *testing.T) {
	cases := []struct {
		name   string
		dx, dy int
		want   geom.Box
	}{
		{"right", 2, 0, geom.Box{X: 20, Y: 10, W: 2, H: 6}},
		{"left", -3, 0, geom.Box{X: 7, Y: 10, W: 3, H: 6}},
		{"down", 0, 1, geom.Box{X: 10, Y: 16, W: 10, H: 1}},
		{"up", 0, -2, geom.Box{X: 10, Y: 8, W: 10, H: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker()
			tr.Next(geom.Box{X: 10, Y: 10, W: 10, H: 6}, nil)
			v := geom.Box{X: 10 + tc.dx, Y: 10 + tc.dy, W: 10, H: 6}
			p := tr.Next(v, nil)
			if p.Full {
				t.Fatalf("straight scroll must not be full")
			}
			if len(p.Regions) != 1 || p.Regions[0] != tc.want {
				t.Fatalf("regions %+v want %+v", p.Regions, tc.want)
			}
			delta := tc.dx + tc.dy
			if delta < 0 {
				delta = -delta
			}
			extent := v.H
			if tc.dy != 0 {
				extent = v.W
			}
			if p.TileCount() != delta*extent {
				t.Fatalf("tile count %d want %d", p.TileCount(), delta*extent)
			}
		})
	}
}

func TestTracker_DiagonalIsFull(t *testing.T) {
	tr := NewTracker()
	tr.Next(geom.Box{X: 5, Y: 5, W: 8, H: 4}, nil)
	p := tr.Next(geom.Box{X: 6, Y: 6, W: 8, H: 4}, nil)
	if !p.Full || p.TileCount() != 32 {
		t.Fatalf("diagonal shift: full=%v count=%d", p.Full, p.TileCount())
	}
}

func TestTracker_DirtyTiles(t *testing.T) {
	tr := NewTracker()
	v := geom.Box{X: 0, Y: 0, W: 5, H: 5}
	tr.Next(v, nil)
	p := tr.Next(v, []geom.Position{geom.P(1, 1), geom.P(1, 1), geom.P(9, 9), geom.P(4, 0)})
	if p.Full || len(p.Regions) != 2 {
		t.Fatalf("expected two 1x1 patches, got %+v", p)
	}
	for _, r := range p.Regions {
		if r.W != 1 || r.H != 1 {
			t.Fatalf("dirty patch %+v is not 1x1", r)
		}
	}
	if p := tr.Next(v, nil); len(p.Regions) != 0 {
		t.Fatalf("still viewport without changes should send no tiles: %+v", p)
	}
}

func TestTracker_DirtyInsideStripNotDuplicated(t *testing.T) {
	tr := NewTracker()
	tr.Next(geom.Box{X: 0, Y: 0, W: 5, H: 5}, nil)
	p := tr.Next(geom.Box{X: 1, Y: 0, W: 5, H: 5}, []geom.Position{geom.P(5, 2), geom.P(2, 2)})
	if p.TileCount() != 5+1 {
		t.Fatalf("expected strip plus one dirty tile, got %d", p.TileCount())
	}
}

func TestTracker_ForceFull(t *testing.T) {
	tr := NewTracker()
	v := geom.Box{W: 3, H: 3}
	tr.Next(v, nil)
	tr.ForceFull()
	if p := tr.Next(v, nil); !p.Full {
		t.Fatalf("expected forced full frame")
	}
	if p := tr.Next(v, nil); p.Full {
		t.Fatalf("force must apply once")
	}
}

func TestSession_FrameContents(t *testing.T) {
	m := openMap(20, 20)
	sword := &entity.Weapon{ID: 7, Name: "Sword", NumAttackDice: 1, AttackDiceSize: 6}
	self := entity.NewCreature(entity.CreatureSpec{ID: 1, Name: "alice", Player: true, MaxHP: 10, Pos: geom.P(10, 10), Weapon: sword})
	other := entity.NewCreature(entity.CreatureSpec{ID: 2, Name: "rat", MaxHP: 3, Pos: geom.P(11, 10)})
	far := entity.NewCreature(entity.CreatureSpec{ID: 3, Name: "bat", MaxHP: 3, Pos: geom.P(0, 0)})
	for _, c := range []*entity.Creature{self, other, far} {
		m.TileForWrite(c.Position()).AddCreature(c)
	}
	potion := &entity.Potion{ID: 4, Name: "Healing", Effect: entity.Effect{Type: entity.EffectLife, Magnitude: 5, RemainingTurns: 3}}
	m.TileForWrite(geom.P(9, 10)).AddGroundObject(&entity.GroundObject{ID: 100, Object: potion, Pos: geom.P(9, 10)})

	snap := m.CloneForRead()
	recent := []events.Event{
		events.Step{Base: events.Base{EventID: 1, Tick: 4}, CreatureID: 2, From: geom.P(12, 10), To: geom.P(11, 10)},
		events.Step{Base: events.Base{EventID: 2, Tick: 4}, CreatureID: 3, From: geom.P(1, 0), To: geom.P(0, 0)},
	}

	s := NewSession()
	f := s.Frame(FrameInput{Map: snap, Self: self, Tick: 5, ViewWidth: 6, ViewHeight: 4, Recent: recent, Retained: recent})
	if !f.IsFull {
		t.Fatalf("first frame must be full")
	}
	ws := f.WorldState
	if ws.ClientViewPosX != 7 || ws.ClientViewPosY != 8 || ws.ClientViewWidth != 6 {
		t.Fatalf("unexpected viewport %+v", ws)
	}
	if len(ws.FrameData) != 1 || len(ws.FrameData[0].Tiles) != 24 {
		t.Fatalf("expected one 6x4 patch")
	}
	if len(ws.VisibleCreatures) != 2 {
		t.Fatalf("expected self and neighbour visible, got %d", len(ws.VisibleCreatures))
	}
	if len(ws.VisibleObjects) != 1 || len(ws.Drinkables) != 1 || len(ws.Weapons) != 1 {
		t.Fatalf("expected potion and sword definitions: %+v", ws)
	}
	if len(ws.Events) != 1 || ws.Events[0].ID != 1 {
		t.Fatalf("expected only the in-view event, got %+v", ws.Events)
	}
	if f.SelfState.Creature.WeaponID != 7 || f.SelfState.Creature.Username != "alice" {
		t.Fatalf("unexpected self %+v", f.SelfState.Creature)
	}

	f2 := s.Frame(FrameInput{Map: snap, Self: self, Tick: 6, ViewWidth: 6, ViewHeight: 4})
	if f2.IsFull || len(f2.WorldState.FrameData) != 0 {
		t.Fatalf("unchanged view should send no tiles")
	}
	if len(f2.WorldState.Drinkables) != 0 || len(f2.WorldState.Weapons) != 0 {
		t.Fatalf("definitions must be sent once per session")
	}

	s.Reset()
	f3 := s.Frame(FrameInput{Map: snap, Self: self, Tick: 7, ViewWidth: 6, ViewHeight: 4})
	if !f3.IsFull || len(f3.WorldState.Weapons) != 1 {
		t.Fatalf("reset should resend a full frame with definitions")
	}
}

func TestSpectator_Frame(t *testing.T) {
	m := openMap(10, 10)
	a := entity.NewCreature(entity.CreatureSpec{ID: 1, Name: "a", Player: true, MaxHP: 5, Pos: geom.P(5, 5), Tile: entity.TileType{Number: 50}})
	m.TileForWrite(a.Position()).AddCreature(a)
	snap := m.CloneForRead()

	sp := NewSpectator()
	f := sp.Frame(BrowserInput{Map: snap, Center: geom.P(5, 5), ViewWidth: 4, ViewHeight: 4, Tick: 10})
	if !f.FullSent || len(f.FrameData) != 1 || len(f.FrameData[0].Data) != 16 {
		t.Fatalf("expected full 4x4 frame, got %+v", f)
	}
	if f.FrameData[0].X != 0 || f.FrameData[0].Y != 0 {
		t.Fatalf("full patch should start at the viewport origin")
	}
	if len(f.Creatures) != 1 || f.Creatures[0].Username != "a" || f.Creatures[0].Position != [2]int{5, 5} {
		t.Fatalf("unexpected creatures %+v", f.Creatures)
	}
	// (5,5) is at offset (2,2) within the 4x4 view starting at (3,3): index 2*4+2.
	if got := f.FrameData[0].Data[10]; len(got) != 2 || got[0][0] != 50 {
		t.Fatalf("creature layer missing: %v", got)
	}

	f2 := sp.Frame(BrowserInput{Map: snap, Center: geom.P(5, 5), ViewWidth: 4, ViewHeight: 4, Tick: 11, Dirty: []geom.Position{geom.P(4, 4)}})
	if f2.FullSent || len(f2.FrameData) != 1 || f2.FrameData[0].X != 1 || f2.FrameData[0].Y != 1 {
		t.Fatalf("expected one relative 1x1 patch, got %+v", f2.FrameData)
	}
}
