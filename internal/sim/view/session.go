package view

import (
	"sort"

	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// FrameInput is everything needed to build one agent frame. Map must be a read snapshot.
type FrameInput struct {
	Map           worldmap.Map
	Self          *entity.Creature
	Score         int64
	Tick          uint64
	ViewWidth     int
	ViewHeight    int
	RoundSecsLeft int
	// Dirty lists tiles written during the tick that produced Map.
	Dirty []geom.Position
	// Recent holds the events of that tick; Retained the whole event log window.
	Recent   []events.Event
	Retained []events.Event
}

// Session is the per-connection view state of one agent: its viewport tracker and the
// catalog definitions already sent to it.
type Session struct {
	tracker *Tracker
	seen    map[entity.ObjectKind]map[int64]struct{}
}

func NewSession() *Session {
	s := &Session{tracker: NewTracker()}
	s.resetSeen()
	return s
}

func (s *Session) resetSeen() {
	s.seen = map[entity.ObjectKind]map[int64]struct{}{
		entity.KindWeapon: {},
		entity.KindArmour: {},
		entity.KindItem:   {},
	}
}

// Reset starts over as for a new connection: the next frame is full and all catalog
// definitions are re-sent.
func (s *Session) Reset() {
	s.tracker.Reset()
	s.resetSeen()
}

func (s *Session) ForceFull() { s.tracker.ForceFull() }

// Viewport is the agent's view box centred on its creature.
func Viewport(m worldmap.Map, center geom.Position, w, h int) geom.Box {
	return geom.CenterOn(center, w, h, m.Width(), m.Height())
}

func (s *Session) Frame(in FrameInput) protocol.FrameUpdate {
	v := Viewport(in.Map, in.Self.Position(), in.ViewWidth, in.ViewHeight)
	plan := s.tracker.Next(v, in.Dirty)

	ws := protocol.WorldState{
		ClientViewPosX:   v.X,
		ClientViewPosY:   v.Y,
		ClientViewWidth:  v.W,
		ClientViewHeight: v.H,
		WorldWidth:       in.Map.Width(),
		WorldHeight:      in.Map.Height(),
		RoundSecsLeft:    in.RoundSecsLeft,
		FrameData:        make([]protocol.TilePatch, 0, len(plan.Regions)),
		VisibleCreatures: make([]protocol.Creature, 0),
		VisibleObjects:   make([]protocol.GroundObject, 0),
		Events:           make([]protocol.Event, 0),
	}
	for _, r := range plan.Regions {
		ws.FrameData = append(ws.FrameData, AgentPatch(in.Map, r))
	}

	var defs []entity.Object
	forEachTile(in.Map, v, func(t *worldmap.Tile) {
		for _, c := range t.Creatures() {
			ws.VisibleCreatures = append(ws.VisibleCreatures, protocol.FromCreature(c, false))
		}
		for _, g := range t.GroundObjects() {
			ws.VisibleObjects = append(ws.VisibleObjects, protocol.FromGroundObject(g))
			defs = append(defs, g.Object)
		}
	})

	inv := in.Self.Inventory()
	self := protocol.SelfState{
		Creature:  protocol.FromCreature(in.Self, true),
		Inventory: make([]protocol.InventoryEntry, 0, len(inv)),
		Score:     in.Score,
	}
	for _, o := range inv {
		self.Inventory = append(self.Inventory, protocol.FromOwnable(o))
		defs = append(defs, o.Object)
	}
	if w := in.Self.Weapon(); w != nil {
		defs = append(defs, w)
	}
	for _, a := range in.Self.Armour() {
		defs = append(defs, a)
	}
	s.addDefs(&ws, defs)

	evs := in.Recent
	if plan.Full {
		evs = in.Retained
	}
	for _, e := range evs {
		if events.Within(e, v) || e.Involves(in.Self.ID()) {
			ws.Events = append(ws.Events, protocol.FromEvent(e))
		}
	}
	sort.Slice(ws.Events, func(i, j int) bool { return ws.Events[i].ID < ws.Events[j].ID })

	return protocol.FrameUpdate{
		Type:       protocol.TypeFrameUpdate,
		Frame:      in.Tick,
		GameTicks:  in.Tick,
		IsFull:     plan.Full,
		SelfState:  self,
		WorldState: ws,
	}
}

// addDefs appends the catalog definitions this session has not been sent yet.
func (s *Session) addDefs(ws *protocol.WorldState, defs []entity.Object) {
	for _, d := range defs {
		seen := s.seen[d.Kind()]
		if _, ok := seen[d.ObjectID()]; ok {
			continue
		}
		seen[d.ObjectID()] = struct{}{}
		switch o := d.(type) {
		case *entity.Weapon:
			ws.Weapons = append(ws.Weapons, protocol.FromWeapon(o))
		case *entity.Armour:
			ws.Armours = append(ws.Armours, protocol.FromArmour(o))
		case *entity.Potion:
			ws.Drinkables = append(ws.Drinkables, protocol.FromPotion(o))
		}
	}
}

func forEachTile(m worldmap.Map, b geom.Box, fn func(*worldmap.Tile)) {
	for y := b.Y; y < b.Y+b.H; y++ {
		for x := b.X; x < b.X+b.W; x++ {
			if t := m.Tile(geom.P(x, y)); t != nil {
				fn(t)
			}
		}
	}
}
