package world

import (
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// Debug helpers mutate the world outside the tick loop. They are for tests and tools that drive
// the world through StepOnce and must not be used while Run is active.

func (w *World) DebugSetCreaturePos(id int64, p geom.Position) bool {
	if w.creatures[id] == nil || !p.InBounds(w.cfg.Width, w.cfg.Height) {
		return false
	}
	w.mutate(id, func(c *entity.Creature) { c.SetPosition(p) })
	return true
}

func (w *World) DebugSetHP(id int64, hp int) bool {
	if w.creatures[id] == nil {
		return false
	}
	w.mutate(id, func(c *entity.Creature) { c.SetHP(hp) })
	return true
}

// DebugGive puts a fresh instance of o into the creature's inventory and returns its object id.
func (w *World) DebugGive(id int64, o entity.Object) (int64, bool) {
	if w.creatures[id] == nil || o == nil {
		return 0, false
	}
	oid := w.newObjectID()
	w.mutate(id, func(c *entity.Creature) { c.AddInventory(entity.OwnableObject{ID: oid, Object: o}) })
	return oid, true
}

func (w *World) DebugDropAt(o entity.Object, p geom.Position) (int64, bool) {
	if o == nil || w.m.Tile(p) == nil {
		return 0, false
	}
	g := w.dropOnGround(w.newObjectID(), o, p)
	return g.ID, true
}

// DebugSetTerrain replaces the tile at p, keeping whatever stands on it.
func (w *World) DebugSetTerrain(p geom.Position, passable bool, tileName string) bool {
	old := w.m.Tile(p)
	if old == nil {
		return false
	}
	t := worldmap.NewTile(passable, w.cats.Tiles.Get(tileName))
	for _, c := range old.Creatures() {
		t.AddCreature(c)
	}
	for _, g := range old.GroundObjects() {
		t.AddGroundObject(g)
	}
	w.m.Put(p, t)
	for _, cs := range w.clients {
		cs.session.ForceFull()
	}
	return true
}

func (w *World) DebugCreature(id int64) (*entity.Creature, bool) {
	c := w.creatures[id]
	return c, c != nil
}

func (w *World) DebugScore(creatureID int64) (int64, bool) {
	p := w.players[creatureID]
	if p == nil {
		return 0, false
	}
	return p.score, true
}

func (w *World) DebugMonsterIDs() []int64 { return sortedKeys(w.monsters) }

func (w *World) DebugDigest() string { return w.stateDigest(w.CurrentTick()) }
