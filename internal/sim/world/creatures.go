package world

import (
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
)

// Creatures on published tiles are shared with readers, so every change clones the creature
// and swaps the clone into both the index and its tile.
func (w *World) mutate(id int64, fn func(c *entity.Creature)) *entity.Creature {
	cur := w.creatures[id]
	if cur == nil {
		return nil
	}
	next := cur.Clone()
	fn(next)
	w.creatures[id] = next

	from, to := cur.Position(), next.Position()
	if from != to {
		if t := w.tileForWrite(from); t != nil {
			t.RemoveCreature(id)
		}
		if t := w.tileForWrite(to); t != nil {
			t.AddCreature(next)
		}
		return next
	}
	if t := w.tileForWrite(to); t != nil {
		t.ReplaceCreature(next)
	}
	return next
}

func (w *World) placeCreature(c *entity.Creature) {
	w.creatures[c.ID()] = c
	if t := w.tileForWrite(c.Position()); t != nil {
		t.AddCreature(c)
	}
}

func (w *World) removeCreature(id int64) {
	c := w.creatures[id]
	if c == nil {
		return
	}
	if t := w.tileForWrite(c.Position()); t != nil {
		t.RemoveCreature(id)
	}
	delete(w.creatures, id)
}

func (w *World) newCreatureID() int64 {
	w.nextCreature++
	return w.nextCreature
}

func (w *World) newObjectID() int64 {
	w.nextObject++
	return w.nextObject
}

// dropOnGround places o at p as a ground object with the given instance id.
func (w *World) dropOnGround(id int64, o entity.Object, p geom.Position) *entity.GroundObject {
	g := &entity.GroundObject{ID: id, Object: o, Pos: p}
	w.ground[id] = g
	if t := w.tileForWrite(p); t != nil {
		t.AddGroundObject(g)
	}
	return g
}

func (w *World) takeFromGround(id int64) (*entity.GroundObject, bool) {
	g := w.ground[id]
	if g == nil {
		return nil, false
	}
	if t := w.tileForWrite(g.Pos); t != nil {
		t.RemoveGroundObject(id)
	}
	delete(w.ground, id)
	return g, true
}

func (w *World) weaponOf(c *entity.Creature) *entity.Weapon {
	if wp := c.Weapon(); wp != nil {
		return wp
	}
	return w.cats.Weapons.BareHands
}

func (w *World) isBareHands(wp *entity.Weapon) bool {
	return wp == nil || wp.ID == w.cats.Weapons.BareHands.ID
}
