package main

import (
	"math/rand"

	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/path"
	"roguecloud.ai/internal/sim/worldmap"
)

// brain picks one action per frame: drink when hurt, pick up what it stands next to, equip
// upgrades, fight adjacent monsters, then walk toward loot or monsters, else wander.
type brain struct {
	rng      *rand.Rand
	maxTiles int

	weapons  map[int64]protocol.WeaponDef
	armours  map[int64]protocol.ArmourDef
	potions  map[int64]protocol.DrinkableDef
	wanderTo *geom.Position
}

func newBrain(seed int64) *brain {
	return &brain{
		rng:      rand.New(rand.NewSource(seed)),
		maxTiles: 4000,
		weapons:  map[int64]protocol.WeaponDef{},
		armours:  map[int64]protocol.ArmourDef{},
		potions:  map[int64]protocol.DrinkableDef{},
	}
}

// reset forgets per-round state. Catalog definitions stay valid across rounds.
func (b *brain) reset() { b.wanderTo = nil }

// learn records the catalog definitions a frame carries; each is sent once per session.
func (b *brain) learn(ws protocol.WorldState) {
	for _, d := range ws.Weapons {
		b.weapons[d.ID] = d
	}
	for _, d := range ws.Armours {
		b.armours[d.ID] = d
	}
	for _, d := range ws.Drinkables {
		b.potions[d.ID] = d
	}
}

type observation struct {
	self    protocol.SelfState
	others  []protocol.Creature
	objects []protocol.GroundObject
	memory  worldmap.Map
}

func (b *brain) decide(o observation) action.Action {
	me := o.self.Creature
	pos := me.Position.Geom()
	if me.HP <= 0 {
		return nil
	}

	if me.HP*2 < me.MaxHP {
		if id, ok := b.healingPotion(o.self.Inventory); ok {
			return action.Drink{ObjectID: id}
		}
	}
	for _, g := range o.objects {
		if g.Position.Geom().Manhattan(pos) <= 1 {
			return action.MoveInventoryItem{ObjectID: g.ID}
		}
	}
	if id, ok := b.upgrade(me, o.self.Inventory); ok {
		return action.Equip{ObjectID: id}
	}

	var target *protocol.Creature
	for i := range o.others {
		c := &o.others[i]
		if c.Player || c.HP <= 0 || c.ID == me.ID {
			continue
		}
		d := c.Position.Geom().Manhattan(pos)
		if d == 1 {
			return action.Combat{TargetCreatureID: c.ID}
		}
		if target == nil || d < target.Position.Geom().Manhattan(pos) {
			target = c
		}
	}

	var goals []geom.Position
	for _, g := range o.objects {
		goals = append(goals, g.Position.Geom())
	}
	if target != nil {
		goals = append(goals, target.Position.Geom())
	}
	for _, g := range goals {
		if step, ok := b.stepToward(o.memory, pos, g); ok {
			return action.Step{Destination: step}
		}
	}
	return b.wander(o.memory, pos)
}

// stepToward returns the first step of a route that ends next to goal.
func (b *brain) stepToward(m worldmap.Map, from, goal geom.Position) (geom.Position, bool) {
	var best []geom.Position
	for _, n := range path.Neighbours(m, goal) {
		if n == from {
			return geom.Position{}, false
		}
		r := path.Fast(m, from, n, b.maxTiles, b.rng)
		if len(r) > 1 && (best == nil || len(r) < len(best)) {
			best = r
		}
	}
	if best == nil {
		return geom.Position{}, false
	}
	return best[1], true
}

func (b *brain) wander(m worldmap.Map, pos geom.Position) action.Action {
	for attempt := 0; attempt < 3; attempt++ {
		if b.wanderTo == nil || *b.wanderTo == pos {
			box := geom.CenterOn(pos, 30, 30, m.Width(), m.Height())
			p, ok := path.RandomPassable(m, box, true, b.rng)
			if !ok {
				return action.Null{}
			}
			b.wanderTo = &p
		}
		r := path.Fast(m, pos, *b.wanderTo, b.maxTiles, b.rng)
		if len(r) > 1 {
			return action.Step{Destination: r[1]}
		}
		b.wanderTo = nil
	}
	return action.Null{}
}

func (b *brain) healingPotion(inv []protocol.InventoryEntry) (int64, bool) {
	for _, it := range inv {
		if it.Kind != string(entity.KindItem) {
			continue
		}
		d, ok := b.potions[it.ObjectID]
		if ok && d.Effect.Type == string(entity.EffectLife) && d.Effect.Magnitude > 0 {
			return it.ID, true
		}
	}
	return 0, false
}

// upgrade finds an inventory weapon rated above the wielded one, or an armour piece with more
// defense than what is worn in its slot.
func (b *brain) upgrade(me protocol.Creature, inv []protocol.InventoryEntry) (int64, bool) {
	current := 0
	if d, ok := b.weapons[me.WeaponID]; ok {
		current = d.Entity().Rating()
	}
	worn := map[string]int{}
	for _, id := range me.ArmourIDs {
		if d, ok := b.armours[id]; ok {
			worn[d.Slot] = d.Defense
		}
	}
	for _, it := range inv {
		switch it.Kind {
		case string(entity.KindWeapon):
			if d, ok := b.weapons[it.ObjectID]; ok && d.Entity().Rating() > current {
				return it.ID, true
			}
		case string(entity.KindArmour):
			if d, ok := b.armours[it.ObjectID]; ok && d.Defense > worn[d.Slot] {
				return it.ID, true
			}
		}
	}
	return 0, false
}
