package world

import (
	"math"

	"go.uber.org/zap"

	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/path"
)

// tickEffects applies LIFE effects and counts every active effect down by one turn.
func (w *World) tickEffects(now uint64) {
	for _, id := range sortedKeys(w.creatures) {
		c := w.creatures[id]
		if c.IsDead() || len(c.ActiveEffects()) == 0 {
			continue
		}
		after := w.mutate(id, func(c *entity.Creature) {
			var kept []entity.Effect
			hp := c.HP()
			for _, e := range c.ActiveEffects() {
				if e.Type == entity.EffectLife {
					hp += e.Magnitude
				}
				e.RemainingTurns--
				if e.RemainingTurns > 0 {
					kept = append(kept, e)
				}
			}
			c.SetHP(hp)
			c.SetEffects(kept)
		})
		if after.IsDead() {
			w.onDeath(now, id)
		}
	}
}

// onDeath runs once when a creature's HP reaches zero.
func (w *World) onDeath(now uint64, id int64) {
	if m := w.monsters[id]; m != nil {
		if m.dead {
			return
		}
		m.dead = true
		m.diedAt = now
		m.slot.Close()
		w.machine.Remove(id)
		return
	}
	p := w.players[id]
	if p == nil || p.dead {
		return
	}
	p.dead = true
	p.reviveAt = now + uint64(w.cfg.ReviveAfterTicks)

	c := w.creatures[id]
	pos := c.Position()
	var drops []entity.OwnableObject
	w.mutate(id, func(c *entity.Creature) {
		if wp := c.Weapon(); !w.isBareHands(wp) && w.rng.Intn(2) == 0 {
			c.SetWeapon(w.cats.Weapons.BareHands)
			drops = append(drops, entity.OwnableObject{ID: w.newObjectID(), Object: wp})
		}
		for _, slot := range entity.ArmourSlots {
			if c.ArmourIn(slot) == nil || w.rng.Intn(2) != 0 {
				continue
			}
			a := c.UnequipArmour(slot)
			drops = append(drops, entity.OwnableObject{ID: w.newObjectID(), Object: a})
		}
		for _, o := range c.Inventory() {
			if w.rng.Intn(2) != 0 {
				continue
			}
			c.RemoveInventory(o.ID)
			drops = append(drops, o)
		}
		c.SetMaxHP(max(1, int(math.Floor(float64(c.MaxHP())*w.cfg.DeathMaxHPFactor))))
		c.ClearEffects()
	})
	for _, o := range drops {
		w.dropOnGround(o.ID, o.Object, pos)
	}
	w.log.Info("player died",
		zap.Int64("creature_id", id),
		zap.Int("dropped", len(drops)),
		zap.Uint64("tick", now))
}

// tickLifecycle revives players whose wait is over and removes monsters that have lingered.
func (w *World) tickLifecycle(now uint64) {
	for _, id := range sortedKeys(w.players) {
		p := w.players[id]
		if !p.dead || now < p.reviveAt {
			continue
		}
		pos, ok := w.spawnPosition()
		if !ok {
			continue
		}
		p.dead = false
		w.mutate(id, func(c *entity.Creature) {
			c.SetPosition(pos)
			c.SetHP(c.MaxHP())
		})
	}
	for _, id := range sortedKeys(w.monsters) {
		m := w.monsters[id]
		if !m.dead || now < m.diedAt+uint64(w.cfg.DeadMonsterLingerTicks) {
			continue
		}
		w.removeCreature(id)
		delete(w.monsters, id)
	}
}

// scoreSurvivors awards one point per tick to every living player.
func (w *World) scoreSurvivors() {
	for id, p := range w.players {
		if c := w.creatures[id]; c != nil && !c.IsDead() {
			p.score++
		}
	}
}

// spawnPosition picks a random passable tile with no creature on it.
func (w *World) spawnPosition() (geom.Position, bool) {
	whole := geom.Box{W: w.cfg.Width, H: w.cfg.Height}
	for attempt := 0; attempt < 20; attempt++ {
		p, ok := path.RandomPassable(w.m, whole, false, w.rng)
		if !ok {
			continue
		}
		if t := w.m.Tile(p); t != nil && !t.HasCreatures() {
			return p, true
		}
	}
	return geom.Position{}, false
}
