package world

import (
	"errors"
	"math/rand"

	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/ai"
	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/path"
)

var errNoRoom = errors.New("world: no free passable tile")

const playerTile = "player"

func (w *World) spawnPlayer(userID int64, username string) (*entity.Creature, error) {
	pos, ok := w.spawnPosition()
	if !ok {
		return nil, errNoRoom
	}
	c := entity.NewCreature(entity.CreatureSpec{
		ID:     w.newCreatureID(),
		Name:   username,
		Player: true,
		UserID: userID,
		Pos:    pos,
		MaxHP:  w.cfg.PlayerMaxHP,
		Level:  1,
		Weapon: w.cats.Weapons.BareHands,
		Tile:   w.cats.Tiles.Get(playerTile),
	})
	w.placeCreature(c)
	return c, nil
}

// pickMonster draws a monster definition weighted by Weight.
func (w *World) pickMonster() (catalogs.MonsterDef, bool) {
	total := 0
	for _, d := range w.cats.Monsters.List {
		total += d.Weight
	}
	if total <= 0 {
		return catalogs.MonsterDef{}, false
	}
	n := w.rng.Intn(total)
	for _, d := range w.cats.Monsters.List {
		if n < d.Weight {
			return d, true
		}
		n -= d.Weight
	}
	return catalogs.MonsterDef{}, false
}

func (w *World) spawnMonster() bool {
	def, ok := w.pickMonster()
	if !ok {
		return false
	}
	pos, ok := w.spawnPosition()
	if !ok {
		return false
	}
	id := w.newCreatureID()
	c := entity.NewCreature(entity.CreatureSpec{
		ID:       id,
		Name:     def.Name,
		Pos:      pos,
		MaxHP:    def.MaxHP,
		Level:    def.Level,
		Weapon:   w.cats.Weapons.ByID[def.WeaponID],
		Tile:     entity.TileType{Number: def.Tile},
		Behavior: def.Behavior,
	})
	for _, aid := range def.ArmourIDs {
		if a := w.cats.Armours.ByID[aid]; a != nil {
			c.EquipArmour(a)
		}
	}
	w.placeCreature(c)
	w.addMonster(c, pos)
	return true
}

// addMonster gives a placed monster creature its action slot and brain.
func (w *World) addMonster(c *entity.Creature, home geom.Position) *monster {
	m := &monster{creatureID: c.ID(), home: home, slot: action.NewSlot()}
	w.monsters[c.ID()] = m
	rng := rand.New(rand.NewSource(w.cfg.Seed ^ c.ID()))
	w.machine.Add(c.ID(), ai.NewBrain(ai.Behavior(c.Behavior()), home, rng), m.slot)
	return m
}

func (w *World) spawnGroundItem() bool {
	objs := w.cats.Objects()
	if len(objs) == 0 {
		return false
	}
	whole := geom.Box{W: w.cfg.Width, H: w.cfg.Height}
	for attempt := 0; attempt < 20; attempt++ {
		p, ok := path.RandomPassable(w.m, whole, false, w.rng)
		if !ok {
			continue
		}
		if t := w.m.Tile(p); t == nil || len(t.GroundObjects()) > 0 {
			continue
		}
		w.dropOnGround(w.newObjectID(), objs[w.rng.Intn(len(objs))], p)
		return true
	}
	return false
}

// spawnTick tops the monster and item populations up, a few per tick.
func (w *World) spawnTick() {
	for i := 0; i < w.cfg.SpawnPerTick && len(w.monsters) < w.cfg.MonsterTarget; i++ {
		if !w.spawnMonster() {
			break
		}
	}
	for i := 0; i < w.cfg.SpawnPerTick && len(w.ground) < w.cfg.GroundItemTarget; i++ {
		if !w.spawnGroundItem() {
			break
		}
	}
}
